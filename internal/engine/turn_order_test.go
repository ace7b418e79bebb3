package engine

import (
	"fmt"
	"reflect"
	"testing"
)

// drafterSequence plays a full draft and records who was on the clock before
// each pick.
func drafterSequence(t *testing.T, order []Participant, rules Rules) []string {
	t.Helper()
	s := NewState(order, rules, nil, 0)
	field := testField(len(order) * rules.RosterCap)

	var seq []string
	for i := 1; !IsComplete(s); i++ {
		drafter, ok := CurrentDrafter(s)
		if !ok {
			t.Fatalf("no drafter at pick %d", i)
		}
		seq = append(seq, drafter.UserID)
		var err error
		_, _, s, err = Apply(s, field, Command{UserID: drafter.UserID, PlayerID: fmt.Sprintf("p%d", i)}, t0)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
	}
	return seq
}

func TestTurnRotationRoundRobin(t *testing.T) {
	order := participants("A", "B", "C")
	got := drafterSequence(t, order, Rules{RosterCap: 4})
	want := []string{"A", "B", "C", "A", "B", "C", "A", "B", "C", "A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	s := NewState(order, Rules{RosterCap: 4}, make([]Pick, 12), 0)
	turn := Resolve(s)
	if !turn.IsComplete || turn.CurrentDrafter != nil {
		t.Fatalf("after 12 picks want complete with no drafter, got %+v", turn)
	}
}

func TestTurnRotationSnake(t *testing.T) {
	got := drafterSequence(t, participants("A", "B", "C"), Rules{RosterCap: 3, Format: FormatSnake})
	want := []string{"A", "B", "C", "C", "B", "A", "A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTurnIndexLookup(t *testing.T) {
	order := participants("A", "B", "C")
	cases := []struct {
		name      string
		format    Format
		picksMade int
		wantIndex int
		wantRound int
	}{
		{name: "first pick", format: FormatRoundRobin, picksMade: 0, wantIndex: 0, wantRound: 1},
		{name: "last of round one", format: FormatRoundRobin, picksMade: 2, wantIndex: 2, wantRound: 1},
		{name: "wraps to round two", format: FormatRoundRobin, picksMade: 3, wantIndex: 0, wantRound: 2},
		{name: "snake round two starts at the back", format: FormatSnake, picksMade: 3, wantIndex: 2, wantRound: 2},
		{name: "snake round two ends at the front", format: FormatSnake, picksMade: 5, wantIndex: 0, wantRound: 2},
		{name: "snake round three goes forward", format: FormatSnake, picksMade: 6, wantIndex: 0, wantRound: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState(order, Rules{RosterCap: 4, Format: tc.format}, make([]Pick, tc.picksMade), 0)
			if got := TurnIndex(s); got != tc.wantIndex {
				t.Fatalf("TurnIndex = %d, want %d", got, tc.wantIndex)
			}
			if got := CurrentRound(s); got != tc.wantRound {
				t.Fatalf("CurrentRound = %d, want %d", got, tc.wantRound)
			}
			if got := CurrentPickNumber(s); got != tc.picksMade+1 {
				t.Fatalf("CurrentPickNumber = %d, want %d", got, tc.picksMade+1)
			}
		})
	}
}

func TestCompleteWhenFieldExhausted(t *testing.T) {
	picks := []Pick{
		{UserID: "A", PlayerID: "p1", PickNumber: 1},
		{UserID: "B", PlayerID: "p2", PickNumber: 2},
	}
	s := NewState(participants("A", "B"), Rules{RosterCap: 4}, picks, 2)
	if !IsComplete(s) {
		t.Fatalf("expected complete once the whole field is drafted")
	}
	if _, ok := CurrentDrafter(s); ok {
		t.Fatalf("expected no drafter on a complete draft")
	}
}

func TestRemainingSlotsFloorsAtZero(t *testing.T) {
	picks := []Pick{
		{UserID: "A", PlayerID: "p1", PickNumber: 1},
		{UserID: "A", PlayerID: "p2", PickNumber: 2},
		{UserID: "A", PlayerID: "p3", PickNumber: 3},
	}
	s := NewState(participants("A", "B"), Rules{RosterCap: 2}, picks, 0)

	if got := PicksMadeBy(s, "A"); got != 3 {
		t.Fatalf("PicksMadeBy = %d, want 3", got)
	}
	if got := RemainingSlots(s, "A"); got != 0 {
		t.Fatalf("RemainingSlots = %d, want 0", got)
	}
	if got := RemainingSlots(s, "B"); got != 2 {
		t.Fatalf("RemainingSlots(B) = %d, want 2", got)
	}
	if got := RemainingSlots(s, "stranger"); got != 2 {
		t.Fatalf("RemainingSlots(stranger) = %d, want 2", got)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	s := NewState(participants("A", "B"), Rules{RosterCap: 2}, []Pick{{UserID: "A", PlayerID: "p1", PickNumber: 1}}, 0)

	first := Resolve(s)
	second := Resolve(s)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Resolve not idempotent: %+v vs %+v", first, second)
	}
	if first.CurrentDrafter == nil || first.CurrentDrafter.UserID != "B" {
		t.Fatalf("want B on the clock, got %+v", first.CurrentDrafter)
	}
	if first.RemainingSlots("A") != 1 || first.RemainingSlots("B") != 2 {
		t.Fatalf("unexpected remaining: %+v", first.Remaining)
	}
	if got, want := first.RemainingSlots("stranger"), RemainingSlots(s, "stranger"); got != want {
		t.Fatalf("TurnState.RemainingSlots(stranger) = %d, want %d", got, want)
	}
	if first.CurrentPickNumber != 2 || first.PicksMade != 1 || first.RosterCap != 2 {
		t.Fatalf("unexpected turn state: %+v", first)
	}
}
