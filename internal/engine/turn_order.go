package engine

// TurnState is what callers need to render the draft or decide who to alert
// next. CurrentDrafter is nil once the draft is complete.
type TurnState struct {
	EventID           string         `json:"event_id"`
	CurrentDrafter    *Participant   `json:"current_drafter"`
	CurrentPickNumber int            `json:"current_pick_number"`
	Round             int            `json:"round"`
	IsComplete        bool           `json:"is_complete"`
	PicksMade         int            `json:"picks_made"`
	RosterCap         int            `json:"roster_cap"`
	Remaining         map[string]int `json:"remaining"`
}

// RemainingSlots matches the package-level RemainingSlots: a user outside
// the order has made no picks, so the whole roster cap is left.
func (t TurnState) RemainingSlots(userID string) int {
	if n, ok := t.Remaining[userID]; ok {
		return n
	}
	return max(t.RosterCap, 0)
}

func CurrentPickNumber(s State) int {
	return len(s.Picks) + 1
}

// CurrentRound is 1-based: picks 1..len(order) are round 1.
func CurrentRound(s State) int {
	return (CurrentPickNumber(s)-1)/len(s.Order) + 1
}

// TurnIndex is the position in Order of whoever holds CurrentPickNumber.
// Round robin repeats the same order every round; snake reverses it on
// even rounds.
func TurnIndex(s State) int {
	n := len(s.Order)
	pos := (CurrentPickNumber(s) - 1) % n
	if s.Rules.Format == FormatSnake && CurrentRound(s)%2 == 0 {
		return n - 1 - pos
	}
	return pos
}

func IsComplete(s State) bool {
	if len(s.Picks) >= len(s.Order)*s.Rules.RosterCap {
		return true
	}
	return s.FieldSize > 0 && len(s.Picks) >= s.FieldSize
}

func CurrentDrafter(s State) (Participant, bool) {
	if IsComplete(s) {
		return Participant{}, false
	}
	return s.Order[TurnIndex(s)], true
}

func PicksMadeBy(s State, userID string) int {
	count := 0
	for _, p := range s.Picks {
		if p.UserID == userID {
			count++
		}
	}
	return count
}

func RemainingSlots(s State, userID string) int {
	return max(s.Rules.RosterCap-PicksMadeBy(s, userID), 0)
}

func Resolve(s State) TurnState {
	t := TurnState{
		EventID:           s.EventID,
		CurrentPickNumber: CurrentPickNumber(s),
		Round:             CurrentRound(s),
		IsComplete:        IsComplete(s),
		PicksMade:         len(s.Picks),
		RosterCap:         s.Rules.RosterCap,
		Remaining:         make(map[string]int, len(s.Order)),
	}
	for _, p := range s.Order {
		t.Remaining[p.UserID] = RemainingSlots(s, p.UserID)
	}
	if drafter, ok := CurrentDrafter(s); ok {
		t.CurrentDrafter = &drafter
	}
	return t
}
