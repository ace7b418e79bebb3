package draft

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const eventID = "masters-2025"

var start = time.Date(2025, 4, 9, 18, 0, 0, 0, time.UTC)

type fixedOrder []engine.Participant

func (f fixedOrder) DraftOrder(context.Context, string) ([]engine.Participant, error) {
	return f, nil
}

func (f fixedOrder) SealOrder(context.Context, string, []engine.Participant) ([]engine.Participant, error) {
	return f, nil
}

func order(ids ...string) fixedOrder {
	out := make(fixedOrder, len(ids))
	for i, id := range ids {
		out[i] = engine.Participant{UserID: id, DisplayName: "name-" + id}
	}
	return out
}

func players(n int) []engine.PlayerRef {
	out := make([]engine.PlayerRef, n)
	for i := range out {
		out[i] = engine.PlayerRef{PlayerID: fmt.Sprintf("p%02d", i+1), DisplayName: fmt.Sprintf("Golfer %d", i+1)}
	}
	return out
}

type fixture struct {
	svc   *Service
	mem   *store.Memory
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, ord fixedOrder, fieldSize int, opts ...Option) fixture {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(context.Background(), eventID, players(fieldSize)))
	clock := clockwork.NewFakeClockAt(start)
	opts = append([]Option{WithClock(clock), WithLogger(zaptest.NewLogger(t))}, opts...)
	svc := NewService(mem, mem, ord, engine.Rules{RosterCap: 4}, opts...)
	return fixture{svc: svc, mem: mem, clock: clock}
}

func TestSubmitPickRotation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order("A", "B", "C"), 20)

	want := []string{"A", "B", "C", "A", "B", "C", "A", "B", "C", "A", "B", "C"}
	for i, user := range want {
		turn, err := f.svc.GetTurnState(ctx, eventID)
		require.NoError(t, err)
		require.NotNil(t, turn.CurrentDrafter, "pick %d", i+1)
		assert.Equal(t, user, turn.CurrentDrafter.UserID, "pick %d", i+1)
		assert.Equal(t, i+1, turn.CurrentPickNumber)

		f.clock.Advance(time.Minute)
		res, err := f.svc.SubmitPick(ctx, eventID, user, fmt.Sprintf("p%02d", i+1))
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Pick.PickNumber)
		assert.Equal(t, "name-"+user, res.Pick.Username)
		assert.True(t, res.Pick.CreatedAt.Equal(f.clock.Now()))
	}

	turn, err := f.svc.GetTurnState(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, turn.IsComplete)
	assert.Nil(t, turn.CurrentDrafter)
	for _, user := range []string{"A", "B", "C"} {
		assert.Equal(t, 0, turn.RemainingSlots(user))
	}

	_, err = f.svc.SubmitPick(ctx, eventID, "A", "p20")
	assert.ErrorIs(t, err, engine.ErrDraftClosed)
}

func TestSubmitPickRejectionsLeaveLogUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order("A", "B"), 10)
	_, err := f.svc.SubmitPick(ctx, eventID, "A", "p01")
	require.NoError(t, err)

	cases := []struct {
		name     string
		user     string
		player   string
		expected error
	}{
		{name: "out of turn", user: "A", player: "p02", expected: engine.ErrNotYourTurn},
		{name: "stranger", user: "Z", player: "p02", expected: engine.ErrNotYourTurn},
		{name: "already drafted", user: "B", player: "p01", expected: engine.ErrPlayerAlreadyDrafted},
		{name: "not in field", user: "B", player: "tiger", expected: engine.ErrUnknownPlayer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SubmitPick(ctx, eventID, tc.user, tc.player)
			assert.ErrorIs(t, err, tc.expected)
			assert.NotErrorIs(t, err, ErrInfrastructure)

			picks, err := f.svc.PicksFor(ctx, eventID)
			require.NoError(t, err)
			assert.Len(t, picks, 1)

			turn, err := f.svc.GetTurnState(ctx, eventID)
			require.NoError(t, err)
			assert.Equal(t, "B", turn.CurrentDrafter.UserID)
		})
	}
}

func TestDraftCompletesWhenFieldRunsOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order("A", "B"), 3)

	for i, user := range []string{"A", "B", "A"} {
		_, err := f.svc.SubmitPick(ctx, eventID, user, fmt.Sprintf("p%02d", i+1))
		require.NoError(t, err)
	}
	turn, err := f.svc.GetTurnState(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, turn.IsComplete)

	_, err = f.svc.SubmitPick(ctx, eventID, "B", "p01")
	assert.ErrorIs(t, err, engine.ErrDraftClosed)
}

// racingStore lets another writer commit right before the first Append, the
// way a second session would.
type racingStore struct {
	*store.Memory
	once  sync.Once
	racer engine.Pick
	calls atomic.Int32
}

func (r *racingStore) Append(ctx context.Context, p engine.Pick) (engine.Pick, error) {
	r.calls.Add(1)
	r.once.Do(func() {
		_, _ = r.Memory.Append(ctx, r.racer)
	})
	return r.Memory.Append(ctx, p)
}

func TestSubmitPickRevalidatesAfterLosingRace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(ctx, eventID, players(10)))
	racing := &racingStore{
		Memory: mem,
		racer:  engine.Pick{EventID: eventID, UserID: "A", PlayerID: "p09", PickNumber: 1, CreatedAt: start},
	}
	svc := NewService(racing, mem, order("A", "B"), engine.Rules{RosterCap: 2}, WithLogger(zaptest.NewLogger(t)))

	_, err := svc.SubmitPick(ctx, eventID, "A", "p01")
	assert.ErrorIs(t, err, engine.ErrNotYourTurn, "retry sees the racer's pick and that the turn moved on")
	assert.Equal(t, int32(1), racing.calls.Load(), "the retry is rejected before reaching the store")

	picks, err := svc.PicksFor(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "p09", picks[0].PlayerID)
}

func TestSubmitPickWithoutRetriesSurfacesConflict(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(ctx, eventID, players(10)))
	racing := &racingStore{
		Memory: mem,
		racer:  engine.Pick{EventID: eventID, UserID: "A", PlayerID: "p09", PickNumber: 1, CreatedAt: start},
	}
	svc := NewService(racing, mem, order("A", "B"), engine.Rules{RosterCap: 2}, WithRetries(0))

	_, err := svc.SubmitPick(ctx, eventID, "A", "p01")
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)
	assert.False(t, engine.IsRejection(err))
}

// flakyStore reports a conflict on the first Append without writing anything.
type flakyStore struct {
	*store.Memory
	failed atomic.Bool
}

func (f *flakyStore) Append(ctx context.Context, p engine.Pick) (engine.Pick, error) {
	if f.failed.CompareAndSwap(false, true) {
		return engine.Pick{}, engine.ErrConcurrentModification
	}
	return f.Memory.Append(ctx, p)
}

func TestSubmitPickRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(ctx, eventID, players(10)))
	svc := NewService(&flakyStore{Memory: mem}, mem, order("A", "B"), engine.Rules{RosterCap: 2})

	res, err := svc.SubmitPick(ctx, eventID, "A", "p01")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pick.PickNumber)
	assert.Equal(t, "B", res.Turn.CurrentDrafter.UserID)
}

// fieldSwapStore replaces the event's field after the pick was validated
// and before it reaches the log.
type fieldSwapStore struct {
	*store.Memory
	once sync.Once
	swap func(ctx context.Context) error
	err  error
}

func (f *fieldSwapStore) Append(ctx context.Context, p engine.Pick) (engine.Pick, error) {
	f.once.Do(func() { f.err = f.swap(ctx) })
	return f.Memory.Append(ctx, p)
}

func TestFieldReplacedDuringFirstCommit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(ctx, eventID, players(4)))
	swapping := &fieldSwapStore{Memory: mem}
	svc := NewService(swapping, mem, order("A", "B"), engine.Rules{RosterCap: 2}, WithLogger(zaptest.NewLogger(t)))
	swapping.swap = func(ctx context.Context) error {
		return svc.LoadField(ctx, eventID, []engine.PlayerRef{{PlayerID: "x1"}, {PlayerID: "x2"}})
	}

	_, err := svc.SubmitPick(ctx, eventID, "A", "p01")
	require.NoError(t, swapping.err, "no picks yet, so the field can still change")
	assert.ErrorIs(t, err, engine.ErrUnknownPlayer, "retry validates against the new field")

	picks, err := svc.PicksFor(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, picks)

	_, err = svc.SubmitPick(ctx, eventID, "A", "x1")
	require.NoError(t, err)
}

func TestOrderSealedByAnotherPickIsRevalidated(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(ctx, eventID, players(4)))
	// Standings said B goes first, but another session sealed A first.
	orders := &sealedElsewhere{read: order("B", "A"), sealed: order("A", "B")}
	svc := NewService(mem, mem, orders, engine.Rules{RosterCap: 2})

	_, err := svc.SubmitPick(ctx, eventID, "B", "p01")
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)

	picks, err := svc.PicksFor(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, picks)
}

type sealedElsewhere struct {
	mu     sync.Mutex
	read   fixedOrder
	sealed fixedOrder
	done   bool
}

func (s *sealedElsewhere) DraftOrder(context.Context, string) ([]engine.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.sealed, nil
	}
	return s.read, nil
}

func (s *sealedElsewhere) SealOrder(context.Context, string, []engine.Participant) ([]engine.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	return s.sealed, nil
}

func TestConcurrentSubmitsForOneTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order("A", "B", "C"), 30)

	// A submits from many sessions at once while C tries to jump the queue.
	// B never submits, so C can never be on the clock.
	type attempt struct{ user, player string }
	var attempts []attempt
	for i := range 10 {
		attempts = append(attempts, attempt{"A", fmt.Sprintf("p%02d", i+1)})
		attempts = append(attempts, attempt{"C", fmt.Sprintf("p%02d", i+21)})
	}

	var wg sync.WaitGroup
	var accepted atomic.Int32
	var unexpected atomic.Int32
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			_, err := f.svc.SubmitPick(ctx, eventID, a.user, a.player)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, engine.ErrNotYourTurn), errors.Is(err, engine.ErrConcurrentModification):
			default:
				unexpected.Add(1)
			}
		}(a)
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(0), unexpected.Load())

	picks, err := f.svc.PicksFor(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "A", picks[0].UserID)
	assert.Equal(t, 1, picks[0].PickNumber)
}

func TestConcurrentSamePlayerOverDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "draft.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	t.Cleanup(func() { _ = store.Close(db) })

	gs := store.NewGormStore(db)
	require.NoError(t, gs.ReplaceField(ctx, eventID, players(10)))
	svc := NewService(gs, gs, order("A", "B"), engine.Rules{RosterCap: 4}, WithLogger(zaptest.NewLogger(t)))

	// Several sessions per user all go for the same golfer at once.
	var wg sync.WaitGroup
	var accepted, unexpected atomic.Int32
	for i := range 12 {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := svc.SubmitPick(ctx, eventID, user, "p01")
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, engine.ErrNotYourTurn),
				errors.Is(err, engine.ErrPlayerAlreadyDrafted),
				errors.Is(err, engine.ErrConcurrentModification):
			default:
				t.Errorf("unexpected error: %v", err)
				unexpected.Add(1)
			}
		}([]string{"A", "B"}[i%2])
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(0), unexpected.Load())

	picks, err := svc.PicksFor(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "A", picks[0].UserID)
	assert.Equal(t, "p01", picks[0].PlayerID)
}

func TestConcurrentDraftsDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem, mem, order("A", "B"), engine.Rules{RosterCap: 3})

	events := []string{"masters", "pga", "us-open", "open"}
	for _, ev := range events {
		require.NoError(t, mem.ReplaceField(ctx, ev, players(6)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(events))
	for _, ev := range events {
		wg.Add(1)
		go func(ev string) {
			defer wg.Done()
			for i := range 6 {
				user := []string{"A", "B"}[i%2]
				if _, err := svc.SubmitPick(ctx, ev, user, fmt.Sprintf("p%02d", i+1)); err != nil {
					errs <- fmt.Errorf("%s pick %d: %w", ev, i+1, err)
					return
				}
			}
		}(ev)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for _, ev := range events {
		turn, err := svc.GetTurnState(ctx, ev)
		require.NoError(t, err)
		assert.True(t, turn.IsComplete, ev)
	}
}

func TestListenersSeeEveryCommit(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var changes []Change
	record := ListenerFunc(func(_ context.Context, c Change) error {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
		return nil
	})
	broken := ListenerFunc(func(context.Context, Change) error { return errors.New("sms gateway down") })

	f := newFixture(t, order("A", "B"), 10, WithListener(broken), WithListener(record))

	_, err := f.svc.SubmitPick(ctx, eventID, "A", "p01")
	require.NoError(t, err, "listener failure must not fail the pick")
	_, err = f.svc.SubmitPick(ctx, eventID, "A", "p02")
	require.ErrorIs(t, err, engine.ErrNotYourTurn)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 1, "rejections are not published")
	c := changes[0]
	assert.Equal(t, eventID, c.EventID)
	assert.Equal(t, "p01", c.Pick.PlayerID)
	assert.Equal(t, "B", c.Turn.CurrentDrafter.UserID)
	assert.Equal(t, 2, c.Turn.CurrentPickNumber)
	assert.True(t, engine.ContainsEvent(c.Events, engine.EvtPlayerDrafted))
}

func TestListenersOutliveCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen error = errors.New("listener not called")
	hangUp := ListenerFunc(func(context.Context, Change) error {
		cancel()
		return nil
	})
	check := ListenerFunc(func(ctx context.Context, _ Change) error {
		seen = ctx.Err()
		return nil
	})
	f := newFixture(t, order("A", "B"), 4, WithListener(hangUp), WithListener(check))

	_, err := f.svc.SubmitPick(ctx, eventID, "A", "p01")
	require.NoError(t, err)
	assert.NoError(t, seen)
}

func TestReadModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order("A", "B"), 5)
	_, err := f.svc.SubmitPick(ctx, eventID, "A", "p02")
	require.NoError(t, err)
	_, err = f.svc.SubmitPick(ctx, eventID, "B", "p04")
	require.NoError(t, err)

	drafted, err := f.svc.IsPlayerDrafted(ctx, eventID, "p02")
	require.NoError(t, err)
	assert.True(t, drafted)
	drafted, err = f.svc.IsPlayerDrafted(ctx, eventID, "p03")
	require.NoError(t, err)
	assert.False(t, drafted)

	field, err := f.svc.Field(ctx, eventID)
	require.NoError(t, err)
	available, err := f.svc.AvailablePlayers(ctx, eventID, field)
	require.NoError(t, err)
	var ids []string
	for _, p := range available {
		ids = append(ids, p.PlayerID)
	}
	assert.Equal(t, []string{"p01", "p03", "p05"}, ids)

	picks, err := f.svc.PicksFor(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.Equal(t, "Golfer 4", picks[1].PlayerName)

	turn, err := f.svc.GetTurnState(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 3, turn.RemainingSlots("A"))
	assert.Equal(t, 2, turn.Round)
}

func TestLoadField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order("A", "B"), 0)

	err := f.svc.LoadField(ctx, eventID, []engine.PlayerRef{{PlayerID: "p01"}, {PlayerID: "p01"}})
	assert.Error(t, err)
	err = f.svc.LoadField(ctx, eventID, []engine.PlayerRef{{DisplayName: "No Id"}})
	assert.Error(t, err)

	require.NoError(t, f.svc.LoadField(ctx, eventID, players(4)))
	_, err = f.svc.SubmitPick(ctx, eventID, "A", "p01")
	require.NoError(t, err)

	err = f.svc.LoadField(ctx, eventID, players(8))
	assert.ErrorIs(t, err, ErrFieldLocked)
	assert.NotErrorIs(t, err, ErrInfrastructure)
}

type failingPicks struct{ store.PickStore }

func (failingPicks) List(context.Context, string) ([]engine.Pick, error) {
	return nil, errors.New("connection refused")
}

func TestInfrastructureFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.ReplaceField(ctx, eventID, players(4)))

	svc := NewService(failingPicks{mem}, mem, order("A"), engine.Rules{RosterCap: 1})
	_, err := svc.SubmitPick(ctx, eventID, "A", "p01")
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.False(t, engine.IsRejection(err))

	_, err = svc.GetTurnState(ctx, eventID)
	assert.ErrorIs(t, err, ErrInfrastructure)

	noOrder := NewService(mem, mem, fixedOrder(nil), engine.Rules{RosterCap: 1})
	_, err = noOrder.SubmitPick(ctx, eventID, "A", "p01")
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.ErrorIs(t, err, engine.ErrEmptyOrder)
}
