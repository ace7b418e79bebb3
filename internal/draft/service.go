package draft

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/store"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrInfrastructure wraps every failure that is not a decision of the draft
// rules: database errors, a missing draft order, a cancelled context.
var ErrInfrastructure = errors.New("draft infrastructure failure")

var ErrFieldLocked = store.ErrFieldLocked

// OrderSource hands out the draft order of an event. DraftOrder may change
// until SealOrder is called; after that it must keep returning the sealed
// order. SealOrder returns whichever order holds for the event, which is an
// earlier caller's if one sealed first.
type OrderSource interface {
	DraftOrder(ctx context.Context, eventID string) ([]engine.Participant, error)
	SealOrder(ctx context.Context, eventID string, order []engine.Participant) ([]engine.Participant, error)
}

type Result struct {
	Pick engine.Pick      `json:"pick"`
	Turn engine.TurnState `json:"turn"`
}

type Service struct {
	picks     store.PickStore
	fields    store.FieldStore
	orders    OrderSource
	rules     engine.Rules
	retries   int
	clock     clockwork.Clock
	log       *zap.Logger
	listeners []Listener
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithRetries sets how many times a pick that lost a commit race is
// re-validated against the fresh log before ErrConcurrentModification is
// returned to the caller.
func WithRetries(n int) Option { return func(s *Service) { s.retries = max(n, 0) } }

func WithListener(l Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

func NewService(picks store.PickStore, fields store.FieldStore, orders OrderSource, rules engine.Rules, opts ...Option) *Service {
	if rules.RosterCap <= 0 {
		panic(fmt.Sprintf("roster cap must be positive, got %d", rules.RosterCap))
	}
	s := &Service{
		picks:   picks,
		fields:  fields,
		orders:  orders,
		rules:   rules,
		retries: 1,
		clock:   clockwork.NewRealClock(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("draft")
	return s
}

// Subscribe adds a listener after construction. It must not be called
// while picks are being submitted.
func (s *Service) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// SubmitPick validates and commits one pick. Rule rejections come back as
// the engine's sentinel errors; anything else wraps ErrInfrastructure.
func (s *Service) SubmitPick(ctx context.Context, eventID, userID, playerID string) (Result, error) {
	log := s.log.With(
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("player_id", playerID),
	)

	for attempt := 0; ; attempt++ {
		change, err := s.trySubmit(ctx, engine.Command{EventID: eventID, UserID: userID, PlayerID: playerID})
		if errors.Is(err, engine.ErrConcurrentModification) && attempt < s.retries {
			log.Debug("pick lost commit race, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			if engine.IsRejection(err) || errors.Is(err, engine.ErrConcurrentModification) {
				log.Info("pick rejected", zap.Error(err))
			} else {
				log.Error("pick failed", zap.Error(err))
			}
			return Result{}, err
		}

		log.Info("pick committed",
			zap.Int("pick_number", change.Pick.PickNumber),
			zap.Bool("draft_complete", change.Turn.IsComplete),
		)
		// Committed: listeners run even if the caller has gone away.
		s.notify(context.WithoutCancel(ctx), change, log)
		return Result{Pick: change.Pick, Turn: change.Turn}, nil
	}
}

func (s *Service) trySubmit(ctx context.Context, cmd engine.Command) (Change, error) {
	state, field, err := s.load(ctx, cmd.EventID)
	if err != nil {
		return Change{}, err
	}

	events, pick, next, err := engine.Apply(state, engine.NewField(field), cmd, s.clock.Now().UTC())
	if err != nil {
		return Change{}, err
	}

	if len(state.Picks) == 0 {
		sealed, err := s.orders.SealOrder(ctx, cmd.EventID, state.Order)
		if err != nil {
			return Change{}, infra("seal draft order", err)
		}
		if !slices.Equal(sealed, state.Order) {
			return Change{}, engine.ErrConcurrentModification
		}
	}

	committed, err := s.picks.Append(ctx, pick)
	if errors.Is(err, engine.ErrConcurrentModification) {
		return Change{}, err
	}
	if err != nil {
		return Change{}, infra("append pick", err)
	}

	return Change{
		EventID: cmd.EventID,
		Pick:    committed,
		Turn:    engine.Resolve(next),
		Events:  events,
	}, nil
}

func (s *Service) notify(ctx context.Context, change Change, log *zap.Logger) {
	for _, l := range s.listeners {
		if err := l.Notify(ctx, change); err != nil {
			log.Warn("change listener failed", zap.Error(err))
		}
	}
}

// GetTurnState reflects every pick committed before the call began.
func (s *Service) GetTurnState(ctx context.Context, eventID string) (engine.TurnState, error) {
	state, _, err := s.load(ctx, eventID)
	if err != nil {
		return engine.TurnState{}, err
	}
	return engine.Resolve(state), nil
}

func (s *Service) PicksFor(ctx context.Context, eventID string) ([]engine.Pick, error) {
	picks, err := s.picks.List(ctx, eventID)
	if err != nil {
		return nil, infra("list picks", err)
	}
	return picks, nil
}

func (s *Service) IsPlayerDrafted(ctx context.Context, eventID, playerID string) (bool, error) {
	picks, err := s.PicksFor(ctx, eventID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(picks, func(p engine.Pick) bool { return p.PlayerID == playerID }), nil
}

// AvailablePlayers is fullField minus everyone already drafted, in
// fullField's order.
func (s *Service) AvailablePlayers(ctx context.Context, eventID string, fullField []engine.PlayerRef) ([]engine.PlayerRef, error) {
	picks, err := s.PicksFor(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return Available(fullField, picks), nil
}

// Field returns the eligible field as it was loaded.
func (s *Service) Field(ctx context.Context, eventID string) ([]engine.PlayerRef, error) {
	field, err := s.fields.LoadField(ctx, eventID)
	if err != nil {
		return nil, infra("load field", err)
	}
	return field, nil
}

// LoadField sets the eligible field of an event. The field can be replaced
// freely until the first pick; after that it fails with ErrFieldLocked.
func (s *Service) LoadField(ctx context.Context, eventID string, players []engine.PlayerRef) error {
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p.PlayerID == "" {
			return fmt.Errorf("field for event %s has a player without an id", eventID)
		}
		if seen[p.PlayerID] {
			return fmt.Errorf("field for event %s lists player %s twice", eventID, p.PlayerID)
		}
		seen[p.PlayerID] = true
	}

	err := s.fields.ReplaceField(ctx, eventID, players)
	if errors.Is(err, ErrFieldLocked) {
		return err
	}
	if err != nil {
		return infra("replace field", err)
	}
	s.log.Info("field loaded", zap.String("event_id", eventID), zap.Int("players", len(players)))
	return nil
}

func (s *Service) load(ctx context.Context, eventID string) (engine.State, []engine.PlayerRef, error) {
	order, err := s.orders.DraftOrder(ctx, eventID)
	if err != nil {
		return engine.State{}, nil, infra("load draft order", err)
	}
	if err := engine.ValidateOrder(order); err != nil {
		return engine.State{}, nil, infra("load draft order", err)
	}

	field, err := s.fields.LoadField(ctx, eventID)
	if err != nil {
		return engine.State{}, nil, infra("load field", err)
	}

	picks, err := s.picks.List(ctx, eventID)
	if err != nil {
		return engine.State{}, nil, infra("list picks", err)
	}

	return engine.Reduce(eventID, order, s.rules, len(field), picks), field, nil
}

// Available filters drafted players out of fullField.
func Available(fullField []engine.PlayerRef, picks []engine.Pick) []engine.PlayerRef {
	drafted := make(map[string]bool, len(picks))
	for _, p := range picks {
		drafted[p.PlayerID] = true
	}
	out := make([]engine.PlayerRef, 0, len(fullField))
	for _, p := range fullField {
		if !drafted[p.PlayerID] {
			out = append(out, p)
		}
	}
	return out
}

func infra(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}
