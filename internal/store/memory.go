package store

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
)

// Memory keeps everything in process. Each event has its own lock, so
// appends to one event never wait on another. Pick reads load an immutable
// snapshot and never take a lock.
type Memory struct {
	mu     sync.Mutex
	events map[string]*eventLog
}

type eventLog struct {
	mu    sync.Mutex
	picks atomic.Pointer[[]engine.Pick]
	order []engine.Participant
	field []engine.PlayerRef
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]*eventLog)}
}

func (m *Memory) event(eventID string) *eventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := m.events[eventID]
	if ev == nil {
		ev = &eventLog{}
		ev.picks.Store(&[]engine.Pick{})
		m.events[eventID] = ev
	}
	return ev
}

func (m *Memory) Append(ctx context.Context, pick engine.Pick) (engine.Pick, error) {
	if err := ctx.Err(); err != nil {
		return engine.Pick{}, err
	}
	ev := m.event(pick.EventID)
	ev.mu.Lock()
	defer ev.mu.Unlock()

	current := *ev.picks.Load()
	// The log is gap free, so the only pick number that can land is the next one.
	if pick.PickNumber != len(current)+1 {
		return engine.Pick{}, engine.ErrConcurrentModification
	}
	if slices.ContainsFunc(current, func(p engine.Pick) bool { return p.PlayerID == pick.PlayerID }) {
		return engine.Pick{}, engine.ErrConcurrentModification
	}
	// ReplaceField takes the same lock, so the field cannot change between
	// this check and the commit.
	if !slices.ContainsFunc(ev.field, func(p engine.PlayerRef) bool { return p.PlayerID == pick.PlayerID }) {
		return engine.Pick{}, engine.ErrConcurrentModification
	}

	next := make([]engine.Pick, len(current), len(current)+1)
	copy(next, current)
	next = append(next, pick)
	ev.picks.Store(&next)
	return pick, nil
}

func (m *Memory) List(ctx context.Context, eventID string) ([]engine.Pick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(*m.event(eventID).picks.Load()), nil
}

func (m *Memory) SaveOrder(ctx context.Context, eventID string, order []engine.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := engine.ValidateOrder(order); err != nil {
		return err
	}
	ev := m.event(eventID)
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.order != nil {
		return ErrOrderExists
	}
	ev.order = slices.Clone(order)
	return nil
}

func (m *Memory) LoadOrder(ctx context.Context, eventID string) ([]engine.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := m.event(eventID)
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.order == nil {
		return nil, ErrOrderNotFound
	}
	return slices.Clone(ev.order), nil
}

func (m *Memory) ReplaceField(ctx context.Context, eventID string, players []engine.PlayerRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := m.event(eventID)
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if len(*ev.picks.Load()) > 0 {
		return ErrFieldLocked
	}
	ev.field = slices.Clone(players)
	return nil
}

func (m *Memory) LoadField(ctx context.Context, eventID string) ([]engine.PlayerRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := m.event(eventID)
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return slices.Clone(ev.field), nil
}
