package draft

import (
	"context"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
)

// Change is published once per committed pick.
type Change struct {
	EventID string           `json:"event_id"`
	Pick    engine.Pick      `json:"pick"`
	Turn    engine.TurnState `json:"turn"`
	Events  []engine.Event   `json:"events"`
}

// Listener is told about every committed pick, in the goroutine that
// committed it. A listener error is logged and never undoes the pick.
type Listener interface {
	Notify(ctx context.Context, change Change) error
}

type ListenerFunc func(ctx context.Context, change Change) error

func (f ListenerFunc) Notify(ctx context.Context, change Change) error { return f(ctx, change) }
