package store

import (
	"context"
	"errors"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
)

var (
	ErrOrderExists   = errors.New("draft order already saved for event")
	ErrOrderNotFound = errors.New("no draft order saved for event")
	ErrFieldLocked   = errors.New("field is locked once drafting has started")
)

// PickStore is the append-only pick log. Append is a conditional write: it
// fails with engine.ErrConcurrentModification when the event already has a
// pick with the same player or the same pick number, or when the player is
// not in the event's current field.
type PickStore interface {
	Append(ctx context.Context, pick engine.Pick) (engine.Pick, error)
	List(ctx context.Context, eventID string) ([]engine.Pick, error)
}

// OrderStore keeps the draft order snapshot taken when an event's draft
// starts. An order is written once per event.
type OrderStore interface {
	SaveOrder(ctx context.Context, eventID string, order []engine.Participant) error
	LoadOrder(ctx context.Context, eventID string) ([]engine.Participant, error)
}

// FieldStore keeps the eligible field of each event in the order it was
// loaded. ReplaceField fails with ErrFieldLocked once the event has picks.
type FieldStore interface {
	ReplaceField(ctx context.Context, eventID string, players []engine.PlayerRef) error
	LoadField(ctx context.Context, eventID string) ([]engine.PlayerRef, error)
}

type Store interface {
	PickStore
	OrderStore
	FieldStore
}
