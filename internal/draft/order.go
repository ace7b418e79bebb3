package draft

import (
	"context"
	"errors"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/store"
	"go.uber.org/zap"
)

// StandingsOrder is the season-wide order, worst standing first.
type StandingsOrder interface {
	DraftOrder(ctx context.Context) ([]engine.Participant, error)
}

// SeededOrders follows the standings until an event's draft starts, then
// serves the snapshot sealed with the first pick. Later standings changes
// never reach an event that already has a snapshot.
type SeededOrders struct {
	standings StandingsOrder
	orders    store.OrderStore
	log       *zap.Logger
}

func NewSeededOrders(standings StandingsOrder, orders store.OrderStore, log *zap.Logger) *SeededOrders {
	return &SeededOrders{standings: standings, orders: orders, log: log.Named("draft_order")}
}

// DraftOrder never writes: before the first pick it recomputes the order
// from the standings on every call.
func (o *SeededOrders) DraftOrder(ctx context.Context, eventID string) ([]engine.Participant, error) {
	order, err := o.orders.LoadOrder(ctx, eventID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, store.ErrOrderNotFound) {
		return nil, err
	}

	seed, err := o.standings.DraftOrder(ctx)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateOrder(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

func (o *SeededOrders) SealOrder(ctx context.Context, eventID string, order []engine.Participant) ([]engine.Participant, error) {
	err := o.orders.SaveOrder(ctx, eventID, order)
	if errors.Is(err, store.ErrOrderExists) {
		// Another pick sealed first; its snapshot wins.
		return o.orders.LoadOrder(ctx, eventID)
	}
	if err != nil {
		return nil, err
	}

	o.log.Info("draft order sealed", zap.String("event_id", eventID), zap.Int("participants", len(order)))
	return order, nil
}
