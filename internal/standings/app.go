package standings

import (
	"context"
	"fmt"
	"sort"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	draftOrderSort = "total_winnings ASC, display_name ASC, user_id ASC"
	leaderSort     = "total_winnings DESC, display_name ASC, user_id ASC"
)

type App struct {
	repo  *Repository
	clock clockwork.Clock
	log   *zap.Logger
}

func NewApp(repo *Repository, clock clockwork.Clock, log *zap.Logger) *App {
	return &App{repo: repo, clock: clock, log: log.Named("standings")}
}

// Register gives a participant a standing if they do not have one yet.
func (a *App) Register(ctx context.Context, p engine.Participant) error {
	if p.UserID == "" {
		return fmt.Errorf("register participant: empty user id")
	}
	return a.repo.EnsureStanding(ctx, Standing{UserID: p.UserID, DisplayName: p.DisplayName, UpdatedAt: a.clock.Now()})
}

// DraftOrder lists participants worst standing first, so the lowest total
// winnings picks first in the next event.
func (a *App) DraftOrder(ctx context.Context) ([]engine.Participant, error) {
	rows, err := a.repo.List(ctx, draftOrderSort)
	if err != nil {
		return nil, err
	}
	order := make([]engine.Participant, len(rows))
	for i, r := range rows {
		order[i] = engine.Participant{UserID: r.UserID, DisplayName: r.DisplayName}
	}
	return order, nil
}

func (a *App) Standings(ctx context.Context) ([]Standing, error) {
	return a.repo.List(ctx, leaderSort)
}

// ApplyEventResults credits each drafter with the earnings of the players
// they picked. An event can only be applied once.
func (a *App) ApplyEventResults(ctx context.Context, eventID string, picks []engine.Pick, earnings map[string]int64) ([]EventResult, error) {
	byUser := EventEarnings(picks, earnings)
	if err := a.repo.ApplyEvent(ctx, eventID, byUser, a.clock.Now()); err != nil {
		return nil, err
	}

	results := make([]EventResult, 0, len(byUser))
	for userID, amount := range byUser {
		results = append(results, EventResult{UserID: userID, Earnings: amount})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Earnings != results[j].Earnings {
			return results[i].Earnings > results[j].Earnings
		}
		return results[i].UserID < results[j].UserID
	})

	a.log.Info("event results applied",
		zap.String("event_id", eventID),
		zap.Int("participants", len(results)),
	)
	return results, nil
}

func (a *App) Adjust(ctx context.Context, userID string, amount int64, reason, eventID string) (Adjustment, error) {
	adj := Adjustment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		EventID:   eventID,
		CreatedAt: a.clock.Now(),
	}
	if err := a.repo.Adjust(ctx, adj); err != nil {
		return Adjustment{}, err
	}
	a.log.Info("prize adjusted",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
	)
	return adj, nil
}

func (a *App) Adjustments(ctx context.Context, userID string) ([]Adjustment, error) {
	return a.repo.Adjustments(ctx, userID)
}

// EventEarnings sums, per drafter, the earnings of the players they picked.
// Every drafter gets an entry even when none of their players cashed.
func EventEarnings(picks []engine.Pick, earnings map[string]int64) map[string]int64 {
	out := make(map[string]int64)
	for _, p := range picks {
		out[p.UserID] += earnings[p.PlayerID]
	}
	return out
}
