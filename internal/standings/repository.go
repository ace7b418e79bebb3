package standings

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/golf-pickem/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Standing{}, &ProcessedEvent{}, &Adjustment{})
}

// EnsureStanding creates a zeroed standing for the user unless one exists.
func (r *Repository) EnsureStanding(ctx context.Context, s Standing) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&s).Error
	if err != nil {
		return fmt.Errorf("ensure standing for %s: %w", s.UserID, err)
	}
	return nil
}

// List returns standings sorted by the given clause, e.g. "total_winnings ASC".
func (r *Repository) List(ctx context.Context, order string) ([]Standing, error) {
	var out []Standing
	if err := r.db.WithContext(ctx).Order(order).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return out, nil
}

// ApplyEvent records the event as processed and credits every user in
// earnings, all in one transaction. A second call for the same event fails
// on the processed_events primary key and changes nothing.
func (r *Repository) ApplyEvent(ctx context.Context, eventID string, earnings map[string]int64, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&ProcessedEvent{EventID: eventID, ProcessedAt: now}).Error
		if store.IsDuplicate(err) {
			return ErrEventAlreadyProcessed
		}
		if err != nil {
			return fmt.Errorf("mark event %s processed: %w", eventID, err)
		}

		for userID, amount := range earnings {
			res := tx.Model(&Standing{}).
				Where("user_id = ?", userID).
				Updates(map[string]any{
					"total_winnings": gorm.Expr("total_winnings + ?", amount),
					"events_played":  gorm.Expr("events_played + 1"),
					"updated_at":     now,
				})
			if res.Error != nil {
				return fmt.Errorf("credit %s for event %s: %w", userID, eventID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("credit %s for event %s: %w", userID, eventID, ErrUnknownParticipant)
			}
		}
		return nil
	})
}

// Adjust records a manual prize adjustment and applies it to the user's
// totals.
func (r *Repository) Adjust(ctx context.Context, adj Adjustment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Standing{}).
			Where("user_id = ?", adj.UserID).
			Updates(map[string]any{
				"total_winnings":    gorm.Expr("total_winnings + ?", adj.Amount),
				"manual_adjustment": gorm.Expr("manual_adjustment + ?", adj.Amount),
				"updated_at":        adj.CreatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("adjust %s: %w", adj.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUnknownParticipant
		}
		if err := tx.Create(&adj).Error; err != nil {
			return fmt.Errorf("record adjustment for %s: %w", adj.UserID, err)
		}
		return nil
	})
}

func (r *Repository) Adjustments(ctx context.Context, userID string) ([]Adjustment, error) {
	var out []Adjustment
	q := r.db.WithContext(ctx).Order("created_at")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return out, nil
}
