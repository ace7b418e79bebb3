package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pickRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	EventID    string    `gorm:"not null;uniqueIndex:idx_draft_picks_event_player,priority:1;uniqueIndex:idx_draft_picks_event_pick,priority:1"`
	PlayerID   string    `gorm:"not null;uniqueIndex:idx_draft_picks_event_player,priority:2"`
	PickNumber int       `gorm:"not null;uniqueIndex:idx_draft_picks_event_pick,priority:2"`
	UserID     string    `gorm:"not null;index"`
	Username   string
	PlayerName string
	CreatedAt  time.Time `gorm:"not null"`
}

func (pickRow) TableName() string { return "draft_picks" }

type orderRow struct {
	EventID     string `gorm:"primaryKey;uniqueIndex:idx_draft_orders_event_user,priority:1"`
	Position    int    `gorm:"primaryKey;autoIncrement:false"`
	UserID      string `gorm:"not null;uniqueIndex:idx_draft_orders_event_user,priority:2"`
	DisplayName string
	CreatedAt   time.Time
}

func (orderRow) TableName() string { return "draft_orders" }

type fieldRow struct {
	EventID     string            `gorm:"primaryKey"`
	PlayerID    string            `gorm:"primaryKey"`
	Position    int               `gorm:"not null"`
	DisplayName string            `gorm:"not null"`
	Metadata    map[string]string `gorm:"serializer:json"`
}

func (fieldRow) TableName() string { return "event_fields" }

// AutoMigrate creates the draft tables and their unique indexes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&pickRow{}, &orderRow{}, &fieldRow{})
}

// GormStore persists the draft through gorm. The unique indexes on
// draft_picks do the compare-and-swap, so any number of server instances
// can share one database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, pick engine.Pick) (engine.Pick, error) {
	row := pickRow{
		ID:         uuid.NewString(),
		EventID:    pick.EventID,
		PlayerID:   pick.PlayerID,
		PickNumber: pick.PickNumber,
		UserID:     pick.UserID,
		Username:   pick.Username,
		PlayerName: pick.PlayerName,
		CreatedAt:  pick.CreatedAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The share lock holds the field row until commit. ReplaceField deletes
		// rows before counting picks, so one of the two always sees the other.
		var held []fieldRow
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
			Where("event_id = ? AND player_id = ?", pick.EventID, pick.PlayerID).
			Limit(1).
			Find(&held).Error
		if err != nil {
			return fmt.Errorf("check field for pick %d of event %s: %w", pick.PickNumber, pick.EventID, err)
		}
		if len(held) == 0 {
			return errNotInField
		}
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return row.toPick(), nil
	case errors.Is(err, errNotInField), IsDuplicate(err):
		return engine.Pick{}, engine.ErrConcurrentModification
	default:
		return engine.Pick{}, fmt.Errorf("insert pick %d for event %s: %w", pick.PickNumber, pick.EventID, err)
	}
}

var errNotInField = errors.New("player not in field")

func (s *GormStore) List(ctx context.Context, eventID string) ([]engine.Pick, error) {
	var rows []pickRow
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("pick_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list picks for event %s: %w", eventID, err)
	}
	picks := make([]engine.Pick, len(rows))
	for i, r := range rows {
		picks[i] = r.toPick()
	}
	return picks, nil
}

func (s *GormStore) SaveOrder(ctx context.Context, eventID string, order []engine.Participant) error {
	if err := engine.ValidateOrder(order); err != nil {
		return err
	}
	rows := make([]orderRow, len(order))
	for i, p := range order {
		rows[i] = orderRow{EventID: eventID, Position: i + 1, UserID: p.UserID, DisplayName: p.DisplayName}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if IsDuplicate(err) {
		return ErrOrderExists
	}
	if err != nil {
		return fmt.Errorf("save draft order for event %s: %w", eventID, err)
	}
	return nil
}

func (s *GormStore) LoadOrder(ctx context.Context, eventID string) ([]engine.Participant, error) {
	var rows []orderRow
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load draft order for event %s: %w", eventID, err)
	}
	if len(rows) == 0 {
		return nil, ErrOrderNotFound
	}
	order := make([]engine.Participant, len(rows))
	for i, r := range rows {
		order[i] = engine.Participant{UserID: r.UserID, DisplayName: r.DisplayName}
	}
	return order, nil
}

func (s *GormStore) ReplaceField(ctx context.Context, eventID string, players []engine.PlayerRef) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Delete first: it waits on any append holding a field row, so the
		// count below sees that append's pick.
		if err := tx.Where("event_id = ?", eventID).Delete(&fieldRow{}).Error; err != nil {
			return fmt.Errorf("clear field for event %s: %w", eventID, err)
		}
		var picks int64
		if err := tx.Model(&pickRow{}).Where("event_id = ?", eventID).Count(&picks).Error; err != nil {
			return fmt.Errorf("count picks for event %s: %w", eventID, err)
		}
		if picks > 0 {
			return ErrFieldLocked
		}
		if len(players) == 0 {
			return nil
		}
		rows := make([]fieldRow, len(players))
		for i, p := range players {
			rows[i] = fieldRow{
				EventID:     eventID,
				PlayerID:    p.PlayerID,
				Position:    i,
				DisplayName: p.DisplayName,
				Metadata:    p.Metadata,
			}
		}
		if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("insert field for event %s: %w", eventID, err)
		}
		return nil
	})
}

func (s *GormStore) LoadField(ctx context.Context, eventID string) ([]engine.PlayerRef, error) {
	var rows []fieldRow
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load field for event %s: %w", eventID, err)
	}
	players := make([]engine.PlayerRef, len(rows))
	for i, r := range rows {
		players[i] = engine.PlayerRef{PlayerID: r.PlayerID, DisplayName: r.DisplayName, Metadata: r.Metadata}
	}
	return players, nil
}

func (r pickRow) toPick() engine.Pick {
	return engine.Pick{
		EventID:    r.EventID,
		UserID:     r.UserID,
		Username:   r.Username,
		PlayerID:   r.PlayerID,
		PlayerName: r.PlayerName,
		PickNumber: r.PickNumber,
		CreatedAt:  r.CreatedAt,
	}
}

// IsDuplicate reports a unique violation. gorm translates these when the
// dialector supports it; the fallbacks catch drivers that hand back the raw
// error.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
