package standings

import (
	"errors"
	"time"
)

var (
	ErrEventAlreadyProcessed = errors.New("event results already applied")
	ErrUnknownParticipant    = errors.New("participant has no season standing")
)

// Standing is one participant's season to date. Money is whole dollars.
type Standing struct {
	UserID           string    `gorm:"primaryKey" json:"user_id"`
	DisplayName      string    `gorm:"not null" json:"display_name"`
	TotalWinnings    int64     `gorm:"not null;default:0" json:"total_winnings"`
	EventsPlayed     int       `gorm:"not null;default:0" json:"events_played"`
	ManualAdjustment int64     `gorm:"not null;default:0" json:"manual_adjustment"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Standing) TableName() string { return "season_standings" }

// ProcessedEvent marks an event whose results are already in the standings.
type ProcessedEvent struct {
	EventID     string    `gorm:"primaryKey" json:"event_id"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }

type Adjustment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Adjustment) TableName() string { return "admin_adjustments" }

// EventResult is what applying one event did to one participant.
type EventResult struct {
	UserID   string `json:"user_id"`
	Earnings int64  `json:"earnings"`
}
