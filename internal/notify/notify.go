package notify

import (
	"context"
	"fmt"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"go.uber.org/zap"
)

// Alert tells a participant they are on the clock.
type Alert struct {
	EventID     string `json:"event_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PickNumber  int    `json:"pick_number"`
	SlotNumber  int    `json:"slot_number"`
	RosterCap   int    `json:"roster_cap"`
}

func (a Alert) Text() string {
	return fmt.Sprintf("%s, it's your turn to draft! Pick: %d/%d", a.DisplayName, a.SlotNumber, a.RosterCap)
}

type Sender interface {
	Send(ctx context.Context, alert Alert) error
}

// TurnAlerts messages whoever is on the clock after a commit. Nothing is
// sent when the draft is over or the same participant picks again.
type TurnAlerts struct {
	sender Sender
}

func NewTurnAlerts(sender Sender) *TurnAlerts {
	return &TurnAlerts{sender: sender}
}

func (t *TurnAlerts) Notify(ctx context.Context, change draft.Change) error {
	alert, ok := AlertFor(change)
	if !ok {
		return nil
	}
	if err := t.sender.Send(ctx, alert); err != nil {
		return fmt.Errorf("alert %s for pick %d: %w", alert.UserID, alert.PickNumber, err)
	}
	return nil
}

// AlertFor builds the alert a change calls for, if any.
func AlertFor(change draft.Change) (Alert, bool) {
	turn := change.Turn
	if turn.IsComplete || turn.CurrentDrafter == nil {
		return Alert{}, false
	}
	next := turn.CurrentDrafter
	if next.UserID == change.Pick.UserID {
		return Alert{}, false
	}
	return Alert{
		EventID:     change.EventID,
		UserID:      next.UserID,
		DisplayName: next.DisplayName,
		PickNumber:  turn.CurrentPickNumber,
		SlotNumber:  turn.RosterCap - turn.RemainingSlots(next.UserID) + 1,
		RosterCap:   turn.RosterCap,
	}, true
}

// LogSender writes alerts to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("notify")}
}

func (s *LogSender) Send(_ context.Context, alert Alert) error {
	s.log.Info("turn alert",
		zap.String("event_id", alert.EventID),
		zap.String("user_id", alert.UserID),
		zap.Int("pick_number", alert.PickNumber),
		zap.String("text", alert.Text()),
	)
	return nil
}

var _ draft.Listener = (*TurnAlerts)(nil)
