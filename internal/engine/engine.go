package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrDraftClosed = errors.New("draft is closed")
var ErrNotYourTurn = errors.New("not your turn")
var ErrRosterFull = errors.New("roster is full")
var ErrPlayerAlreadyDrafted = errors.New("player already drafted")
var ErrUnknownPlayer = errors.New("player not in event field")

// ErrConcurrentModification means the pick log changed between the read that
// validated a pick and the write that tried to commit it.
var ErrConcurrentModification = errors.New("concurrent modification")

var rejections = []error{
	ErrDraftClosed,
	ErrNotYourTurn,
	ErrRosterFull,
	ErrPlayerAlreadyDrafted,
	ErrUnknownPlayer,
}

// IsRejection reports whether err is one of the deterministic rule
// rejections. ErrConcurrentModification is transient and is not one of them.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

type Format string

const (
	FormatRoundRobin Format = "round_robin"
	FormatSnake      Format = "snake"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatRoundRobin:
		return FormatRoundRobin, nil
	case FormatSnake:
		return FormatSnake, nil
	default:
		return "", fmt.Errorf("unknown draft format %q", s)
	}
}

type Rules struct {
	RosterCap int    `json:"roster_cap"`
	Format    Format `json:"format"`
}

type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type PlayerRef struct {
	PlayerID    string            `json:"player_id"`
	DisplayName string            `json:"display_name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Pick struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name,omitempty"`
	PickNumber int       `json:"pick_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// Field is the set of players eligible to be drafted for one event.
type Field map[string]PlayerRef

func NewField(players []PlayerRef) Field {
	f := make(Field, len(players))
	for _, p := range players {
		f[p.PlayerID] = p
	}
	return f
}

func (f Field) Contains(playerID string) bool {
	_, ok := f[playerID]
	return ok
}

// State is the draft for one event, derived from its pick log. It is a value:
// Apply returns a new State and never mutates the one passed in.
type State struct {
	EventID   string
	Order     []Participant
	Picks     []Pick
	Rules     Rules
	FieldSize int
}

type Command struct {
	EventID  string
	UserID   string
	PlayerID string
}

type EventType string

const (
	EvtPlayerDrafted  EventType = "PlayerDrafted"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtDraftCompleted EventType = "DraftCompleted"
)

type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	PlayerID   string    `json:"player_id,omitempty"`
	PickNumber int       `json:"pick_number,omitempty"`
}

// Apply validates cmd against s and, if every rule passes, returns the pick to
// commit and the state that results from committing it. Checks run in a fixed
// order so that a caller always sees the same rejection for the same state.
func Apply(s State, field Field, cmd Command, now time.Time) ([]Event, Pick, State, error) {
	if IsComplete(s) {
		return nil, Pick{}, s, ErrDraftClosed
	}

	drafter, _ := CurrentDrafter(s)
	if drafter.UserID != cmd.UserID {
		return nil, Pick{}, s, ErrNotYourTurn
	}

	// Redundant with turn order on a clean log, but a log written by an
	// admin override can still put a participant over the cap.
	if RemainingSlots(s, cmd.UserID) <= 0 {
		return nil, Pick{}, s, ErrRosterFull
	}

	if hasPick(s, cmd.PlayerID) {
		return nil, Pick{}, s, ErrPlayerAlreadyDrafted
	}

	player, ok := field[cmd.PlayerID]
	if !ok {
		return nil, Pick{}, s, ErrUnknownPlayer
	}

	pick := Pick{
		EventID:    s.EventID,
		UserID:     cmd.UserID,
		Username:   drafter.DisplayName,
		PlayerID:   cmd.PlayerID,
		PlayerName: player.DisplayName,
		PickNumber: CurrentPickNumber(s),
		CreatedAt:  now,
	}

	newState := s
	newState.Picks = append(slices.Clip(s.Picks), pick)

	events := []Event{
		{Type: EvtPlayerDrafted, UserID: pick.UserID, PlayerID: pick.PlayerID, PickNumber: pick.PickNumber},
		{Type: EvtTurnAdvanced, PickNumber: CurrentPickNumber(newState)},
	}
	if IsComplete(newState) {
		events = append(events, Event{Type: EvtDraftCompleted})
	}
	return events, pick, newState, nil
}

// Reduce rebuilds the state of an event from its persisted pick log.
func Reduce(eventID string, order []Participant, rules Rules, fieldSize int, picks []Pick) State {
	sorted := slices.Clone(picks)
	slices.SortFunc(sorted, func(a, b Pick) int { return a.PickNumber - b.PickNumber })
	s := NewState(order, rules, sorted, fieldSize)
	s.EventID = eventID
	return s
}

func hasPick(s State, playerID string) bool {
	return slices.ContainsFunc(s.Picks, func(p Pick) bool { return p.PlayerID == playerID })
}
