package types

import (
	"errors"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/standings"
)

// Client → server over the websocket.
type ClientMessage struct {
	Type     string `json:"type"` // "SubmitPick"
	PlayerID string `json:"player_id,omitempty"`
}

// Server → client over the websocket.
type ServerMessage struct {
	Type     string            `json:"type"` // "StateSnapshot" | "PickAccepted" | "Error"
	Version  int               `json:"version,omitempty"`
	Turn     *engine.TurnState `json:"turn,omitempty"`
	LastPick *engine.Pick      `json:"last_pick,omitempty"`
	Pick     *engine.Pick      `json:"pick,omitempty"`
	Error    *ErrorBody        `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeDraftClosed            = "draft_closed"
	CodeNotYourTurn            = "not_your_turn"
	CodeRosterFull             = "roster_full"
	CodePlayerAlreadyDrafted   = "player_already_drafted"
	CodeUnknownPlayer          = "unknown_player"
	CodeConcurrentModification = "concurrent_modification"
	CodeFieldLocked            = "field_locked"
	CodeEventAlreadyProcessed  = "event_already_processed"
	CodeUnknownParticipant     = "unknown_participant"
	CodeBadRequest             = "bad_request"
	CodeUnauthenticated        = "unauthenticated"
	CodeInternal               = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{engine.ErrDraftClosed, CodeDraftClosed},
	{engine.ErrNotYourTurn, CodeNotYourTurn},
	{engine.ErrRosterFull, CodeRosterFull},
	{engine.ErrPlayerAlreadyDrafted, CodePlayerAlreadyDrafted},
	{engine.ErrUnknownPlayer, CodeUnknownPlayer},
	{engine.ErrConcurrentModification, CodeConcurrentModification},
	{draft.ErrFieldLocked, CodeFieldLocked},
	{standings.ErrEventAlreadyProcessed, CodeEventAlreadyProcessed},
	{standings.ErrUnknownParticipant, CodeUnknownParticipant},
}

// ErrorCode maps an error to the stable code clients switch on. Anything
// unrecognised is internal.
func ErrorCode(err error) string {
	if errors.Is(err, draft.ErrInfrastructure) {
		return CodeInternal
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

func NewError(code, message string) *ErrorBody {
	return &ErrorBody{Code: code, Message: message}
}
