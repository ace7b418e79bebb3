package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/standings"
	"github.com/DoyleJ11/golf-pickem/internal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHeader carries the authenticated caller. Authentication itself
// happens in front of this service.
const UserHeader = "X-User-ID"

var statusByCode = map[string]int{
	types.CodeDraftClosed:            http.StatusConflict,
	types.CodeNotYourTurn:            http.StatusConflict,
	types.CodeRosterFull:             http.StatusUnprocessableEntity,
	types.CodePlayerAlreadyDrafted:   http.StatusConflict,
	types.CodeUnknownPlayer:          http.StatusUnprocessableEntity,
	types.CodeConcurrentModification: http.StatusConflict,
	types.CodeFieldLocked:            http.StatusConflict,
	types.CodeEventAlreadyProcessed:  http.StatusConflict,
	types.CodeUnknownParticipant:     http.StatusNotFound,
	types.CodeBadRequest:             http.StatusBadRequest,
	types.CodeUnauthenticated:        http.StatusUnauthorized,
	types.CodeInternal:               http.StatusInternalServerError,
}

type errorResponse struct {
	Error *types.ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCode(w http.ResponseWriter, code, message string) {
	writeJSON(w, statusByCode[code], errorResponse{Error: types.NewError(code, message)})
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := types.ErrorCode(err)
	if code == types.CodeInternal {
		log.Error("request failed", zap.Error(err))
		writeCode(w, code, "internal error")
		return
	}
	writeCode(w, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeCode(w, types.CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

type submitPickRequest struct {
	PlayerID string `json:"player_id"`
}

func SubmitPick(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeCode(w, types.CodeUnauthenticated, "missing "+UserHeader+" header")
			return
		}
		var req submitPickRequest
		if !decode(w, r, &req) {
			return
		}
		if req.PlayerID == "" {
			writeCode(w, types.CodeBadRequest, "player_id is required")
			return
		}

		res, err := svc.SubmitPick(r.Context(), chi.URLParam(r, "eventID"), userID, req.PlayerID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

type turnResponse struct {
	engine.TurnState
	RemainingSlots *int `json:"remaining_slots,omitempty"`
}

func GetTurn(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		turn, err := svc.GetTurnState(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		resp := turnResponse{TurnState: turn}
		if userID := r.URL.Query().Get("user_id"); userID != "" {
			n := turn.RemainingSlots(userID)
			resp.RemainingSlots = &n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func ListPicks(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		picks, err := svc.PicksFor(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"picks": picks})
	}
}

func ListAvailable(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventID")
		field, err := svc.Field(r.Context(), eventID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		available, err := svc.AvailablePlayers(r.Context(), eventID, field)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"players": available})
	}
}

type fieldRequest struct {
	Players []engine.PlayerRef `json:"players"`
}

func PutField(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fieldRequest
		if !decode(w, r, &req) {
			return
		}
		err := svc.LoadField(r.Context(), chi.URLParam(r, "eventID"), req.Players)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]int{"players": len(req.Players)})
		case errors.Is(err, draft.ErrFieldLocked), errors.Is(err, draft.ErrInfrastructure):
			writeError(w, log, err)
		default:
			// Validation of the submitted field.
			writeCode(w, types.CodeBadRequest, err.Error())
		}
	}
}

func RegisterParticipant(app *standings.App, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p engine.Participant
		if !decode(w, r, &p) {
			return
		}
		if p.UserID == "" {
			writeCode(w, types.CodeBadRequest, "user_id is required")
			return
		}
		if err := app.Register(r.Context(), p); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func ListStandings(app *standings.App, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.Standings(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"standings": rows})
	}
}

type eventResultsRequest struct {
	Earnings map[string]int64 `json:"earnings"`
}

// ApplyEventResults credits the event's drafters from the players'
// earnings, keyed by player id.
func ApplyEventResults(svc *draft.Service, app *standings.App, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventID")
		var req eventResultsRequest
		if !decode(w, r, &req) {
			return
		}
		picks, err := svc.PicksFor(r.Context(), eventID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		results, err := app.ApplyEventResults(r.Context(), eventID, picks, req.Earnings)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

type adjustmentRequest struct {
	UserID  string `json:"user_id"`
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason"`
	EventID string `json:"event_id"`
}

func CreateAdjustment(app *standings.App, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustmentRequest
		if !decode(w, r, &req) {
			return
		}
		if req.UserID == "" {
			writeCode(w, types.CodeBadRequest, "user_id is required")
			return
		}
		adj, err := app.Adjust(r.Context(), req.UserID, req.Amount, req.Reason, req.EventID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, adj)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
