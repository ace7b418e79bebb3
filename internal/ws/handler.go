package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/hub"
	"github.com/DoyleJ11/golf-pickem/internal/lobby"
	"github.com/DoyleJ11/golf-pickem/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// pingInterval paces the liveness pings. Viewers may stay silent for the
// whole draft, so reads carry no deadline of their own.
var pingInterval = 30 * time.Second

// Handler streams an event's turn state to one client and accepts picks
// from it. Picks go through the draft service like any HTTP pick; the
// resulting snapshot comes back through the event's lobby.
func Handler(h *hub.Hub, svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := r.URL.Query().Get("event")
		if eventID == "" {
			http.Error(w, "missing event", http.StatusBadRequest)
			return
		}
		userID := r.URL.Query().Get("user_id")

		out := make(chan lobby.Snapshot, 8)
		clientID := uuid.NewString()
		clog := log.With(zap.String("event_id", eventID), zap.String("client_id", clientID), zap.String("user_id", userID))

		lb, err := join(r.Context(), h, svc, eventID, clientID, out)
		if err != nil {
			clog.Error("join event", zap.Error(err))
			http.Error(w, "event unavailable", http.StatusServiceUnavailable)
			return
		}
		defer func() { _ = lb.Send(context.Background(), lobby.Leave{ClientID: clientID}) }()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case snap, ok := <-out:
					if !ok {
						// Outbox closed: we fell behind or the lobby shut down.
						conn.Close(websocket.StatusGoingAway, "stream ended")
						return
					}
					turn := snap.Turn
					write(writeCtx, conn, types.ServerMessage{
						Type:     "StateSnapshot",
						Version:  snap.Version,
						Turn:     &turn,
						LastPick: snap.LastPick,
					})
				case <-lb.Done():
					conn.Close(websocket.StatusGoingAway, "stream ended")
					return
				case <-writeCtx.Done():
					return
				}
			}
		}()
		go keepAlive(writeCtx, conn)

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				write(r.Context(), conn, errorMessage(types.CodeBadRequest, "bad json"))
				continue
			}

			switch cm.Type {
			case "SubmitPick":
				if userID == "" {
					write(r.Context(), conn, errorMessage(types.CodeUnauthenticated, "connect with user_id to draft"))
					continue
				}
				res, err := svc.SubmitPick(r.Context(), eventID, userID, cm.PlayerID)
				if err != nil {
					code := types.ErrorCode(err)
					msg := err.Error()
					if code == types.CodeInternal {
						clog.Error("submit pick", zap.Error(err))
						msg = "could not process pick"
					}
					write(r.Context(), conn, errorMessage(code, msg))
					continue
				}
				write(r.Context(), conn, types.ServerMessage{Type: "PickAccepted", Pick: &res.Pick})
			default:
				write(r.Context(), conn, errorMessage(types.CodeBadRequest, "unknown type"))
			}
		}
	}
}

// join subscribes out to the event's lobby. A lobby can stop between the
// hub handing it out and the join landing, so a closed lobby is retried
// once with a fresh one.
func join(ctx context.Context, h *hub.Hub, svc *draft.Service, eventID, clientID string, out chan lobby.Snapshot) (*lobby.Lobby, error) {
	for attempt := 0; ; attempt++ {
		turn, err := svc.GetTurnState(ctx, eventID)
		if err != nil {
			return nil, err
		}
		lb, err := h.Ensure(ctx, eventID, turn)
		if err != nil {
			return nil, err
		}
		err = lb.Send(ctx, lobby.Join{ClientID: clientID, Outbox: out})
		if errors.Is(err, lobby.ErrClosed) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return lb, nil
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func errorMessage(code, message string) types.ServerMessage {
	return types.ServerMessage{Type: "Error", Error: types.NewError(code, message)}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
