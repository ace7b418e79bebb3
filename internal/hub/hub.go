package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"github.com/DoyleJ11/golf-pickem/internal/lobby"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type GetLobby struct {
	EventID string
	Reply   chan *lobby.Lobby
}

type EnsureLobby struct {
	EventID string
	Turn    engine.TurnState // only used if creation happens
	Reply   chan *lobby.Lobby
}

// RemoveLobby forgets a stopped lobby. It is a no-op when the event has
// already moved on to a newer lobby.
type RemoveLobby struct {
	EventID string
	Lobby   *lobby.Lobby
}

type ShutdownHub struct{}

// Hub owns one lobby per event. It is also the draft listener that turns
// committed picks into lobby broadcasts.
type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		log:     log.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetLobby:
				msg.Reply <- h.lobbies[msg.EventID] // May be nil

			case EnsureLobby:
				msg.Reply <- h.ensure(msg.EventID, msg.Turn)

			case RemoveLobby:
				if h.lobbies[msg.EventID] == msg.Lobby {
					delete(h.lobbies, msg.EventID)
					h.log.Debug("lobby closed", zap.String("event_id", msg.EventID))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) ensure(eventID string, turn engine.TurnState) *lobby.Lobby {
	if lb := h.lobbies[eventID]; lb != nil {
		select {
		case <-lb.Done():
			// Stopped but its RemoveLobby is still queued; replace it.
		default:
			return lb
		}
	}
	lb := lobby.NewLobby(h.ctx, eventID, turn, h.log)
	h.lobbies[eventID] = lb
	h.log.Debug("lobby opened", zap.String("event_id", eventID))
	go func() {
		<-lb.Done()
		_ = h.send(context.Background(), RemoveLobby{EventID: eventID, Lobby: lb})
	}()
	return lb
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		_ = lb.Send(context.Background(), lobby.Shutdown{})
	}
	clear(h.lobbies)
	h.cancel()
}

// Ensure returns the lobby of eventID, opening it with turn if needed.
func (h *Hub) Ensure(ctx context.Context, eventID string, turn engine.TurnState) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, EnsureLobby{EventID: eventID, Turn: turn, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		return lb, nil
	case <-h.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify publishes a committed pick to everyone watching the event.
func (h *Hub) Notify(ctx context.Context, change draft.Change) error {
	lb, err := h.Ensure(ctx, change.EventID, change.Turn)
	if err != nil {
		return err
	}
	return lb.Send(ctx, lobby.Publish{Change: change})
}

func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ draft.Listener = (*Hub)(nil)
