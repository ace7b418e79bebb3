package lobby

import (
	"context"
	"errors"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/engine"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// Publish carries a committed pick into the lobby.
type Publish struct {
	Change draft.Change
}

func (Publish) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Snapshot struct {
	Version  int              `json:"version"`
	Turn     engine.TurnState `json:"turn"`
	LastPick *engine.Pick     `json:"last_pick,omitempty"`
}

type View struct {
	Version    int
	NumClients int
	Turn       engine.TurnState
	LastPick   *engine.Pick
}

// Lobby fans out the turn state of one event to every connected client.
// It never decides anything about the draft; it only relays commits. A
// lobby stops by itself once the draft is complete and its last client is
// gone.
type Lobby struct {
	inbox    chan Msg
	turn     engine.TurnState
	lastPick *engine.Pick
	version  int
	clients  map[string]chan Snapshot
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewLobby(parent context.Context, eventID string, initial engine.TurnState, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		turn:    initial,
		clients: make(map[string]chan Snapshot),
		log:     log.With(zap.String("event_id", eventID)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- l.snapshot()

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}
				if l.finished() {
					l.shutdown()
					return
				}

			case Publish:
				// Listeners run in the committing goroutine, so two commits can
				// arrive out of order. Never move the turn backwards.
				c := msg.Change
				if c.Turn.PicksMade < l.turn.PicksMade {
					break
				}
				if c.Turn.PicksMade == l.turn.PicksMade && l.lastPick != nil {
					break
				}
				pick := c.Pick
				l.turn = c.Turn
				l.lastPick = &pick
				l.version++
				l.broadcast(l.snapshot())
				if l.finished() {
					l.shutdown()
					return
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Turn:       l.turn,
					LastPick:   l.lastPick,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) finished() bool {
	return l.turn.IsComplete && len(l.clients) == 0
}

func (l *Lobby) snapshot() Snapshot {
	return Snapshot{Version: l.version, Turn: l.turn, LastPick: l.lastPick}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			l.log.Debug("dropping slow client", zap.String("client_id", id))
			close(ch)
			delete(l.clients, id)
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Send delivers msg unless ctx ends or the lobby has shut down first.
func (l *Lobby) Send(ctx context.Context, msg Msg) error {
	if l.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case l.inbox <- msg:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

