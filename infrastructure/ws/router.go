package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"quiz-lab/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Inbound and reply event names.
const (
	EventAnswerSubmit = "answer:submit"
	EventChatSend     = "chat:send"
	EventHostAction   = "host:action"
	EventRoomState    = "room:state"
	EventActionDone   = "host:action:done"
	EventError        = "error"
)

type chatRequest struct {
	Text string `json:"text"`
}

// Router attaches websocket connections to rooms and routes their frames.
type Router struct {
	log      *slog.Logger
	hub      *Hub
	players  *services.PlayerService
	hosts    *services.HostService
	upgrader websocket.Upgrader
}

func NewRouter(log *slog.Logger, hub *Hub, players *services.PlayerService, hosts *services.HostService) *Router {
	return &Router{
		log:     log,
		hub:     hub,
		players: players,
		hosts:   hosts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and blocks until the connection closes. The
// caller has been authenticated already.
func (r *Router) Serve(w http.ResponseWriter, req *http.Request, code domain.RoomCode, caller domain.Identity) error {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	c := NewClient(conn, r.log, code, caller, uuid.NewString())
	go c.WritePump()

	ctx := req.Context()
	r.hub.Register(c)
	snap, err := r.players.Join(ctx, code, caller, c.ref)
	if err != nil {
		r.hub.Send(c, EventError, errors.Describe(err))
		r.hub.Unregister(c)
		return nil
	}
	r.hub.Send(c, EventRoomState, snap)

	c.ReadPump(func(c *Client, msg Envelope) { r.route(ctx, c, msg) })

	r.hub.Unregister(c)
	if !r.hub.HasPlayer(code, caller.ID) {
		if err := r.players.Leave(context.WithoutCancel(ctx), code, caller); err != nil {
			r.log.Debug("Leave after disconnect failed", "room", code, "player", caller.ID, "error", err)
		}
	}
	return nil
}

func (r *Router) route(ctx context.Context, c *Client, msg Envelope) {
	var err error
	switch msg.Event {
	case EventAnswerSubmit:
		var body services.AnswerRequest
		if err = decode(msg.Payload, &body); err == nil {
			_, err = r.players.SubmitAnswer(ctx, c.room, c.identity, body)
		}
	case EventChatSend:
		var body chatRequest
		if err = decode(msg.Payload, &body); err == nil {
			err = r.players.Chat(ctx, c.room, c.identity, body.Text)
		}
	case EventHostAction:
		var cmd services.HostCommand
		if err = decode(msg.Payload, &cmd); err == nil {
			cmd.Room = c.room
			var res services.ActionResult
			res, err = r.hosts.Dispatch(ctx, c.identity, cmd)
			if err == nil {
				r.hub.Send(c, EventActionDone, res)
			}
		}
	default:
		err = fmt.Errorf("%w: unknown event %q", errors.ErrInvalidInput, msg.Event)
	}
	if err != nil {
		r.hub.Send(c, EventError, errors.Describe(err))
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}
