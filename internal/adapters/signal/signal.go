package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/app"
	"github.com/promptdeck/promptdeck/internal/auth"
	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/transcribe"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch      *app.Orchestrator
	Auth      *auth.Verifier
	PostRate  *PostRateLimiter
	Simulator transcribe.Provider
	ReadLimit int64
}

func NewController(orch *app.Orchestrator, verifier *auth.Verifier) *Controller {
	return &Controller{Orch: orch, Auth: verifier}
}

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	sess := core.NewMemberSession(user, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

// BroadcastRoom fans a payload out to every connection bound to a room,
// the sender included, then applies the backpressure policy.
func (ctl *Controller) BroadcastRoom(ctx context.Context, room core.RoomService, v any) {
	b, err := marshalFrame(v)
	if err != nil {
		return
	}
	res := room.Publish(b)
	ctl.Orch.HandleDropped(ctx, room.JoinCode(), res)
}

// BroadcastOthers is BroadcastRoom minus the sender.
func (ctl *Controller) BroadcastOthers(ctx context.Context, room core.RoomService, from core.SessionID, v any) {
	b, err := marshalFrame(v)
	if err != nil {
		return
	}
	res := room.Broadcast(from, b)
	ctl.Orch.HandleDropped(ctx, room.JoinCode(), res)
}
