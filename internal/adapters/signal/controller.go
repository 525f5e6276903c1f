package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lounge-app/lounge/internal/app"
	"github.com/lounge-app/lounge/internal/config"
	"github.com/lounge-app/lounge/internal/domain"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the WebSocket endpoint. Inbound events are dispatched
// through the coordinator's static event table; connection lifecycle maps
// onto the coordinator's OnConnect/Disconnect.
type Controller struct {
	hub        *Hub
	coord      *app.Coordinator
	events     map[string]app.Handler
	joins      *EventRateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(hub *Hub, coord *app.Coordinator, cfg *config.Config) *Controller {
	return &Controller{
		hub:        hub,
		coord:      coord,
		events:     coord.Events(),
		joins:      NewEventRateLimiter(8, 10*time.Second),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	// One id per socket: the cookie token identifies the browser session,
	// but a browser can hold several sockets at once (lobby page plus room
	// page), and those must not share a connection identity.
	sid := domain.ConnectionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("session", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)

	conn := newConn(ws)
	ctl.hub.Register(sid, conn)
	ctl.coord.OnConnect(sid)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.ConnectionID, c *Conn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.hub.Unregister(sid, c)
		ctl.joins.Forget(sid)
		ctl.coord.Disconnect(sid)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(sid domain.ConnectionID, c *Conn, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.replyError(c, "bad_payload")
		return
	}

	handler, ok := ctl.events[env.Event]
	if !ok {
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown event")
		ctl.replyError(c, "unknown_event")
		return
	}

	if env.Event == domain.EventJoinRoom && !ctl.joins.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.replyError(c, "rate_limited")
		return
	}

	if err := handler(sid, env.Payload); err != nil {
		if errors.Is(err, app.ErrInvalidRequest) {
			ctl.replyError(c, "invalid_request")
			return
		}
		// Never leak internal error text over the wire.
		log.Error().Err(err).Str("module", "signal").Str("event", env.Event).Msg("handler error")
		ctl.replyError(c, "internal")
	}
}

func (ctl *Controller) replyError(c *Conn, reason string) {
	data, err := marshalEnvelope("error", map[string]string{"error": reason})
	if err != nil {
		return
	}
	_ = c.TrySend(data)
}
