package signal

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lounge-app/lounge/internal/app"
	"github.com/lounge-app/lounge/internal/domain"
)

// Envelope is the wire framing for every message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks live connections and their channel membership. It implements
// core.Transport for the coordinator.
type Hub struct {
	mu       sync.RWMutex
	conns    map[domain.ConnectionID]*Conn
	channels map[domain.RoomID]map[domain.ConnectionID]struct{}
	policy   app.Policy
}

func NewHub(policy app.Policy) *Hub {
	return &Hub{
		conns:    make(map[domain.ConnectionID]*Conn),
		channels: make(map[domain.RoomID]map[domain.ConnectionID]struct{}),
		policy:   policy,
	}
}

func (h *Hub) Register(id domain.ConnectionID, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
}

// Unregister drops the connection and its channel memberships. The caller
// closes the Conn. The stored Conn must match: a stale read pump finishing
// late cannot evict a replacement registered under the same id.
func (h *Hub) Unregister(id domain.ConnectionID, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[id]; !ok || cur != c {
		return
	}
	delete(h.conns, id)
	for room, members := range h.channels {
		delete(members, id)
		if len(members) == 0 {
			delete(h.channels, room)
		}
	}
}

func (h *Hub) JoinChannel(id domain.ConnectionID, room domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[room]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		h.channels[room] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) LeaveChannel(id domain.ConnectionID, room domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.channels, room)
	}
}

func (h *Hub) Emit(id domain.ConnectionID, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.TrySend(data); err != nil {
		h.onSendFailure("", id, c, err)
	}
}

func (h *Hub) EmitToRoom(room domain.RoomID, event string, payload any, exclude domain.ConnectionID) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make(map[domain.ConnectionID]*Conn, len(h.channels[room]))
	for id := range h.channels[room] {
		if id == exclude {
			continue
		}
		if c, ok := h.conns[id]; ok {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if err := c.TrySend(data); err != nil {
			h.onSendFailure(room, id, c, err)
		}
	}
}

func (h *Hub) onSendFailure(room domain.RoomID, id domain.ConnectionID, c *Conn, err error) {
	log.Warn().Err(err).Str("module", "signal.hub").Str("id", string(id)).Str("room", string(room)).Msg("send failed")
	if err != ErrBackpressure || h.policy == nil {
		return
	}
	if h.policy.OnBackpressure(room, id) == app.KickConnection {
		// Closing the socket surfaces as a read error, which routes the
		// connection through the normal disconnect path.
		c.Close()
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(outEnvelope{Event: event, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", event).Msg("marshal envelope")
		return nil, err
	}
	return data, nil
}
