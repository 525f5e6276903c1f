package app

import (
	"encoding/json"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/lounge-app/lounge/internal/core"
	"github.com/lounge-app/lounge/internal/domain"
)

// Handler is one inbound wire event handler. The transport adapter invokes
// it with the originating connection and the raw payload.
type Handler func(id domain.ConnectionID, payload json.RawMessage) error

// Coordinator implements the join/leave/succession protocol. It owns the
// room map and the Directory; all mutation of either is funneled through its
// handlers, serialized by a single mutex so every event is handled to
// completion before the next one touches shared state.
type Coordinator struct {
	mu        sync.Mutex
	transport core.Transport
	directory *Directory
	rooms     map[domain.RoomID]*domain.Room
}

func NewCoordinator(directory *Directory, transport core.Transport) *Coordinator {
	return &Coordinator{
		transport: transport,
		directory: directory,
		rooms:     make(map[domain.RoomID]*domain.Room),
	}
}

// Events is the statically declared table mapping wire event names to
// handlers. The transport adapter dispatches through it; adding an event
// means adding a row here.
func (c *Coordinator) Events() map[string]Handler {
	return map[string]Handler{
		domain.EventJoinRoom:  c.handleJoinRoom,
		domain.EventJoinLobby: c.handleJoinLobby,
	}
}

// OnConnect registers a bare attendee for a fresh connection. If the id is
// already known with live room membership (a replacement connection arriving
// before the old one was reaped), the old membership is detached through the
// normal leave path first, so resetting the record cannot strand a ghost
// member.
func (c *Coordinator) OnConnect(id domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.directory.Get(id); ok && prev.RoomID != "" {
		if old, live := c.rooms[prev.RoomID]; live && old.Has(id) {
			c.leaveLocked(prev, old)
		}
	}
	c.directory.Upsert(id, domain.Attendee{}, "", false)
	log.Info().Str("module", "app.coordinator").Str("id", string(id)).Msg("connection established")
}

type joinRoomPayload struct {
	User domain.Attendee `json:"user"`
	Room struct {
		ID    domain.RoomID `json:"id"`
		Topic domain.Topic  `json:"topic"`
	} `json:"room"`
}

func (c *Coordinator) handleJoinRoom(id domain.ConnectionID, payload json.RawMessage) error {
	var p joinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("id", string(id)).Msg("bad join payload")
		return ErrInvalidRequest
	}
	p.User.Username = truncate(p.User.Username, domain.MaxUsernameLen)
	p.Room.Topic = domain.Topic(truncate(string(p.Room.Topic), domain.MaxTopicLen))
	return c.JoinRoom(id, p.User, p.Room.ID, p.Room.Topic)
}

func (c *Coordinator) handleJoinLobby(id domain.ConnectionID, _ json.RawMessage) error {
	c.JoinLobby(id)
	return nil
}

// JoinRoom adds the connection to the target room, creating it when unseen.
// The connection identity is authoritative: any client-supplied user id is
// overwritten. The first joiner of a room becomes its owner and a speaker.
func (c *Coordinator) JoinRoom(id domain.ConnectionID, user domain.Attendee, roomID domain.RoomID, topic domain.Topic) error {
	if roomID == "" || roomID == domain.LobbyID {
		return ErrInvalidRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Moving between rooms: detach from the previous one first so an
	// attendee is never a member of two rooms at once.
	if prev, ok := c.directory.Get(id); ok && prev.RoomID != "" && prev.RoomID != roomID {
		if old, live := c.rooms[prev.RoomID]; live && old.Has(id) {
			c.leaveLocked(prev, old)
		}
	}

	room, exists := c.rooms[roomID]

	user.ID = id
	updated := c.directory.Upsert(id, user, roomID, !exists)

	if !exists {
		room = domain.NewRoom(roomID, topic, updated)
		c.rooms[roomID] = room
	}
	room.Add(updated)
	room.Recount()

	c.transport.JoinChannel(id, roomID)
	c.transport.EmitToRoom(roomID, domain.EventUserConnected, updated, id)
	c.transport.Emit(id, domain.EventLobbyUpdated, room.Members())
	c.notifyLobbyLocked()

	log.Info().Str("module", "app.coordinator").Str("id", string(id)).Str("room", string(roomID)).Bool("founder", !exists).Msg("joined room")
	return nil
}

// Disconnect cleans up after a transport-level connection loss. Unknown
// connections and stale room references are tolerated silently.
func (c *Coordinator) Disconnect(id domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	att, ok := c.directory.Get(id)
	if !ok {
		return
	}
	c.directory.Remove(id)

	room, live := c.rooms[att.RoomID]
	if !live || !room.Has(id) {
		return
	}
	c.leaveLocked(att, room)
	log.Info().Str("module", "app.coordinator").Str("id", string(id)).Str("room", string(room.ID)).Msg("disconnected")
}

// JoinLobby subscribes the connection to room-list updates and replies with
// the current snapshot.
func (c *Coordinator) JoinLobby(id domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport.JoinChannel(id, domain.LobbyID)
	c.transport.Emit(id, domain.EventLobbyUpdated, c.roomsLocked())
}

// Rooms returns the live rooms sorted by id.
func (c *Coordinator) Rooms() []*domain.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomsLocked()
}

// Room returns one live room by id.
func (c *Coordinator) Room(id domain.RoomID) (*domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// leaveLocked removes the attendee from the room, handling room deletion and
// owner succession. Caller holds c.mu.
func (c *Coordinator) leaveLocked(att *domain.Attendee, room *domain.Room) {
	room.Remove(att.ID)
	c.transport.LeaveChannel(att.ID, room.ID)

	if room.Size() == 0 {
		// Nobody left to notify.
		delete(c.rooms, room.ID)
		c.notifyLobbyLocked()
		log.Info().Str("module", "app.coordinator").Str("room", string(room.ID)).Msg("room deleted")
		return
	}

	// A departing speaker with another speaker still present needs only a
	// recount. Otherwise losing the owner, or being down to a single
	// member, requires a new leader.
	_, speakerRemains := room.FirstSpeaker()
	wasOwner := room.Owner != nil && room.Owner.ID == att.ID
	if !(att.IsSpeaker && speakerRemains) && (wasOwner || room.Size() == 1) {
		c.promoteLocked(room)
	}

	room.Recount()
	c.transport.EmitToRoom(room.ID, domain.EventUserDisconnected, att, "")
	c.notifyLobbyLocked()
}

// promoteLocked runs owner succession: the earliest-joined speaker wins,
// falling back to the earliest-joined member. The promoted attendee gains
// speaker rights; the record is shared with the Directory, so both views
// agree. Caller holds c.mu.
func (c *Coordinator) promoteLocked(room *domain.Room) {
	next, ok := room.FirstSpeaker()
	if !ok {
		next, ok = room.Oldest()
	}
	if !ok {
		return
	}
	next.IsSpeaker = true
	room.Owner = next
	c.transport.EmitToRoom(room.ID, domain.EventUpgradePermission, next, "")
	log.Info().Str("module", "app.coordinator").Str("room", string(room.ID)).Str("owner", string(next.ID)).Msg("owner promoted")
}

func (c *Coordinator) roomsLocked() []*domain.Room {
	out := make([]*domain.Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Coordinator) notifyLobbyLocked() {
	c.transport.EmitToRoom(domain.LobbyID, domain.EventLobbyUpdated, c.roomsLocked(), "")
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
