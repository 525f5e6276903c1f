package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lounge-app/lounge/internal/domain"
)

// Directory is the process-wide connection-id -> Attendee registry. It knows
// nothing about rooms; the founder flag on Upsert is decided by the caller.
type Directory struct {
	mu    sync.RWMutex
	users map[domain.ConnectionID]*domain.Attendee
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[domain.ConnectionID]*domain.Attendee)}
}

// Upsert merges the partial profile onto the existing record (or a fresh
// default), overwrites the room association and speaker flag, and returns
// the stored record. founder marks the connection as the target room's first
// joiner, which grants speaker rights.
func (d *Directory) Upsert(id domain.ConnectionID, partial domain.Attendee, roomID domain.RoomID, founder bool) *domain.Attendee {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		u = &domain.Attendee{ID: id}
		d.users[id] = u
	}
	u.Merge(partial)
	u.RoomID = roomID
	u.IsSpeaker = founder
	log.Debug().Str("module", "app.directory").Str("id", string(id)).Str("room", string(roomID)).Bool("speaker", founder).Msg("upsert")
	return u
}

func (d *Directory) Get(id domain.ConnectionID) (*domain.Attendee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// Remove deletes the record. No-op when absent.
func (d *Directory) Remove(id domain.ConnectionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
	log.Debug().Str("module", "app.directory").Str("id", string(id)).Msg("removed")
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
