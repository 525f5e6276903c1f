package domain

type (
	RoomID string
	Topic  string
)

// LobbyID is the reserved broadcast channel for clients watching the room
// list. It never appears in the room map and cannot be joined as a room.
const LobbyID RoomID = "lobby"

const featuredLimit = 3

// Room is the aggregate state of one live room. Membership is an ordered
// sequence (join order) with a uniqueness index, so "earliest joined" is a
// documented rule rather than an accident of map iteration.
type Room struct {
	ID                RoomID      `json:"id"`
	Topic             Topic       `json:"topic"`
	Owner             *Attendee   `json:"owner"`
	FeaturedAttendees []*Attendee `json:"featuredAttendees"`
	SpeakersCount     int         `json:"speakersCount"`
	AttendeesCount    int         `json:"attendeesCount"`

	users []*Attendee
	index map[ConnectionID]struct{}
}

func NewRoom(id RoomID, topic Topic, owner *Attendee) *Room {
	return &Room{
		ID:    id,
		Topic: topic,
		Owner: owner,
		index: make(map[ConnectionID]struct{}),
	}
}

// Add inserts the attendee, replacing any stale entry with the same id in
// place so the original join position is kept.
func (r *Room) Add(a *Attendee) {
	if _, ok := r.index[a.ID]; ok {
		for i, u := range r.users {
			if u.ID == a.ID {
				r.users[i] = a
				break
			}
		}
		return
	}
	r.users = append(r.users, a)
	r.index[a.ID] = struct{}{}
}

// Remove drops the attendee from the membership sequence. No-op if absent.
func (r *Room) Remove(id ConnectionID) {
	if _, ok := r.index[id]; !ok {
		return
	}
	delete(r.index, id)
	for i, u := range r.users {
		if u.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			break
		}
	}
}

func (r *Room) Has(id ConnectionID) bool {
	_, ok := r.index[id]
	return ok
}

// Members returns the membership in join order. The slice is a copy, the
// attendee records are shared with the Directory.
func (r *Room) Members() []*Attendee {
	out := make([]*Attendee, len(r.users))
	copy(out, r.users)
	return out
}

func (r *Room) Size() int { return len(r.users) }

// FirstSpeaker returns the earliest-joined member with speaker rights.
func (r *Room) FirstSpeaker() (*Attendee, bool) {
	for _, u := range r.users {
		if u.IsSpeaker {
			return u, true
		}
	}
	return nil, false
}

// Oldest returns the earliest-joined member.
func (r *Room) Oldest() (*Attendee, bool) {
	if len(r.users) == 0 {
		return nil, false
	}
	return r.users[0], true
}

// Recount refreshes the derived fields after a membership mutation.
func (r *Room) Recount() {
	speakers := 0
	for _, u := range r.users {
		if u.IsSpeaker {
			speakers++
		}
	}
	r.SpeakersCount = speakers
	r.AttendeesCount = len(r.users)

	n := min(featuredLimit, len(r.users))
	r.FeaturedAttendees = make([]*Attendee, n)
	copy(r.FeaturedAttendees, r.users[:n])
}
