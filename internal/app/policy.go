package app

import "github.com/lounge-app/lounge/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	KickConnection
)

// Policy decides what to do with a connection whose send buffer is full
// during a broadcast.
type Policy interface {
	OnBackpressure(room domain.RoomID, id domain.ConnectionID) BackpressureAction
}

// SimplePolicy drops slow consumers: a connection that cannot keep up with
// membership deltas is treated as dead and closed, which routes cleanup
// through the normal disconnect path.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(room domain.RoomID, id domain.ConnectionID) BackpressureAction {
	return KickConnection
}
