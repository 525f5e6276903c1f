// Package core declares the capabilities the coordination logic consumes.
package core

import "github.com/lounge-app/lounge/internal/domain"

// Transport is the outbound messaging capability. Implemented by the
// WebSocket hub; substituted with a recording fake in tests.
//
// All sends are fire-and-forget: delivery failure is the adapter's problem
// and never propagates back into state mutation.
type Transport interface {
	// Emit unicasts an event to one connection.
	Emit(id domain.ConnectionID, event string, payload any)
	// EmitToRoom broadcasts to every connection in a room's channel,
	// optionally excluding one (pass "" to exclude nobody).
	EmitToRoom(room domain.RoomID, event string, payload any, exclude domain.ConnectionID)
	// JoinChannel associates a connection with a room's broadcast group.
	JoinChannel(id domain.ConnectionID, room domain.RoomID)
	// LeaveChannel removes the association again, e.g. when an attendee
	// moves to another room. No-op if absent.
	LeaveChannel(id domain.ConnectionID, room domain.RoomID)
}
