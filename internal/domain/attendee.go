// Package domain contains entity without logic, just meta-data
package domain

const (
	MaxUsernameLen = 36
	MaxTopicLen    = 72
)

// ConnectionID identifies one client connection. Assigned by the transport
// at connect time and stable for the connection's lifetime.
type ConnectionID string

// Attendee is one user's presence record. The Directory owns the only copy;
// rooms reference the same record, they never hold an independent one.
type Attendee struct {
	ID        ConnectionID `json:"id"`
	Username  string       `json:"username"`
	AvatarURL string       `json:"avatarUrl"`
	RoomID    RoomID       `json:"roomId"`
	IsSpeaker bool         `json:"isSpeaker"`
}

// Merge overlays non-empty profile fields from other onto a. The connection
// id and room membership fields are not touched here.
func (a *Attendee) Merge(other Attendee) {
	if other.Username != "" {
		a.Username = other.Username
	}
	if other.AvatarURL != "" {
		a.AvatarURL = other.AvatarURL
	}
}
