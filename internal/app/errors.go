package app

import "errors"

var (
	// ErrInvalidRequest rejects a malformed client payload. No state is
	// mutated; the client must resubmit.
	ErrInvalidRequest = errors.New("invalid request")
	ErrRoomNotFound   = errors.New("room not found")
)
