package domain

import "errors"

// Broker-level error kinds, surfaced per the error handling design: some
// cross the HTTP boundary as 400s, some become a transport Error envelope,
// and NoRoom never escapes the broker itself.
var (
	ErrAuthInvalid    = errors.New("auth invalid")
	ErrAuthTimeout    = errors.New("auth timeout")
	ErrRoomNotFound   = errors.New("room not found")
	ErrJoinRejected   = errors.New("join rejected")
	ErrJoinTimeout    = errors.New("join timeout")
	ErrRequestTimeout = errors.New("request timeout")
	ErrNoRoom         = errors.New("peer has no room")
)
