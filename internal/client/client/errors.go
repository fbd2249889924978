package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthExpired means the bearer token is no longer valid. It triggers
	// full session teardown: unlocked key cleared, transport closed,
	// re-login required.
	ErrAuthExpired = errors.New("authentication expired")
)
