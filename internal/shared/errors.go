package shared

import "errors"

var (
	// repository errors
	ErrNotFound = errors.New("not found")
)
