package conversation

import "errors"

var (
	// ErrInvalidRole is returned when a turn is built with an unknown role.
	ErrInvalidRole = errors.New("invalid turn role")

	// ErrEmptyContent is returned when a user turn has no content.
	ErrEmptyContent = errors.New("user turn content must not be empty")
)
