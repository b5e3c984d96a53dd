package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil exchange event")

	// ErrClosed is returned by publishers used after Close.
	ErrClosed = errors.New("event publisher closed")
)
