// Package nop provides the publisher used when no event stream is
// configured.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/medibot/pkg/eventstream"
)

// Publisher drops events but counts them.
type Publisher struct {
	dropped atomic.Int64
	closed  atomic.Bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishExchange(_ context.Context, event *eventstream.ExchangePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if p.closed.Load() {
		return eventstream.ErrClosed
	}
	p.dropped.Add(1)
	return nil
}

// Dropped returns how many events were accepted and discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
