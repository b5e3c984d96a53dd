package eventstream

import "context"

// Publisher emits one event per completed exchange. Implementations are
// safe for concurrent use, respect ctx deadlines, and return ErrClosed once
// closed. Close is idempotent.
type Publisher interface {
	PublishExchange(ctx context.Context, event *ExchangePersistedEvent) error
	Close() error
}
