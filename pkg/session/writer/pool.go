// Package writer provides an asynchronous, sharded pool that mirrors session
// mutations into a storage.Driver.
//
// Every job for a given session id lands on the same shard, and each shard is
// drained by a single worker, so durable writes for one session are applied in
// the order they were enqueued.
package writer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("session writer closed")

type op int

const (
	opPut op = iota
	opDelete
	opBarrier
)

// job is a unit of work for a shard worker.
type job struct {
	op      op
	id      string
	session *conversation.Session
	done    chan result
}

type result struct {
	existed bool
	err     error
}

// Config is the configuration options for the writer pool.
type Config struct {
	// Driver is the storage backend mirrored by the pool.
	Driver storage.Driver

	// NumWorkers is the number of shards, each drained by one worker.
	NumWorkers uint

	// QueueSize is the capacity of each shard's buffered channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool persists session snapshots asynchronously.
type Pool struct {
	config *Config
	shards []chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed; senders hold it for reading while sending so Close
	// never closes a channel under an in-flight send.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts one worker goroutine per shard.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("writer pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	p := &Pool{
		config: c,
		shards: make([]chan job, c.NumWorkers),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		p.shards[i] = make(chan job, c.QueueSize)
		go p.worker(i, p.shards[i])
	}

	return p, nil
}

func (p *Pool) shard(id string) chan job {
	h := fnv.New32a()
	h.Write([]byte(id))
	return p.shards[h.Sum32()%uint32(len(p.shards))]
}

// send blocks until the job is queued, the pool is closed, or ctx is done.
func (p *Pool) send(ctx context.Context, q chan job, j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case q <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Put queues a snapshot of the session for writing. The caller must not
// mutate the snapshot afterwards.
func (p *Pool) Put(ctx context.Context, snapshot *conversation.Session) error {
	err := p.send(ctx, p.shard(snapshot.ID), job{op: opPut, id: snapshot.ID, session: snapshot})
	if err != nil {
		p.logger.Error("session write not queued, dropped",
			"session_id", snapshot.ID,
			"error", err,
		)
		return err
	}

	p.logger.Debug("session write queued", "session_id", snapshot.ID, "turns", len(snapshot.Turns))
	return nil
}

// Delete queues a delete behind any pending writes for id and waits for it.
func (p *Pool) Delete(ctx context.Context, id string) (bool, error) {
	done := make(chan result, 1)
	if err := p.send(ctx, p.shard(id), job{op: opDelete, id: id, done: done}); err != nil {
		return false, err
	}

	select {
	case r := <-done:
		return r.existed, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Flush waits until every job queued before the call has been applied.
func (p *Pool) Flush(ctx context.Context) error {
	dones := make([]chan result, 0, len(p.shards))
	for _, q := range p.shards {
		done := make(chan result, 1)
		if err := p.send(ctx, q, job{op: opBarrier, done: done}); err != nil {
			return err
		}
		dones = append(dones, done)
	}

	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close signals workers to stop and waits for queued jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.shards {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker loop that drains one shard.
func (p *Pool) worker(id uint, q chan job) {
	defer p.wg.Done()
	p.logger.Debug("session writer started", "worker_id", id)

	for j := range q {
		p.process(j)
	}

	p.logger.Debug("session writer stopped", "worker_id", id)
}

func (p *Pool) process(j job) {
	ctx := context.Background()

	switch j.op {
	case opPut:
		if err := p.config.Driver.Put(ctx, j.session); err != nil {
			p.logger.Error("async session write failed",
				"session_id", j.id,
				"error", err,
			)
			return
		}
		p.logger.Debug("session stored", "session_id", j.id, "turns", len(j.session.Turns))

	case opDelete:
		existed, err := p.config.Driver.Delete(ctx, j.id)
		if err != nil {
			p.logger.Error("async session delete failed", "session_id", j.id, "error", err)
		}
		j.done <- result{existed: existed, err: err}

	case opBarrier:
		j.done <- result{}
	}
}
