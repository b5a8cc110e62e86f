// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the per-task event queue that decouples an agent
// executor from the consumers of its events.
package event

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/go-a2a/jokeagent/a2a"
)

// Enqueuer is the write side of a [Queue], handed to agent executors.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev a2a.Event) error
}

var _ Enqueuer = (*Queue)(nil)

// Queue is an append-only log of task events with any number of read cursors.
//
// Enqueue never blocks. Every [Consumer] observes events in enqueue order,
// starting either at the point it subscribed or at the beginning of the log.
// Once a final event (see [a2a.IsFinalEvent]) has been enqueued the queue
// accepts nothing more.
type Queue struct {
	name string

	mu        sync.Mutex
	log       []a2a.Event
	wake      chan struct{}
	closed    bool
	finalized bool
}

// NewQueue returns an empty, open queue.
func NewQueue(name string) *Queue {
	return &Queue{
		name: name,
		wake: make(chan struct{}),
	}
}

// Name returns the name of the queue.
func (q *Queue) Name() string { return q.name }

// Enqueue appends ev to the log and wakes blocked consumers.
func (q *Queue) Enqueue(ctx context.Context, ev a2a.Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		return ErrQueueClosed
	case q.finalized:
		return ErrQueueFinalized
	}

	q.log = append(q.log, ev)
	if a2a.IsFinalEvent(ev) {
		q.finalized = true
	}
	close(q.wake)
	q.wake = make(chan struct{})
	return nil
}

// Close marks the end of the stream. Consumers drain what is left and then
// receive [ErrQueueClosed]. Closing twice is a no-op.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.wake)
	return nil
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// IsFinalized reports whether a final event has been enqueued.
func (q *Queue) IsFinalized() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finalized
}

// Len returns the number of events in the log.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.log)
}

// Subscribe returns a consumer that observes events enqueued from now on.
func (q *Queue) Subscribe() *Consumer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &Consumer{q: q, cursor: len(q.log)}
}

// SubscribeFromStart returns a consumer that first replays the whole log.
func (q *Queue) SubscribeFromStart() *Consumer {
	return &Consumer{q: q}
}

// String implements [fmt.Stringer].
func (q *Queue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("Queue{name: %s, len: %d, closed: %t, finalized: %t}", q.name, len(q.log), q.closed, q.finalized)
}

// next returns the event at cursor, or a channel that is closed when the log
// grows or the queue closes.
func (q *Queue) next(cursor int) (a2a.Event, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cursor < len(q.log) {
		return q.log[cursor], nil, nil
	}
	if q.closed {
		return nil, nil, ErrQueueClosed
	}
	return nil, q.wake, nil
}

// Consumer is a read cursor over a [Queue]. A Consumer is not safe for
// concurrent use; independent readers each take their own.
type Consumer struct {
	q      *Queue
	cursor int
}

// Dequeue blocks until the next unseen event is available and returns it.
// It returns [ErrQueueClosed] once the queue is closed and drained, or the
// context error if ctx ends first.
func (c *Consumer) Dequeue(ctx context.Context) (a2a.Event, error) {
	for {
		ev, wait, err := c.q.next(c.cursor)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			c.cursor++
			return ev, nil
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Events yields events until a final event has been yielded or the queue is
// closed and drained. A context error is yielded once before stopping.
func (c *Consumer) Events(ctx context.Context) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		for {
			ev, err := c.Dequeue(ctx)
			if errors.Is(err, ErrQueueClosed) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) || a2a.IsFinalEvent(ev) {
				return
			}
		}
	}
}
