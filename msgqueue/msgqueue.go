// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package msgqueue implements an unbounded first-in, first-out queue of
// outbound messages drained by a single worker goroutine.
//
// Producers call Push from any goroutine; Push never blocks and never drops
// a message while the queue is open. The worker hands each message to a
// Consumer in push order. Close stops intake, drains whatever remains, and
// waits for the worker to exit.
package msgqueue

import (
	"errors"
	"sync"

	"github.com/creachadair/mds/queue"
	"github.com/creachadair/taskgroup"
)

// ErrClosed is reported by Push after the queue has been closed.
var ErrClosed = errors.New("message queue is closed")

// A Message is an owned outbound buffer. Pushing a message transfers
// ownership of its contents to the queue; the sender must not modify the
// buffer afterward.
type Message struct {
	buf []byte
}

// NewMessage returns a message that takes ownership of buf.
func NewMessage(buf []byte) Message { return Message{buf: buf} }

// Bytes returns the contents of m.
func (m Message) Bytes() []byte { return m.buf }

// Len reports the length of m in bytes.
func (m Message) Len() int { return len(m.buf) }

// A Consumer receives messages from the worker. Consume is called from a
// single goroutine only. Once Consume returns, the message is released
// regardless of the error.
type Consumer interface {
	Consume(Message) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(Message) error

// Consume implements the Consumer interface.
func (f ConsumerFunc) Consume(m Message) error { return f(m) }

// Options are optional settings for a Queue. A nil *Options is ready for use
// and provides default values.
type Options struct {
	// If set, OnError is called by the worker with each message for which
	// the consumer reported an error.
	OnError func(Message, error)
}

func (o *Options) onError() func(Message, error) {
	if o == nil || o.OnError == nil {
		return func(Message, error) {}
	}
	return o.OnError
}

// Queue is a producer/consumer queue of messages. Use New to construct one,
// and Start to begin delivering messages to the consumer.
type Queue struct {
	consumer Consumer
	onError  func(Message, error)
	ready    chan struct{} // signals the worker that messages are available

	μ       sync.Mutex
	pending *queue.Queue[Message]
	closed  bool
	done    chan struct{} // closed by Close to stop the worker
	tasks   *taskgroup.Group
}

// New constructs a new, unstarted queue that delivers to c.
func New(c Consumer, opts *Options) *Queue {
	return &Queue{
		consumer: c,
		onError:  opts.onError(),
		ready:    make(chan struct{}, 1),
		pending:  queue.New[Message](),
		done:     make(chan struct{}),
	}
}

// Start starts the worker goroutine. Messages pushed before Start are held
// and delivered once it runs. Start panics if q is already started.
func (q *Queue) Start() *Queue {
	q.μ.Lock()
	defer q.μ.Unlock()
	if q.tasks != nil {
		panic("message queue is already started")
	}
	q.tasks = taskgroup.New(nil)
	q.tasks.Go(q.run)
	return q
}

// Push adds m to the tail of the queue and wakes the worker. It does not
// block. After Close, Push discards m and reports ErrClosed.
func (q *Queue) Push(m Message) error {
	q.μ.Lock()
	if q.closed {
		q.μ.Unlock()
		return ErrClosed
	}
	q.pending.Add(m)
	q.μ.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
		// The worker already has a wakeup pending.
	}
	return nil
}

// Len reports the number of messages waiting to be delivered.
func (q *Queue) Len() int {
	q.μ.Lock()
	defer q.μ.Unlock()
	return q.pending.Len()
}

// Close stops accepting new messages, delivers all messages already queued,
// and blocks until the worker has exited. If q was never started, the queued
// messages are delivered on the calling goroutine. Close is idempotent.
func (q *Queue) Close() error {
	q.μ.Lock()
	if q.closed {
		q.μ.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	t := q.tasks
	q.μ.Unlock()

	if t == nil {
		q.drain()
		return nil
	}
	return t.Wait()
}

func (q *Queue) run() error {
	for {
		select {
		case <-q.ready:
			q.drain()
		case <-q.done:
			q.drain()
			return nil
		}
	}
}

// drain delivers queued messages until the queue is empty.
func (q *Queue) drain() {
	for {
		q.μ.Lock()
		m, ok := q.pending.Pop()
		q.μ.Unlock()
		if !ok {
			return
		}
		if err := q.consumer.Consume(m); err != nil {
			q.onError(m, err)
		}
	}
}
