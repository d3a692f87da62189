// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package wifid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/creachadair/mds/queue"
	"github.com/tungmangtdh3/wifid/wire"
)

// ErrNoSession is reported when a response is generated for a message type
// with no pending request.
var ErrNoSession = errors.New("no pending session")

// A ProtocolError reports a response that cannot be matched to a request.
// It indicates a defect in a controller, not a fault of the client.
type ProtocolError struct {
	Type wire.MessageType
	Err  error
}

func (p *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error for %v: %v", p.Type, p.Err)
}

func (p *ProtocolError) Unwrap() error { return p.Err }

// A SessionRegistry records the session IDs of pending requests, in arrival
// order for each message type, so that responses can be correlated with the
// requests that caused them. A zero SessionRegistry is ready for use, and it
// is safe for concurrent use by multiple goroutines.
type SessionRegistry struct {
	μ       sync.Mutex
	pending map[wire.MessageType]*queue.Queue[uint16]
}

// Record adds id to the tail of the pending sessions for typ.
func (r *SessionRegistry) Record(typ wire.MessageType, id uint16) {
	r.μ.Lock()
	defer r.μ.Unlock()
	q, ok := r.pending[typ]
	if !ok {
		if r.pending == nil {
			r.pending = make(map[wire.MessageType]*queue.Queue[uint16])
		}
		q = queue.New[uint16]()
		r.pending[typ] = q
	}
	q.Add(id)
}

// Take removes and returns the oldest pending session ID for typ. If there
// is none, Take reports a *ProtocolError wrapping ErrNoSession, and the
// registry is unchanged.
func (r *SessionRegistry) Take(typ wire.MessageType) (uint16, error) {
	r.μ.Lock()
	defer r.μ.Unlock()
	if q, ok := r.pending[typ]; ok {
		if id, ok := q.Pop(); ok {
			return id, nil
		}
	}
	return 0, &ProtocolError{Type: typ, Err: ErrNoSession}
}

// Pending reports the number of pending sessions for typ.
func (r *SessionRegistry) Pending(typ wire.MessageType) int {
	r.μ.Lock()
	defer r.μ.Unlock()
	if q, ok := r.pending[typ]; ok {
		return q.Len()
	}
	return 0
}

// Len reports the total number of pending sessions of all types.
func (r *SessionRegistry) Len() int {
	r.μ.Lock()
	defer r.μ.Unlock()
	var n int
	for _, q := range r.pending {
		n += q.Len()
	}
	return n
}

// Reset discards all pending sessions.
func (r *SessionRegistry) Reset() {
	r.μ.Lock()
	defer r.μ.Unlock()
	clear(r.pending)
}
