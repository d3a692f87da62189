// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package wire

import (
	"fmt"
	"io"

	"github.com/creachadair/mds/value"
)

// A Builder accumulates the payload of a frame in native byte order. The
// zero value is ready for use as an empty builder.
type Builder struct {
	buf []byte
}

// Bool appends a Boolean to b as a single byte with value 0 or 1.
func (b *Builder) Bool(ok bool) { b.Put(value.Cond[byte](ok, 1, 0)) }

// Put appends the specified bytes to b in order.
func (b *Builder) Put(vs ...byte) { b.buf = append(b.buf, vs...) }

// PutString appends the specified string to b.
func (b *Builder) PutString(s string) { b.buf = append(b.buf, s...) }

// Uint16 appends v to b in native byte order.
func (b *Builder) Uint16(v uint16) { b.buf = order.AppendUint16(b.buf, v) }

// Uint32 appends v to b in native byte order.
func (b *Builder) Uint32(v uint32) { b.buf = order.AppendUint32(b.buf, v) }

// Bytes reports the current contents of the buffer. The builder retains
// ownership of the slice until b is no longer used.
func (b *Builder) Bytes() []byte { return b.buf }

// Grow ensures that at least n more bytes can be added to b without another
// allocation.
func (b *Builder) Grow(n int) {
	want := len(b.buf) + n
	if cap(b.buf) < want {
		r := make([]byte, len(b.buf), max(want, 2*cap(b.buf)))
		copy(r, b.buf)
		b.buf = r
	}
}

// A Scanner reads native-order values from the contents of a frame.
// Incomplete values report [io.ErrUnexpectedEOF].
type Scanner struct {
	rest []byte
}

// NewScanner constructs a [Scanner] that consumes data from input. The
// scanner retains slices into input, which must not be modified while the
// scanner is in use.
func NewScanner(input []byte) *Scanner { return &Scanner{rest: input} }

// Bool scans a single byte and reports whether it is non-zero.
func (s *Scanner) Bool() (bool, error) {
	b, err := s.Byte()
	return b != 0, err
}

// Byte scans a single byte from the head of the input.
func (s *Scanner) Byte() (byte, error) {
	if len(s.rest) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	out := s.rest[0]
	s.advance(1)
	return out, nil
}

// Uint16 scans a native-order uint16 from the head of the input.
func (s *Scanner) Uint16() (uint16, error) {
	if len(s.rest) < 2 {
		return 0, fmt.Errorf("value truncated (%d < 2 bytes): %w", len(s.rest), io.ErrUnexpectedEOF)
	}
	out := order.Uint16(s.rest)
	s.advance(2)
	return out, nil
}

// Uint32 scans a native-order uint32 from the head of the input.
func (s *Scanner) Uint32() (uint32, error) {
	if len(s.rest) < 4 {
		return 0, fmt.Errorf("value truncated (%d < 4 bytes): %w", len(s.rest), io.ErrUnexpectedEOF)
	}
	out := order.Uint32(s.rest)
	s.advance(4)
	return out, nil
}

// Get returns exactly n bytes from the head of the input. The result aliases
// the input.
func (s *Scanner) Get(n int) ([]byte, error) {
	if len(s.rest) < n {
		return nil, fmt.Errorf("value truncated (%d < %d bytes): %w", len(s.rest), n, io.ErrUnexpectedEOF)
	}
	out := s.rest[:n]
	s.advance(n)
	return out, nil
}

// Rest returns the remaining unconsumed input.
func (s *Scanner) Rest() []byte { return s.rest }

func (s *Scanner) advance(n int) { s.rest = s.rest[n:] }
