// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package wire

// A Splitter reassembles complete frames from a byte stream, for transports
// that do not preserve message boundaries. The zero value is ready for use.
type Splitter struct {
	buf []byte
}

// Feed appends data to the pending input and returns every complete frame
// now available, in order. The returned frames are copies and remain valid
// after later calls.
//
// If a header declares a frame larger than MaxFrameSize, Feed reports
// ErrMalformedFrame. The stream cannot be resynchronized after that, so the
// caller should discard the connection.
func (s *Splitter) Feed(data []byte) ([][]byte, error) {
	s.buf = append(s.buf, data...)
	var out [][]byte
	for len(s.buf) >= HeaderSize {
		h, _ := DecodeHeader(s.buf)
		if int64(h.Length) > MaxFrameSize-HeaderSize {
			return out, malformed("declared length %d exceeds frame limit %d", h.Length, MaxFrameSize-HeaderSize)
		}
		n := HeaderSize + int(h.Length)
		if len(s.buf) < n {
			break
		}
		out = append(out, append([]byte(nil), s.buf[:n]...))
		s.buf = s.buf[n:]
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return out, nil
}

// Buffered reports the number of bytes held waiting for a complete frame.
func (s *Splitter) Buffered() int { return len(s.buf) }
