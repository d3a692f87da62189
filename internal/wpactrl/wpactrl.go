// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package wpactrl implements a client for the control interface exposed by
// wpa_supplicant and hostapd over Unix datagram sockets.
//
// A client binds its own datagram socket and connects it to the daemon's
// control socket. Each request is a single datagram and is answered by a
// single datagram. A client that has sent ATTACH also receives unsolicited
// event messages, which begin with a "<N>" priority prefix.
package wpactrl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a request whose context has no deadline.
const DefaultTimeout = 10 * time.Second

// maxMessage is the largest control message read.
const maxMessage = 4096

var counter atomic.Int64

// ErrStale is reported by Request on a connection where an earlier request
// ended before its reply arrived. The late reply would be taken as the answer
// to the next command, so the connection must be replaced.
var ErrStale = errors.New("connection has an unanswered request")

// Conn is a connection to a control socket.
type Conn struct {
	conn   *net.UnixConn
	local  string
	remote string

	μ     sync.Mutex // serializes requests
	stale bool
}

// Open connects to the control socket at remote. The local socket is bound
// in localDir, or the system temporary directory if localDir is empty.
func Open(remote, localDir string) (*Conn, error) {
	if localDir == "" {
		localDir = os.TempDir()
	}
	local := filepath.Join(localDir, fmt.Sprintf("wpa_ctrl_%d-%d", os.Getpid(), counter.Add(1)))
	os.Remove(local) // left over from a previous process with the same pid

	conn, err := net.DialUnix("unixgram",
		&net.UnixAddr{Name: local, Net: "unixgram"},
		&net.UnixAddr{Name: remote, Net: "unixgram"},
	)
	if err != nil {
		os.Remove(local)
		return nil, fmt.Errorf("open control socket %q: %w", remote, err)
	}
	return &Conn{conn: conn, local: local, remote: remote}, nil
}

// OpenRetry calls Open up to attempts times, pausing interval between
// failures, until it succeeds or ctx ends.
func OpenRetry(ctx context.Context, remote, localDir string, attempts int, interval time.Duration) (*Conn, error) {
	var err error
	for i := range max(attempts, 1) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
		var c *Conn
		if c, err = Open(remote, localDir); err == nil {
			return c, nil
		}
	}
	return nil, err
}

// Remote returns the path of the control socket c is connected to.
func (c *Conn) Remote() string { return c.remote }

// IsEvent reports whether msg is an unsolicited event message.
func IsEvent(msg []byte) bool { return len(msg) > 0 && msg[0] == '<' }

// Request sends cmd and returns the reply. Event messages that arrive while
// waiting are passed to onEvent if it is non-nil, and are otherwise
// discarded. If ctx has no deadline, DefaultTimeout applies.
func (c *Conn) Request(ctx context.Context, cmd string, onEvent func([]byte)) ([]byte, error) {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.stale {
		return nil, fmt.Errorf("request %q: %w", c.remote, ErrStale)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { c.conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return nil, c.wrapErr(ctx, "send", err)
	}
	buf := make([]byte, maxMessage)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			c.stale = true
			return nil, c.wrapErr(ctx, "receive", err)
		}
		msg := buf[:n]
		if IsEvent(msg) {
			if onEvent != nil {
				onEvent(append([]byte(nil), msg...))
			}
			continue
		}
		return append([]byte(nil), msg...), nil
	}
}

// Attach registers c to receive event messages.
func (c *Conn) Attach(ctx context.Context) error { return c.expectOK(ctx, "ATTACH") }

// Detach cancels a previous Attach.
func (c *Conn) Detach(ctx context.Context) error { return c.expectOK(ctx, "DETACH") }

func (c *Conn) expectOK(ctx context.Context, cmd string) error {
	rsp, err := c.Request(ctx, cmd, nil)
	if err != nil {
		return err
	}
	if string(rsp) != "OK\n" {
		return fmt.Errorf("%s: unexpected reply %q", cmd, strings.TrimSpace(string(rsp)))
	}
	return nil
}

// Recv blocks until a message arrives on an attached connection or ctx ends.
// It must not be called concurrently with Request.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	c.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, maxMessage)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, c.wrapErr(ctx, "receive", err)
	}
	return buf[:n], nil
}

// Close closes the connection and removes the local socket.
func (c *Conn) Close() error {
	err := c.conn.Close()
	if rerr := os.Remove(c.local); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}
	return err
}

func (c *Conn) wrapErr(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	// The socket deadline may fire just before the context notices its own.
	if d, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return fmt.Errorf("%s %q: %w", op, c.remote, err)
}
