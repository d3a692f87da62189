// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package transport implements the daemon side of the host connection: a
// single Unix-domain socket in the abstract namespace, either connected to
// the host or accepted from it.
//
// A Transport serves one peer at a time. Open, WaitForData, Read and Close
// must be called from a single goroutine (the reader). Write and Interrupt are
// safe for concurrent use with those.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// maxPathLen is the size of sun_path in a struct sockaddr_un.
const maxPathLen = 108

var (
	// ErrInterrupted is reported by Open and WaitForData after Interrupt.
	ErrInterrupted = errors.New("transport interrupted")

	// ErrNotConnected is reported by I/O methods when no peer is connected.
	ErrNotConnected = errors.New("transport not connected")
)

// Error reports a failed socket operation.
type Error struct {
	Op  string // e.g., "connect", "accept", "write"
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// SocketType selects the socket type used for the connection.
type SocketType int

const (
	SeqPacket SocketType = iota // SOCK_SEQPACKET; one frame per message
	Stream                      // SOCK_STREAM; frames must be reassembled
)

func (s SocketType) String() string {
	switch s {
	case SeqPacket:
		return "seqpacket"
	case Stream:
		return "stream"
	default:
		return fmt.Sprintf("socket-type:%d", int(s))
	}
}

func (s SocketType) sysType() int {
	if s == Stream {
		return unix.SOCK_STREAM
	}
	return unix.SOCK_SEQPACKET
}

// ParseSocketType parses the name of a socket type.
func ParseSocketType(s string) (SocketType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seqpacket", "":
		return SeqPacket, nil
	case "stream":
		return Stream, nil
	default:
		return 0, fmt.Errorf("unknown socket type %q", s)
	}
}

// Config describes how a Transport reaches its peer.
type Config struct {
	Name    string     // abstract socket name, without the leading NUL
	Type    SocketType // socket type
	Listen  bool       // accept a connection instead of connecting
	Backlog int        // listen backlog; 0 means 4
}

func (c Config) backlog() int {
	if c.Backlog <= 0 {
		return 4
	}
	return c.Backlog
}

// Address returns the abstract-namespace address for name. The kernel form
// of the address is a NUL byte, the name, and a trailing NUL, all of which
// count toward the address length.
func Address(name string) (*unix.SockaddrUnix, error) {
	if name == "" {
		return nil, errors.New("empty socket name")
	}
	if n := len(name) + 2; n > maxPathLen {
		return nil, fmt.Errorf("socket name too long (%d > %d bytes)", n, maxPathLen)
	}
	return &unix.SockaddrUnix{Name: "@" + name + "\x00"}, nil
}

// A Transport manages the socket connection to the host.
type Transport struct {
	cfg  Config
	addr *unix.SockaddrUnix

	wake struct {
		sync.Mutex
		fd    int // eventfd, readable once interrupted
		fired bool
	}

	// Held shared for writes, exclusively to change the descriptors.
	μ         sync.RWMutex
	dataFD    int
	ctlFD     int // listening socket, in listen mode
	connected bool
}

// New constructs an unopened transport for cfg.
func New(cfg Config) (*Transport, error) {
	addr, err := Address(cfg.Name)
	if err != nil {
		return nil, &Error{Op: "address", Err: err}
	}
	t, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	t.addr = addr
	return t, nil
}

func newTransport(cfg Config) (*Transport, error) {
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, &Error{Op: "eventfd", Err: err}
	}
	t := &Transport{cfg: cfg, dataFD: -1, ctlFD: -1}
	t.wake.fd = efd
	return t, nil
}

// Pair returns two transports connected to each other by socketpair(2).
// Both are open on return. Closed pair transports cannot be reopened.
func Pair(typ SocketType) (a, b *Transport, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, typ.sysType()|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, &Error{Op: "socketpair", Err: err}
	}
	var ts [2]*Transport
	for i, fd := range fds {
		t, err := newTransport(Config{Type: typ})
		if err != nil {
			if i > 0 {
				ts[0].Release() // closes fds[0]
			} else {
				unix.Close(fds[0])
			}
			unix.Close(fds[1])
			return nil, nil, err
		}
		t.dataFD = fd
		t.connected = true
		ts[i] = t
	}
	return ts[0], ts[1], nil
}

// SeqPacket reports whether t preserves message boundaries.
func (t *Transport) SeqPacket() bool { return t.cfg.Type == SeqPacket }

// String describes the configured endpoint of t, for logging.
func (t *Transport) String() string {
	mode := "connect"
	if t.cfg.Listen {
		mode = "listen"
	}
	return fmt.Sprintf("%s @%s (%v)", mode, t.cfg.Name, t.cfg.Type)
}

// Connected reports whether t currently has a peer.
func (t *Transport) Connected() bool {
	t.μ.RLock()
	defer t.μ.RUnlock()
	return t.connected
}

// Open establishes a connection to the peer. In connect mode it connects to
// the configured address. In listen mode it binds and listens on the address,
// then blocks until exactly one peer connects or t is interrupted. If t is
// already connected, Open does nothing.
func (t *Transport) Open() error {
	if t.interrupted() {
		return ErrInterrupted
	}
	if t.Connected() {
		return nil
	}
	if t.addr == nil {
		return &Error{Op: "open", Err: errors.New("transport has no address")}
	}
	if t.cfg.Listen {
		return t.openListen()
	}
	return t.openConnect()
}

func (t *Transport) socket() (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, t.cfg.Type.sysType()|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, &Error{Op: "socket", Err: err}
	}
	return fd, nil
}

func (t *Transport) openConnect() error {
	fd, err := t.socket()
	if err != nil {
		return err
	}
	for {
		err = unix.Connect(fd, t.addr)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		unix.Close(fd)
		return &Error{Op: "connect", Err: err}
	}
	t.μ.Lock()
	defer t.μ.Unlock()
	t.dataFD = fd
	t.connected = true
	return nil
}

func (t *Transport) openListen() error {
	lfd, err := t.socket()
	if err != nil {
		return err
	}
	if err := unix.Bind(lfd, t.addr); err != nil {
		unix.Close(lfd)
		return &Error{Op: "bind", Err: err}
	}
	if err := unix.Listen(lfd, t.cfg.backlog()); err != nil {
		unix.Close(lfd)
		return &Error{Op: "listen", Err: err}
	}

	afd, err := t.accept(lfd)
	if err != nil {
		unix.Close(lfd)
		return err
	}

	// The listening socket is kept until Close, but no further peers are
	// accepted on it.
	if err := unix.SetNonblock(lfd, true); err != nil {
		unix.Close(afd)
		unix.Close(lfd)
		return &Error{Op: "setnonblock", Err: err}
	}
	t.μ.Lock()
	defer t.μ.Unlock()
	t.ctlFD = lfd
	t.dataFD = afd
	t.connected = true
	return nil
}

// accept blocks until a peer connects to lfd or t is interrupted.
func (t *Transport) accept(lfd int) (int, error) {
	for {
		if _, err := t.poll(lfd, unix.POLLIN); err != nil {
			if errors.Is(err, ErrInterrupted) {
				return -1, err
			}
			return -1, &Error{Op: "accept", Err: err}
		}
		afd, _, err := unix.Accept4(lfd, unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			return afd, nil
		case unix.EINTR, unix.EAGAIN, unix.ECONNABORTED:
			continue
		default:
			return -1, &Error{Op: "accept", Err: err}
		}
	}
}

// WaitForData blocks until data (or end of stream) is available to read on
// the connection, or t is interrupted.
func (t *Transport) WaitForData() error {
	if !t.Connected() {
		return ErrNotConnected
	}
	_, err := t.poll(t.dataFD, unix.POLLIN)
	if err != nil && !errors.Is(err, ErrInterrupted) {
		return &Error{Op: "poll", Err: err}
	}
	return err
}

// Read reads available data into buf with a single read. It returns 0, nil
// when the peer has closed the connection. For a SeqPacket transport, each
// read returns at most one frame.
func (t *Transport) Read(buf []byte) (int, error) {
	if !t.Connected() {
		return 0, ErrNotConnected
	}
	for {
		n, err := unix.Read(t.dataFD, buf)
		if err == unix.EINTR {
			continue
		} else if err != nil {
			return 0, &Error{Op: "read", Err: err}
		}
		return n, nil
	}
}

// Write writes all of buf to the connection, retrying partial and
// interrupted writes.
func (t *Transport) Write(buf []byte) error {
	t.μ.RLock()
	defer t.μ.RUnlock()
	if !t.connected {
		return ErrNotConnected
	}
	for len(buf) > 0 {
		n, err := unix.SendmsgN(t.dataFD, buf, nil, nil, unix.MSG_NOSIGNAL)
		switch err {
		case nil:
			buf = buf[n:]
		case unix.EINTR:
			// retry
		case unix.EAGAIN:
			if err := waitWritable(t.dataFD); err != nil {
				return &Error{Op: "write", Err: err}
			}
		default:
			return &Error{Op: "write", Err: err}
		}
	}
	return nil
}

// Close closes the connection and the listening socket, if either is open.
// Close is idempotent.
func (t *Transport) Close() error {
	t.μ.RLock()
	if t.dataFD >= 0 {
		// Wake a writer blocked on a full socket buffer, so it releases the lock.
		unix.Shutdown(t.dataFD, unix.SHUT_RDWR)
	}
	t.μ.RUnlock()

	t.μ.Lock()
	defer t.μ.Unlock()
	var errs []error
	if t.dataFD >= 0 {
		errs = append(errs, unix.Close(t.dataFD))
		t.dataFD = -1
	}
	if t.ctlFD >= 0 {
		errs = append(errs, unix.Close(t.ctlFD))
		t.ctlFD = -1
	}
	t.connected = false
	if err := errors.Join(errs...); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

// Interrupt causes any blocked or future call to Open or WaitForData to
// report ErrInterrupted. It does not affect Write, so that pending output can
// still be flushed before Close. Interrupt is permanent.
func (t *Transport) Interrupt() {
	t.wake.Lock()
	defer t.wake.Unlock()
	if t.wake.fired || t.wake.fd < 0 {
		return
	}
	t.wake.fired = true
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	unix.Write(t.wake.fd, one[:])
}

func (t *Transport) interrupted() bool {
	t.wake.Lock()
	defer t.wake.Unlock()
	return t.wake.fired
}

// Release closes t and releases all its resources. The transport must not be
// used after Release returns.
func (t *Transport) Release() error {
	err := t.Close()
	t.wake.Lock()
	defer t.wake.Unlock()
	if t.wake.fd >= 0 {
		unix.Close(t.wake.fd)
		t.wake.fd = -1
	}
	return err
}

// poll blocks until fd reports one of the requested events, or t is
// interrupted. Interrupted system calls are retried.
func (t *Transport) poll(fd int, events int16) (int16, error) {
	t.wake.Lock()
	wfd := t.wake.fd
	t.wake.Unlock()
	if wfd < 0 {
		return 0, ErrInterrupted
	}

	fds := []unix.PollFd{
		{Fd: int32(fd), Events: events},
		{Fd: int32(wfd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		} else if err != nil {
			return 0, err
		}
		if fds[1].Revents != 0 {
			return 0, ErrInterrupted
		}
		if fds[0].Revents != 0 {
			return fds[0].Revents, nil
		}
	}
}

func waitWritable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
