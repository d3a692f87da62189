// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tungmangtdh3/wifid/transport"
	"github.com/tungmangtdh3/wifid/wire"
)

// A host is the host end of a connection to the daemon.
type host struct {
	tr      *transport.Transport
	stop    func() bool
	buf     []byte
	split   wire.Splitter
	pending [][]byte
	sid     uint16
}

// openHost opens a connection for cfg. Opening, and later reading from the
// connection, is interrupted when ctx ends.
func openHost(ctx context.Context, cfg transport.Config) (*host, error) {
	tr, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, tr.Interrupt)
	if err := tr.Open(); err != nil {
		stop()
		tr.Release()
		return nil, ctxErr(ctx, err)
	}
	return &host{
		tr:   tr,
		stop: stop,
		buf:  make([]byte, wire.MaxFrameSize),
		sid:  uint16(os.Getpid()),
	}, nil
}

// Close closes the connection and releases its resources.
func (h *host) Close() error {
	h.stop()
	return h.tr.Release()
}

func (h *host) nextID() uint16 { h.sid++; return h.sid }

// next returns the next complete frame from the daemon.
func (h *host) next(ctx context.Context) ([]byte, error) {
	for len(h.pending) == 0 {
		if err := h.tr.WaitForData(); err != nil {
			return nil, ctxErr(ctx, err)
		}
		n, err := h.tr.Read(h.buf)
		if err != nil {
			return nil, err
		} else if n == 0 {
			return nil, io.EOF
		}
		if h.tr.SeqPacket() {
			return bytes.Clone(h.buf[:n]), nil
		}
		frames, err := h.split.Feed(h.buf[:n])
		h.pending = append(h.pending, frames...)
		if err != nil && len(h.pending) == 0 {
			return nil, err
		}
	}
	f := h.pending[0]
	h.pending = h.pending[1:]
	return f, nil
}

// call sends req and returns its response. Notifications received before
// the response are passed to onNote.
func (h *host) call(ctx context.Context, req wire.Request, onNote func(*wire.Notification)) (*wire.Response, error) {
	if err := h.tr.Write(req.Encode()); err != nil {
		return nil, err
	}
	for {
		f, err := h.next(ctx)
		if err != nil {
			return nil, err
		}
		hdr, err := wire.DecodeHeader(f)
		if err != nil {
			return nil, err
		}
		switch hdr.Category {
		case wire.CategoryNotification:
			n, err := wire.ParseNotification(f)
			if err != nil {
				return nil, err
			}
			onNote(n)
		case wire.CategoryResponse:
			rsp, err := wire.ParseResponse(f)
			if err != nil {
				return nil, err
			}
			if rsp.Type == req.Type && rsp.SessionID == req.SessionID {
				return rsp, nil
			}
			fmt.Fprintf(os.Stderr, "ignored unexpected %v\n", rsp)
		default:
			return nil, fmt.Errorf("unexpected %v frame from daemon", hdr.Category)
		}
	}
}

// watch passes notifications to onNote until ctx ends or the connection
// fails.
func (h *host) watch(ctx context.Context, onNote func(*wire.Notification)) error {
	for {
		f, err := h.next(ctx)
		if err != nil {
			return err
		}
		if n, err := wire.ParseNotification(f); err == nil {
			onNote(n)
		}
	}
}

// ctxErr returns the error of ctx in place of an interruption caused by it.
func ctxErr(ctx context.Context, err error) error {
	if errors.Is(err, transport.ErrInterrupted) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
