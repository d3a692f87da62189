// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/internal/wpactrl"
)

// errNotConnected is reported for commands issued without a control link.
var errNotConnected = errors.New("no control connection")

// detachTimeout bounds the wait for a DETACH reply when closing a link.
const detachTimeout = 500 * time.Millisecond

// terminating is the event sent by a control daemon that is shutting down.
var terminating = []byte("CTRL-EVENT-TERMINATING")

// A link is a pair of connections to a control socket: one for requests, and
// one attached to receive events. A goroutine forwards events to a callback
// until the link is closed or the daemon terminates.
type link struct {
	ctrl    *wpactrl.Conn
	mon     *wpactrl.Conn
	cfg     linkConfig
	timeout time.Duration
	log     *slog.Logger

	stop  context.CancelFunc
	tasks *taskgroup.Group
}

// linkConfig describes how to open a link.
type linkConfig struct {
	Path     string        // control socket path
	LocalDir string        // where client sockets are bound
	Attempts int           // connection attempts, at least 1
	Interval time.Duration // between attempts
	Timeout  time.Duration // per request
}

func openLink(ctx context.Context, cfg linkConfig, onEvent func([]byte), log *slog.Logger) (*link, error) {
	ctrl, err := wpactrl.OpenRetry(ctx, cfg.Path, cfg.LocalDir, cfg.Attempts, cfg.Interval)
	if err != nil {
		return nil, err
	}
	mon, err := wpactrl.OpenRetry(ctx, cfg.Path, cfg.LocalDir, cfg.Attempts, cfg.Interval)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	actx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := mon.Attach(actx); err != nil {
		ctrl.Close()
		mon.Close()
		return nil, fmt.Errorf("attach monitor: %w", err)
	}

	mctx, stop := context.WithCancel(context.Background())
	l := &link{
		ctrl:    ctrl,
		mon:     mon,
		cfg:     cfg,
		timeout: cfg.Timeout,
		log:     log.With(logging.String("ctrl_path", cfg.Path)),
		stop:    stop,
		tasks:   taskgroup.New(nil),
	}
	l.tasks.Go(func() error { l.monitor(mctx, onEvent); return nil })
	return l, nil
}

// monitor forwards events from the attached connection until ctx ends or the
// control daemon reports that it is terminating.
func (l *link) monitor(ctx context.Context, onEvent func([]byte)) {
	l.log.Debug("event monitor started")
	defer l.log.Debug("event monitor stopped")
	for {
		msg, err := l.mon.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.log.Warn("event monitor failed", logging.Error(err),
					logging.String(logging.FieldImpact, "control events will not be delivered"))
			}
			return
		}
		onEvent(msg)
		if bytes.Contains(msg, terminating) {
			return
		}
	}
}

// request sends a command on the control connection. If an earlier command
// timed out with its reply still outstanding, the control connection is
// replaced first so that the late reply is not mistaken for this one.
func (l *link) request(ctx context.Context, cmd string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	rsp, err := l.ctrl.Request(ctx, cmd, nil)
	if errors.Is(err, wpactrl.ErrStale) {
		if err := l.reopen(); err != nil {
			return nil, err
		}
		rsp, err = l.ctrl.Request(ctx, cmd, nil)
	}
	return rsp, err
}

// reopen replaces the control connection.
func (l *link) reopen() error {
	ctrl, err := wpactrl.Open(l.cfg.Path, l.cfg.LocalDir)
	if err != nil {
		return fmt.Errorf("reopen control connection: %w", err)
	}
	if err := l.ctrl.Close(); err != nil {
		l.log.Debug("close stale control connection", logging.Error(err))
	}
	l.ctrl = ctrl
	l.log.Debug("replaced stale control connection")
	return nil
}

// close stops the monitor, detaches, and closes both connections.
func (l *link) close() error {
	l.stop()
	l.tasks.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), min(l.timeout, detachTimeout))
	defer cancel()
	if err := l.mon.Detach(ctx); err != nil {
		l.log.Debug("detach failed", logging.Error(err))
	}
	return errors.Join(l.mon.Close(), l.ctrl.Close())
}
