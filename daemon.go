// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package wifid

import (
	"context"
	"errors"
	"expvar"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/msgqueue"
	"github.com/tungmangtdh3/wifid/wire"
)

// A Transport is a connection to the host that can be opened and closed
// repeatedly. A *transport.Transport satisfies this interface.
//
// Write may be called concurrently with the other methods. All other methods
// are called from a single goroutine, except Interrupt.
type Transport interface {
	// Open establishes a connection, blocking until it is available or the
	// transport is interrupted.
	Open() error

	// WaitForData blocks until the connection is readable or the transport
	// is interrupted.
	WaitForData() error

	// Read reads available data with a single read. It returns 0, nil when
	// the peer has closed the connection.
	Read([]byte) (int, error)

	// Write writes all of its argument to the connection.
	Write([]byte) error

	// Close closes the connection, if open.
	Close() error

	// Interrupt permanently unblocks Open and WaitForData.
	Interrupt()

	// SeqPacket reports whether each Read returns exactly one frame.
	SeqPacket() bool
}

// Options are optional settings for a Daemon. A nil *Options is ready for
// use and provides default values.
type Options struct {
	// Logger is used for diagnostics. If nil, nothing is logged.
	Logger *slog.Logger

	// InitialBackoff is the delay after the first failure to open the
	// transport. If zero, 100ms is used.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts to open the transport,
	// which doubles after each consecutive failure. If zero, 5s is used.
	MaxBackoff time.Duration

	// ReadBufferSize is the size of the buffer for each read from the
	// transport. If zero, wire.MaxFrameSize is used.
	ReadBufferSize int

	// EventBuffer is the capacity of the controller event channel.
	// If zero, a default is used.
	EventBuffer int
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

func (o *Options) initialBackoff() time.Duration {
	if o == nil || o.InitialBackoff <= 0 {
		return 100 * time.Millisecond
	}
	return o.InitialBackoff
}

func (o *Options) maxBackoff() time.Duration {
	if o == nil || o.MaxBackoff <= 0 {
		return 5 * time.Second
	}
	return max(o.MaxBackoff, o.initialBackoff())
}

func (o *Options) readBufferSize() int {
	if o == nil || o.ReadBufferSize <= 0 {
		return wire.MaxFrameSize
	}
	return o.ReadBufferSize
}

func (o *Options) eventBuffer() int {
	if o == nil {
		return 0
	}
	return o.EventBuffer
}

// A Daemon serves requests from a host over a transport. It owns the
// outbound message queue and the dispatcher; controllers are attached by
// routing them on the dispatcher before calling Run.
type Daemon struct {
	tr   Transport
	opts *Options
	log  *slog.Logger

	disp  *Dispatcher
	queue *msgqueue.Queue
}

// New constructs a daemon that serves on tr.
func New(tr Transport, opts *Options) *Daemon {
	d := &Daemon{
		tr:   tr,
		opts: opts,
		log:  logging.NewComponentLogger(opts.logger(), "daemon"),
	}
	d.queue = msgqueue.New(msgqueue.ConsumerFunc(d.send), &msgqueue.Options{
		OnError: func(m msgqueue.Message, err error) {
			d.disp.metrics.sendFailures.Add(1)
			d.disp.metrics.frameDropped.Add(1)
			d.log.Warn("send failed", logging.Int("length", m.Len()), logging.Error(err))
		},
	})
	d.disp = NewDispatcher(d.queue, &DispatcherOptions{
		Logger:      opts.logger(),
		EventBuffer: opts.eventBuffer(),
	})
	return d
}

// Dispatcher returns the dispatcher for d, to which controllers are routed.
func (d *Daemon) Dispatcher() *Dispatcher { return d.disp }

// Metrics returns the metrics map for d.
func (d *Daemon) Metrics() *expvar.Map { return d.disp.Metrics() }

// send delivers one outbound frame to the transport.
func (d *Daemon) send(m msgqueue.Message) error {
	if err := d.tr.Write(m.Bytes()); err != nil {
		return err
	}
	d.disp.metrics.frameSent.Add(1)
	return nil
}

// Run serves connections until ctx ends. Each time a connection ends, Run
// closes the transport and opens it again; failures to open are retried
// with exponential backoff.
//
// When ctx ends, Run interrupts the transport, stops the dispatcher,
// delivers any queued outbound frames on the connection still open, and
// then closes the transport. Run must be called at most once.
func (d *Daemon) Run(ctx context.Context) error {
	d.queue.Start()
	d.disp.Start()
	stop := context.AfterFunc(ctx, d.tr.Interrupt)
	defer stop()

	d.log.Info("daemon started")
	d.loop(ctx)

	d.disp.Stop()
	qerr := d.queue.Close()
	err := errors.Join(qerr, d.tr.Close())
	if err != nil {
		d.log.Warn("shutdown incomplete", logging.Error(err))
	}
	d.log.Info("daemon stopped")
	return err
}

func (d *Daemon) loop(ctx context.Context) {
	backoff := d.opts.initialBackoff()
	for ctx.Err() == nil {
		if err := d.tr.Open(); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.disp.metrics.openFailures.Add(1)
			d.log.Warn("open failed", logging.Error(err), logging.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(2*backoff, d.opts.maxBackoff())
			continue
		}
		backoff = d.opts.initialBackoff()
		d.disp.metrics.connections.Add(1)

		log := d.log.With(logging.String(logging.FieldConnID, uuid.NewString()))
		log.Info("connection established")
		d.serve(ctx, log)
		if ctx.Err() != nil {
			return // leave the connection open to flush pending output
		}
		if err := d.tr.Close(); err != nil {
			log.Warn("close failed", logging.Error(err))
		}
		log.Info("connection closed")
	}
}

// serve reads and dispatches frames until the connection ends.
func (d *Daemon) serve(ctx context.Context, log *slog.Logger) {
	buf := make([]byte, d.opts.readBufferSize())
	var split wire.Splitter
	for {
		if err := d.tr.WaitForData(); err != nil {
			if ctx.Err() == nil {
				log.Warn("wait failed", logging.Error(err))
			}
			return
		}
		n, err := d.tr.Read(buf)
		if err != nil {
			log.Warn("read failed", logging.Error(err))
			return
		} else if n == 0 {
			log.Info("peer disconnected")
			return
		}

		if d.tr.SeqPacket() {
			d.dispatch(ctx, log, buf[:n])
			continue
		}
		frames, err := split.Feed(buf[:n])
		for _, f := range frames {
			d.dispatch(ctx, log, f)
		}
		if err != nil {
			d.disp.metrics.frameMalformed.Add(1)
			log.Warn("invalid stream input", logging.Error(err),
				logging.String(logging.FieldImpact, "connection dropped"))
			return
		}
	}
}

func (d *Daemon) dispatch(ctx context.Context, log *slog.Logger, frame []byte) {
	d.disp.metrics.frameRecv.Add(1)
	if err := d.disp.Dispatch(ctx, frame); err != nil {
		log.Warn("dropped malformed frame", logging.Error(err), logging.Int("length", len(frame)))
	}
}

// sleep waits for d or until ctx ends, and reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
