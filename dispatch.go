// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package wifid

import (
	"bytes"
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/tungmangtdh3/wifid/controller"
	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/msgqueue"
	"github.com/tungmangtdh3/wifid/wire"
)

// A Producer accepts outbound messages for delivery. A *msgqueue.Queue
// satisfies this interface.
type Producer interface {
	Push(msgqueue.Message) error
}

// DispatcherOptions are optional settings for a Dispatcher. A nil
// *DispatcherOptions is ready for use and provides default values.
type DispatcherOptions struct {
	// Logger is used for diagnostics. If nil, nothing is logged.
	Logger *slog.Logger

	// EventBuffer is the capacity of the channel that carries controller
	// events to the dispatcher. If zero, a default is used.
	EventBuffer int
}

func (o *DispatcherOptions) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

func (o *DispatcherOptions) eventBuffer() int {
	if o == nil || o.EventBuffer <= 0 {
		return 16
	}
	return o.EventBuffer
}

// A Dispatcher routes inbound request frames to controllers, and turns the
// events reported by controllers into outbound frames.
//
// Requests are delivered to controllers synchronously by Dispatch. The
// responses and notifications controllers report through the Sink are
// handled by a separate goroutine, which runs between Start and Stop.
type Dispatcher struct {
	out      Producer
	log      *slog.Logger
	sessions *SessionRegistry
	metrics  *daemonMetrics
	events   chan controller.Event

	μ       sync.Mutex
	routes  map[wire.MessageType]controller.Controller
	done    chan struct{} // closed by Stop
	tasks   *taskgroup.Group
	stopped bool
}

// NewDispatcher constructs a new unstarted dispatcher that delivers outbound
// frames to out.
func NewDispatcher(out Producer, opts *DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		out:      out,
		log:      logging.NewComponentLogger(opts.logger(), "dispatcher"),
		sessions: new(SessionRegistry),
		events:   make(chan controller.Event, opts.eventBuffer()),
		routes:   make(map[wire.MessageType]controller.Controller),
		done:     make(chan struct{}),
	}
	d.metrics = newDaemonMetrics(d.sessions.Len)
	return d
}

// Route routes requests of the given types to ctrl. If no types are given,
// the types reported by ctrl are used. Route panics if a type is already
// routed, or if it is the Version type, which the dispatcher answers itself.
func (d *Dispatcher) Route(ctrl controller.Controller, types ...wire.MessageType) *Dispatcher {
	if len(types) == 0 {
		types = ctrl.Types()
	}
	d.μ.Lock()
	defer d.μ.Unlock()
	for _, t := range types {
		if t == wire.TypeVersion {
			panic("the Version type cannot be routed")
		}
		if _, ok := d.routes[t]; ok {
			panic(fmt.Sprintf("duplicate route for %v", t))
		}
		d.routes[t] = ctrl
	}
	return d
}

func (d *Dispatcher) route(t wire.MessageType) (controller.Controller, bool) {
	d.μ.Lock()
	defer d.μ.Unlock()
	c, ok := d.routes[t]
	return c, ok
}

// Sink returns a sink that delivers controller events to d. Events sent
// after d has stopped are discarded.
func (d *Dispatcher) Sink() controller.Sink { return controller.NewSink(d.events, d.done) }

// Sessions returns the session registry used by d.
func (d *Dispatcher) Sessions() *SessionRegistry { return d.sessions }

// Metrics returns the metrics map for d. It is safe for the caller to add
// additional metrics to the map while the dispatcher is active.
func (d *Dispatcher) Metrics() *expvar.Map { return d.metrics.emap }

// Start starts the goroutine that handles controller events. Start panics
// if d is already started or has been stopped.
func (d *Dispatcher) Start() *Dispatcher {
	d.μ.Lock()
	defer d.μ.Unlock()
	if d.stopped {
		panic("dispatcher has been stopped")
	} else if d.tasks != nil {
		panic("dispatcher is already started")
	}
	d.tasks = taskgroup.New(nil)
	d.tasks.Go(d.handleEvents)
	return d
}

// Stop stops accepting controller events, handles any already queued, and
// waits for the event goroutine to exit. Stop is idempotent.
func (d *Dispatcher) Stop() {
	d.μ.Lock()
	if d.stopped {
		d.μ.Unlock()
		return
	}
	d.stopped = true
	close(d.done)
	t := d.tasks
	d.μ.Unlock()

	if t == nil {
		d.drainEvents()
		return
	}
	t.Wait()
}

func (d *Dispatcher) handleEvents() error {
	for {
		select {
		case ev := <-d.events:
			d.handleEvent(ev)
		case <-d.done:
			d.drainEvents()
			return nil
		}
	}
}

func (d *Dispatcher) drainEvents() {
	for {
		select {
		case ev := <-d.events:
			d.handleEvent(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) handleEvent(ev controller.Event) {
	switch ev.Kind {
	case controller.KindResponse:
		d.OnResponse(ev.Type, ev.Status, ev.Data)
	case controller.KindNotification:
		d.OnNotification(ev.Notify, ev.Data)
	default:
		d.log.Error("unknown event kind", logging.Int(logging.FieldEventType, int(ev.Kind)))
	}
}

// Dispatch handles one inbound frame. Frames of a category other than
// request are logged and ignored. A request is recorded in the session
// registry and then answered: Version directly, unrouted types with an error
// status, and all others by the controller routed for their type. Dispatch
// reports an error only for a malformed frame.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) error {
	h, err := wire.DecodeHeader(frame)
	if err != nil {
		d.metrics.frameMalformed.Add(1)
		return err
	}
	if h.Category != wire.CategoryRequest {
		d.metrics.frameIgnored.Add(1)
		d.log.Warn("ignored inbound frame", logging.String("category", h.Category.String()),
			logging.Int(logging.FieldMsgType, int(h.Type)))
		return nil
	}
	req, err := wire.ParseRequest(frame)
	if err != nil {
		d.metrics.frameMalformed.Add(1)
		return err
	}
	req.Data = bytes.Clone(req.Data) // the frame buffer is reused
	d.metrics.requests.Add(1)
	d.sessions.Record(req.Type, req.SessionID)
	d.log.Debug("request", logging.String(logging.FieldMsgType, req.Type.String()),
		logging.Int(logging.FieldSessionID, int(req.SessionID)), logging.Int("length", len(req.Data)))

	if req.Type == wire.TypeVersion {
		d.OnResponse(wire.TypeVersion, wire.StatusOK, wire.CurrentVersion.Encode())
		return nil
	}
	ctrl, ok := d.route(req.Type)
	if !ok {
		d.log.Warn("no controller for request", logging.String(logging.FieldMsgType, req.Type.String()))
		d.OnResponse(req.Type, wire.StatusError, nil)
		return nil
	}
	ctrl.HandleRequest(ctx, req)
	return nil
}

// OnResponse sends a response of type t, correlated with the oldest pending
// request of that type. It panics with a *ProtocolError if there is no
// pending request of type t.
func (d *Dispatcher) OnResponse(t wire.MessageType, status wire.Status, data []byte) {
	id, err := d.sessions.Take(t)
	if err != nil {
		panic(err)
	}
	d.metrics.responses.Add(1)
	d.log.Debug("response", logging.String(logging.FieldMsgType, t.String()),
		logging.Int(logging.FieldSessionID, int(id)), logging.String("status", status.String()))
	d.push(wire.Response{Type: t, SessionID: id, Status: status, Data: data}.Encode())
}

// OnNotification sends a notification of type n.
func (d *Dispatcher) OnNotification(n wire.NotificationType, data []byte) {
	d.metrics.notifications.Add(1)
	d.log.Debug("notification", logging.String(logging.FieldEventType, n.String()), logging.Int("length", len(data)))
	d.push(wire.Notification{Type: n, Data: data}.Encode())
}

func (d *Dispatcher) push(frame []byte) {
	if len(frame) > wire.MaxFrameSize {
		d.log.Warn("outbound frame exceeds the frame limit", logging.Int("length", len(frame)),
			logging.String(logging.FieldImpact, "the host may truncate it"))
	}
	if err := d.out.Push(msgqueue.NewMessage(frame)); err != nil {
		d.metrics.frameDropped.Add(1)
		d.log.Warn("outbound frame dropped", logging.Error(err))
	}
}
