// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package controller implements the controllers that carry out requests on
// behalf of the dispatcher.
//
// There are exactly two controllers: a [Supplicant] that manages the driver
// and the wpa_supplicant control connection, and a [Hostapd] that manages the
// hostapd control connection. Each request a controller receives produces
// exactly one response. Responses and unsolicited notifications are reported
// as [Event] values through a [Sink], which may be used from any goroutine.
package controller

import (
	"context"

	"github.com/tungmangtdh3/wifid/wire"
)

// A Controller handles requests of the message types routed to it.
// The set of implementations is closed.
type Controller interface {
	// HandleRequest carries out req and reports its result through the
	// controller's sink. It may block.
	HandleRequest(ctx context.Context, req *wire.Request)

	// Types reports the message types the controller handles.
	Types() []wire.MessageType

	// Close releases any connections held by the controller.
	Close() error

	isController()
}

// Kind distinguishes responses from notifications.
type Kind int

const (
	KindResponse     Kind = iota // completes a request
	KindNotification             // unsolicited
)

func (k Kind) String() string {
	if k == KindNotification {
		return "notification"
	}
	return "response"
}

// An Event is a result reported by a controller or monitor.
type Event struct {
	Kind   Kind
	Type   wire.MessageType      // for responses
	Notify wire.NotificationType // for notifications
	Status wire.Status           // for responses
	Data   []byte
}

// A Sink delivers events to the dispatcher. The zero Sink discards events.
type Sink struct {
	events chan<- Event
	done   <-chan struct{}
}

// NewSink returns a sink that sends to events until done is closed.
func NewSink(events chan<- Event, done <-chan struct{}) Sink {
	return Sink{events: events, done: done}
}

// Respond reports the completion of a request of type t. It reports whether
// the event was delivered.
func (s Sink) Respond(t wire.MessageType, status wire.Status, data []byte) bool {
	return s.send(Event{Kind: KindResponse, Type: t, Status: status, Data: data})
}

// Notify reports an unsolicited notification. It reports whether the event
// was delivered.
func (s Sink) Notify(n wire.NotificationType, data []byte) bool {
	return s.send(Event{Kind: KindNotification, Notify: n, Data: data})
}

func (s Sink) send(e Event) bool {
	if s.events == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- e:
		return true
	case <-s.done:
		return false
	}
}
