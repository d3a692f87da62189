// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package controller_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/tungmangtdh3/wifid/controller"
	"github.com/tungmangtdh3/wifid/wire"
)

// fakeCtrl is a control socket that tracks attached clients and answers
// other commands with its handler.
type fakeCtrl struct {
	conn *net.UnixConn
	done chan struct{}

	μ        sync.Mutex
	attached map[string]*net.UnixAddr
}

func newFakeCtrl(t *testing.T, path string, handle func(cmd string) string) *fakeCtrl {
	t.Helper()
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	f := &fakeCtrl{conn: conn, done: make(chan struct{}), attached: make(map[string]*net.UnixAddr)}
	go func() {
		defer close(f.done)
		buf := make([]byte, 4096)
		for {
			n, from, err := conn.ReadFromUnix(buf)
			if err != nil {
				return
			}
			var reply string
			switch cmd := string(buf[:n]); cmd {
			case "ATTACH":
				f.μ.Lock()
				f.attached[from.Name] = from
				f.μ.Unlock()
				reply = "OK\n"
			case "DETACH":
				f.μ.Lock()
				delete(f.attached, from.Name)
				f.μ.Unlock()
				reply = "OK\n"
			default:
				reply = handle(cmd)
			}
			conn.WriteToUnix([]byte(reply), from)
		}
	}()
	t.Cleanup(func() { conn.Close(); <-f.done })
	return f
}

// event sends msg to every attached client.
func (f *fakeCtrl) event(msg string) {
	f.μ.Lock()
	defer f.μ.Unlock()
	for _, addr := range f.attached {
		f.conn.WriteToUnix([]byte(msg), addr)
	}
}

func (f *fakeCtrl) numAttached() int {
	f.μ.Lock()
	defer f.μ.Unlock()
	return len(f.attached)
}

// fakeDriver records the calls made to it.
type fakeDriver struct {
	μ     sync.Mutex
	calls []string
	fail  map[string]bool
}

func (d *fakeDriver) call(name string) error {
	d.μ.Lock()
	defer d.μ.Unlock()
	d.calls = append(d.calls, name)
	if d.fail[name] {
		return errors.New(name + " failed")
	}
	return nil
}

func (d *fakeDriver) LoadDriver(context.Context) error   { return d.call("load") }
func (d *fakeDriver) UnloadDriver(context.Context) error { return d.call("unload") }

func (d *fakeDriver) StartSupplicant(_ context.Context, p2p bool) error {
	if p2p {
		return d.call("start-p2p")
	}
	return d.call("start")
}

func (d *fakeDriver) StopSupplicant(_ context.Context, p2p bool) error {
	if p2p {
		return d.call("stop-p2p")
	}
	return d.call("stop")
}

// testSink returns a sink and the channel it delivers to.
func testSink(t *testing.T) (controller.Sink, <-chan controller.Event) {
	events := make(chan controller.Event, 16)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	return controller.NewSink(events, done), events
}

func nextEvent(t *testing.T, events <-chan controller.Event) controller.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for an event")
		return controller.Event{}
	}
}

func request(typ wire.MessageType, data string) *wire.Request {
	var buf []byte
	if data != "" {
		buf = []byte(data)
	}
	return &wire.Request{Type: typ, SessionID: 1, Data: buf}
}

func response(typ wire.MessageType, status wire.Status, data string) controller.Event {
	ev := controller.Event{Kind: controller.KindResponse, Type: typ, Status: status}
	if data != "" {
		ev.Data = []byte(data)
	}
	return ev
}

func TestSupplicantDriver(t *testing.T) {
	drv := &fakeDriver{fail: map[string]bool{"unload": true}}
	sink, events := testSink(t)
	s := controller.NewSupplicant(controller.SupplicantConfig{P2PSupported: true}, drv, sink, nil)
	defer s.Close()

	tests := []struct {
		req  *wire.Request
		want controller.Event
	}{
		{request(wire.TypeLoadDriver, ""), response(wire.TypeLoadDriver, wire.StatusOK, "")},
		{request(wire.TypeUnloadDriver, ""), response(wire.TypeUnloadDriver, wire.StatusError, "")},
		{request(wire.TypeStartSupplicant, "\x00"), response(wire.TypeStartSupplicant, wire.StatusOK, "")},
		{request(wire.TypeStartSupplicant, ""), response(wire.TypeStartSupplicant, wire.StatusOK, "")},
		{request(wire.TypeStopSupplicant, "\x01"), response(wire.TypeStopSupplicant, wire.StatusOK, "")},
		{request(wire.TypeCommand, "PING"), response(wire.TypeCommand, wire.StatusError, "")},
		{request(wire.TypeHostapdCommand, "PING"), response(wire.TypeHostapdCommand, wire.StatusError, "")},
	}
	for _, tc := range tests {
		s.HandleRequest(t.Context(), tc.req)
		if diff := cmp.Diff(tc.want, nextEvent(t, events)); diff != "" {
			t.Errorf("HandleRequest(%v) event (-want, +got):\n%s", tc.req, diff)
		}
	}

	want := []string{"load", "unload", "start", "start-p2p", "stop-p2p"}
	if diff := cmp.Diff(want, drv.calls); diff != "" {
		t.Errorf("Driver calls (-want, +got):\n%s", diff)
	}
}

func TestSupplicantControl(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	dir := t.TempDir()
	fc := newFakeCtrl(t, filepath.Join(dir, "wlan1"), func(cmd string) string {
		switch cmd {
		case "PING":
			return "PONG\n"
		default:
			return "FAIL\n"
		}
	})
	sink, events := testSink(t)
	s := controller.NewSupplicant(controller.SupplicantConfig{
		Interface: "wlan0",
		CtrlDir:   dir,
		LocalDir:  dir,
	}, &fakeDriver{}, sink, nil)
	ctx := t.Context()

	// The default interface has no control socket.
	s.HandleRequest(ctx, request(wire.TypeConnectToSupplicant, ""))
	if ev := nextEvent(t, events); ev.Status != wire.StatusError {
		t.Errorf("Connect to missing socket: got %+v, want error", ev)
	}

	s.HandleRequest(ctx, request(wire.TypeConnectToSupplicant, "wlan1\x00"))
	if diff := cmp.Diff(response(wire.TypeConnectToSupplicant, wire.StatusOK, ""), nextEvent(t, events)); diff != "" {
		t.Fatalf("Connect (-want, +got):\n%s", diff)
	}
	if n := fc.numAttached(); n != 1 {
		t.Errorf("Attached clients: got %d, want 1", n)
	}

	s.HandleRequest(ctx, request(wire.TypeCommand, "PING\x00"))
	if diff := cmp.Diff(response(wire.TypeCommand, wire.StatusOK, "PONG\n"), nextEvent(t, events)); diff != "" {
		t.Errorf("Command PING (-want, +got):\n%s", diff)
	}
	s.HandleRequest(ctx, request(wire.TypeCommand, "SCAN"))
	if diff := cmp.Diff(response(wire.TypeCommand, wire.StatusError, "FAIL\n"), nextEvent(t, events)); diff != "" {
		t.Errorf("Command SCAN (-want, +got):\n%s", diff)
	}

	fc.event("<3>CTRL-EVENT-CONNECTED - Connection to 00:11:22:33:44:55 completed")
	want := controller.Event{
		Kind:   controller.KindNotification,
		Notify: wire.NotifyEvent,
		Data:   []byte("<3>CTRL-EVENT-CONNECTED - Connection to 00:11:22:33:44:55 completed"),
	}
	if diff := cmp.Diff(want, nextEvent(t, events)); diff != "" {
		t.Errorf("Notification (-want, +got):\n%s", diff)
	}

	s.HandleRequest(ctx, request(wire.TypeCloseSupplicantConnection, ""))
	if diff := cmp.Diff(response(wire.TypeCloseSupplicantConnection, wire.StatusOK, ""), nextEvent(t, events)); diff != "" {
		t.Errorf("Close (-want, +got):\n%s", diff)
	}
	if n := fc.numAttached(); n != 0 {
		t.Errorf("Attached clients after close: got %d, want 0", n)
	}
}

func TestHostapd(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	dir := t.TempDir()
	ctrlDir := filepath.Join(dir, "hostapd")
	if err := os.Mkdir(ctrlDir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	stations := map[string]string{
		"STA-FIRST":                  "00:11:22:33:44:01\nflags=[AUTH][ASSOC]\n",
		"STA-NEXT 00:11:22:33:44:01": "00:11:22:33:44:02\nflags=[AUTH]\n",
		"STA-NEXT 00:11:22:33:44:02": "",
	}
	fc := newFakeCtrl(t, filepath.Join(ctrlDir, "wlan0"), func(cmd string) string {
		if rsp, ok := stations[cmd]; ok {
			return rsp
		}
		if cmd == "STATUS" {
			return "state=ENABLED\n"
		}
		return "UNKNOWN COMMAND\n"
	})

	sink, events := testSink(t)
	h := controller.NewHostapd(controller.HostapdConfig{
		CtrlDir:        ctrlDir,
		LocalDir:       dir,
		ConnectRetries: 3,
	}, sink, nil)
	ctx := t.Context()

	h.HandleRequest(ctx, request(wire.TypeHostapdGetStations, ""))
	if ev := nextEvent(t, events); ev.Status != wire.StatusError {
		t.Errorf("GetStations before connect: got %+v, want error", ev)
	}

	h.HandleRequest(ctx, request(wire.TypeConnectToHostapd, ""))
	if diff := cmp.Diff(response(wire.TypeConnectToHostapd, wire.StatusOK, ""), nextEvent(t, events)); diff != "" {
		t.Fatalf("Connect (-want, +got):\n%s", diff)
	}

	h.HandleRequest(ctx, request(wire.TypeHostapdGetStations, ""))
	wantSta := response(wire.TypeHostapdGetStations, wire.StatusOK, "00:11:22:33:44:01\n00:11:22:33:44:02")
	if diff := cmp.Diff(wantSta, nextEvent(t, events)); diff != "" {
		t.Errorf("GetStations (-want, +got):\n%s", diff)
	}

	h.HandleRequest(ctx, request(wire.TypeHostapdCommand, "STATUS"))
	if diff := cmp.Diff(response(wire.TypeHostapdCommand, wire.StatusOK, "state=ENABLED\n"), nextEvent(t, events)); diff != "" {
		t.Errorf("Command (-want, +got):\n%s", diff)
	}
	h.HandleRequest(ctx, request(wire.TypeHostapdCommand, "BOGUS"))
	if ev := nextEvent(t, events); ev.Status != wire.StatusError {
		t.Errorf("Unknown command: got %+v, want error", ev)
	}

	fc.event("<3>AP-STA-CONNECTED 00:11:22:33:44:03")
	if ev := nextEvent(t, events); ev.Kind != controller.KindNotification || ev.Notify != wire.NotifyHostapdEvent {
		t.Errorf("Event: got %+v, want hostapd notification", ev)
	}

	if err := h.Close(); err != nil {
		t.Errorf("Close: unexpected error: %v", err)
	}
}

func TestSinkDone(t *testing.T) {
	events := make(chan controller.Event) // unbuffered, never read
	done := make(chan struct{})
	close(done)
	s := controller.NewSink(events, done)
	if s.Respond(wire.TypeCommand, wire.StatusOK, nil) {
		t.Error("Respond after done: got true, want false")
	}
	var zero controller.Sink
	if zero.Notify(wire.NotifyEvent, nil) {
		t.Error("Notify on zero sink: got true, want false")
	}
}
