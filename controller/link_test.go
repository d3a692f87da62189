// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package controller

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/tungmangtdh3/wifid/internal/logging"
)

// ctrlServer is a control socket that answers ATTACH and DETACH itself and
// other commands with its handler.
type ctrlServer struct {
	conn *net.UnixConn
	path string
	done chan struct{}

	μ        sync.Mutex
	attached []*net.UnixAddr
}

func newCtrlServer(t *testing.T, dir string, handle func(cmd string) string) *ctrlServer {
	t.Helper()
	path := filepath.Join(dir, "wlan0")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	s := &ctrlServer{conn: conn, path: path, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		buf := make([]byte, 4096)
		for {
			n, from, err := conn.ReadFromUnix(buf)
			if err != nil {
				return
			}
			reply := "OK\n"
			switch cmd := string(buf[:n]); cmd {
			case "ATTACH":
				s.μ.Lock()
				s.attached = append(s.attached, from)
				s.μ.Unlock()
			case "DETACH":
			default:
				reply = handle(cmd)
			}
			conn.WriteToUnix([]byte(reply), from)
		}
	}()
	t.Cleanup(func() { conn.Close(); <-s.done })
	return s
}

func (s *ctrlServer) event(msg string) {
	s.μ.Lock()
	defer s.μ.Unlock()
	for _, addr := range s.attached {
		s.conn.WriteToUnix([]byte(msg), addr)
	}
}

func TestLinkTerminating(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	dir := t.TempDir()
	srv := newCtrlServer(t, dir, func(string) string { return "FAIL\n" })

	events := make(chan string, 4)
	l, err := openLink(t.Context(), linkConfig{
		Path:     srv.path,
		LocalDir: dir,
		Attempts: 1,
		Timeout:  time.Second,
	}, func(msg []byte) { events <- string(msg) }, logging.NewNop())
	if err != nil {
		t.Fatalf("openLink: unexpected error: %v", err)
	}
	defer l.close()

	srv.event("<3>CTRL-EVENT-TERMINATING")
	select {
	case got := <-events:
		if got != "<3>CTRL-EVENT-TERMINATING" {
			t.Errorf("Event: got %q, want terminating", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the terminating event")
	}

	// The monitor exits on its own, without the link being closed.
	stopped := make(chan struct{})
	go func() { l.tasks.Wait(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not stop after the terminating event")
	}
}

func TestLinkStaleReopen(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	dir := t.TempDir()
	srv := newCtrlServer(t, dir, func(cmd string) string {
		if cmd == "SLOW" {
			time.Sleep(150 * time.Millisecond)
		}
		return cmd + "-REPLY\n"
	})

	l, err := openLink(t.Context(), linkConfig{
		Path:     srv.path,
		LocalDir: dir,
		Attempts: 1,
		Timeout:  50 * time.Millisecond,
	}, func([]byte) {}, logging.NewNop())
	if err != nil {
		t.Fatalf("openLink: unexpected error: %v", err)
	}
	defer l.close()

	if rsp, err := l.request(t.Context(), "SLOW"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Request SLOW: got (%q, %v), want %v", rsp, err, context.DeadlineExceeded)
	}

	// Let the late reply arrive on the old connection.
	time.Sleep(200 * time.Millisecond)
	rsp, err := l.request(t.Context(), "STATUS")
	if err != nil || string(rsp) != "STATUS-REPLY\n" {
		t.Errorf("Request STATUS: got (%q, %v), want STATUS-REPLY", rsp, err)
	}
}
