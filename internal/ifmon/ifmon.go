// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package ifmon reports network interfaces appearing and disappearing, as
// notifications to the host.
package ifmon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/pilebones/go-udev/netlink"
	"github.com/tungmangtdh3/wifid/controller"
	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/wire"
)

// A Monitor listens for kernel uevents about network interfaces and sends a
// NotifyInterface notification with data "<action> <interface>" for each
// interface whose name has the configured prefix.
type Monitor struct {
	prefix string
	sink   controller.Sink
	log    *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	tasks   *taskgroup.Group
	running bool
}

// New creates an unstarted monitor for interfaces whose names begin with
// prefix. An empty prefix matches all interfaces.
func New(prefix string, sink controller.Sink, log *slog.Logger) *Monitor {
	return &Monitor{
		prefix: prefix,
		sink:   sink,
		log:    logging.NewComponentLogger(log, "ifmon"),
	}
}

// Start begins listening for uevents. Failure to open the netlink socket is
// logged and is not fatal: the daemon works without interface notifications.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.KernelEvent); err != nil {
		m.log.Warn("failed to connect to netlink socket",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "interface notifications unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	quit := m.quit
	m.tasks = taskgroup.New(nil)
	m.tasks.Go(func() error { m.monitorLoop(ctx, conn, quit); return nil })

	m.log.Info("interface monitor started", logging.String("prefix", m.prefix))
	return nil
}

// Stop shuts down the monitor and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	t := m.tasks
	m.quit, m.tasks = nil, nil
	m.running = false
	m.mu.Unlock()

	t.Wait()

	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
	m.log.Info("interface monitor stopped")
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.matcher())
	defer close(monitorQuit)

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case ev := <-queue:
			m.handleEvent(ev)
		case err := <-errs:
			m.log.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "interface notifications may be missed"),
			)
		}
	}
}

// matcher selects interface additions and removals.
func (m *Monitor) matcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env:    map[string]string{"SUBSYSTEM": "net"},
	})
	return rules
}

// handleEvent sends a notification for ev if it concerns a monitored
// interface, and reports whether it did.
func (m *Monitor) handleEvent(ev netlink.UEvent) bool {
	iface := ev.Env["INTERFACE"]
	if iface == "" {
		m.log.Debug("ignoring event without interface", logging.String("kobj", ev.KObj))
		return false
	}
	if !strings.HasPrefix(iface, m.prefix) {
		return false
	}
	m.log.Info("interface changed",
		logging.String(logging.FieldEventType, "interface_"+string(ev.Action)),
		logging.String("interface", iface))
	return m.sink.Notify(wire.NotifyInterface, []byte(string(ev.Action)+" "+iface))
}
