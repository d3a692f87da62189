// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package controller

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/wire"
)

// maxStations bounds the station walk in case the daemon never reports the
// end of the list.
const maxStations = 2048

// HostapdConfig configures a Hostapd controller.
type HostapdConfig struct {
	CtrlDir        string        // directory of hostapd control sockets
	LocalDir       string        // where client sockets are bound; "" for the temp dir
	ConnectRetries int           // connection attempts; 0 means 20
	RetryInterval  time.Duration // between attempts; 0 means 1ms
	CommandTimeout time.Duration // per control request; 0 means 10s
}

func (c HostapdConfig) withDefaults() HostapdConfig {
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 20
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Millisecond
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	return c
}

// Hostapd handles requests for the hostapd control interface.
type Hostapd struct {
	cfg  HostapdConfig
	sink Sink
	log  *slog.Logger

	μ    sync.Mutex
	link *link
}

var hostapdTypes = []wire.MessageType{
	wire.TypeConnectToHostapd,
	wire.TypeCloseHostapdConnection,
	wire.TypeHostapdGetStations,
	wire.TypeHostapdCommand,
}

// NewHostapd constructs a hostapd controller that reports to sink.
func NewHostapd(cfg HostapdConfig, sink Sink, log *slog.Logger) *Hostapd {
	return &Hostapd{
		cfg:  cfg.withDefaults(),
		sink: sink,
		log:  logging.NewComponentLogger(log, "hostapd"),
	}
}

func (*Hostapd) isController() {}

// Types implements a method of the Controller interface.
func (*Hostapd) Types() []wire.MessageType { return hostapdTypes }

// HandleRequest implements a method of the Controller interface.
func (h *Hostapd) HandleRequest(ctx context.Context, req *wire.Request) {
	data, err := h.handle(ctx, req)
	if err != nil {
		h.log.Warn("request failed", logging.String(logging.FieldMsgType, req.Type.String()), logging.Error(err))
	}
	h.sink.Respond(req.Type, wire.StatusOf(err), data)
}

func (h *Hostapd) handle(ctx context.Context, req *wire.Request) ([]byte, error) {
	switch req.Type {
	case wire.TypeConnectToHostapd:
		return nil, h.connect(ctx, requestString(req))

	case wire.TypeCloseHostapdConnection:
		return nil, h.Close()

	case wire.TypeHostapdGetStations:
		sta, err := h.stations(ctx)
		if err != nil {
			return nil, err
		}
		return bytes.Join(sta, []byte("\n")), nil

	case wire.TypeHostapdCommand:
		l, err := h.current()
		if err != nil {
			return nil, err
		}
		cmd := requestString(req)
		if cmd == "" {
			return nil, fmt.Errorf("empty command")
		}
		reply, err := l.request(ctx, cmd)
		if err == nil && isFailure(reply) {
			err = fmt.Errorf("command %q failed", cmd)
		}
		return reply, err
	}
	return nil, fmt.Errorf("unsupported request type %v", req.Type)
}

// findInterface returns the name of the first control socket in the control
// directory.
func (h *Hostapd) findInterface() (string, error) {
	ents, err := os.ReadDir(h.cfg.CtrlDir)
	if err != nil {
		return "", fmt.Errorf("list control sockets: %w", err)
	}
	var names []string
	for _, e := range ents {
		if e.Type()&os.ModeSocket != 0 {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no control sockets in %q", h.cfg.CtrlDir)
	}
	sort.Strings(names)
	return names[0], nil
}

func (h *Hostapd) connect(ctx context.Context, iface string) error {
	h.μ.Lock()
	defer h.μ.Unlock()
	if h.link != nil {
		return nil // already connected
	}
	if iface == "" {
		var err error
		if iface, err = h.findInterface(); err != nil {
			return err
		}
	}
	l, err := openLink(ctx, linkConfig{
		Path:     filepath.Join(h.cfg.CtrlDir, iface),
		LocalDir: h.cfg.LocalDir,
		Attempts: h.cfg.ConnectRetries,
		Interval: h.cfg.RetryInterval,
		Timeout:  h.cfg.CommandTimeout,
	}, func(ev []byte) { h.sink.Notify(wire.NotifyHostapdEvent, ev) }, h.log)
	if err != nil {
		return err
	}
	h.link = l
	h.log.Info("connected to hostapd", logging.String("interface", iface))
	return nil
}

func (h *Hostapd) current() (*link, error) {
	h.μ.Lock()
	defer h.μ.Unlock()
	if h.link == nil {
		return nil, errNotConnected
	}
	return h.link, nil
}

// stations returns the addresses of the associated stations. Each reply to
// STA-FIRST and STA-NEXT begins with the station address on its own line;
// an empty or failed reply ends the list.
func (h *Hostapd) stations(ctx context.Context) ([][]byte, error) {
	l, err := h.current()
	if err != nil {
		return nil, err
	}
	var out [][]byte
	reply, err := l.request(ctx, "STA-FIRST")
	for err == nil && len(reply) != 0 && !isFailure(reply) && len(out) < maxStations {
		addr, _, _ := bytes.Cut(reply, []byte("\n"))
		out = append(out, addr)
		reply, err = l.request(ctx, "STA-NEXT "+string(addr))
	}
	return out, err
}

// Close implements a method of the Controller interface. It closes the
// control connection, if any.
func (h *Hostapd) Close() error {
	h.μ.Lock()
	l := h.link
	h.link = nil
	h.μ.Unlock()
	if l == nil {
		return nil
	}
	return l.close()
}
