// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package controller

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tungmangtdh3/wifid/internal/driver"
	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/wire"
)

// SupplicantConfig configures a Supplicant controller.
type SupplicantConfig struct {
	Interface      string        // default interface for ConnectToSupplicant
	CtrlDir        string        // directory of supplicant control sockets
	LocalDir       string        // where client sockets are bound; "" for the temp dir
	P2PSupported   bool          // default when a request does not say
	CommandTimeout time.Duration // per control request; 0 means 10s
}

func (c SupplicantConfig) timeout() time.Duration {
	if c.CommandTimeout <= 0 {
		return 10 * time.Second
	}
	return c.CommandTimeout
}

// Supplicant handles driver and wpa_supplicant requests.
type Supplicant struct {
	cfg  SupplicantConfig
	drv  driver.Driver
	sink Sink
	log  *slog.Logger

	μ    sync.Mutex
	link *link
}

var supplicantTypes = []wire.MessageType{
	wire.TypeLoadDriver,
	wire.TypeUnloadDriver,
	wire.TypeStartSupplicant,
	wire.TypeStopSupplicant,
	wire.TypeConnectToSupplicant,
	wire.TypeCloseSupplicantConnection,
	wire.TypeCommand,
}

// NewSupplicant constructs a supplicant controller that reports to sink.
func NewSupplicant(cfg SupplicantConfig, drv driver.Driver, sink Sink, log *slog.Logger) *Supplicant {
	return &Supplicant{
		cfg:  cfg,
		drv:  drv,
		sink: sink,
		log:  logging.NewComponentLogger(log, "supplicant"),
	}
}

func (*Supplicant) isController() {}

// Types implements a method of the Controller interface.
func (*Supplicant) Types() []wire.MessageType { return supplicantTypes }

// HandleRequest implements a method of the Controller interface.
func (s *Supplicant) HandleRequest(ctx context.Context, req *wire.Request) {
	data, err := s.handle(ctx, req)
	if err != nil {
		s.log.Warn("request failed", logging.String(logging.FieldMsgType, req.Type.String()), logging.Error(err))
	}
	s.sink.Respond(req.Type, wire.StatusOf(err), data)
}

func (s *Supplicant) handle(ctx context.Context, req *wire.Request) ([]byte, error) {
	switch req.Type {
	case wire.TypeLoadDriver:
		return nil, s.drv.LoadDriver(ctx)

	case wire.TypeUnloadDriver:
		return nil, s.drv.UnloadDriver(ctx)

	case wire.TypeStartSupplicant:
		return nil, s.drv.StartSupplicant(ctx, requestFlag(req, s.cfg.P2PSupported))

	case wire.TypeStopSupplicant:
		if err := s.Close(); err != nil {
			s.log.Debug("closing control connection", logging.Error(err))
		}
		return nil, s.drv.StopSupplicant(ctx, requestFlag(req, s.cfg.P2PSupported))

	case wire.TypeConnectToSupplicant:
		return nil, s.connect(ctx, requestString(req))

	case wire.TypeCloseSupplicantConnection:
		return nil, s.Close()

	case wire.TypeCommand:
		return s.command(ctx, requestString(req))
	}
	return nil, fmt.Errorf("unsupported request type %v", req.Type)
}

func (s *Supplicant) connect(ctx context.Context, iface string) error {
	if iface == "" {
		iface = s.cfg.Interface
	}
	if iface == "" {
		return fmt.Errorf("no interface specified")
	}

	s.μ.Lock()
	defer s.μ.Unlock()
	if s.link != nil {
		return nil // already connected
	}
	l, err := openLink(ctx, linkConfig{
		Path:     filepath.Join(s.cfg.CtrlDir, iface),
		LocalDir: s.cfg.LocalDir,
		Attempts: 1,
		Timeout:  s.cfg.timeout(),
	}, func(ev []byte) { s.sink.Notify(wire.NotifyEvent, ev) }, s.log)
	if err != nil {
		return err
	}
	s.link = l
	s.log.Info("connected to supplicant", logging.String("interface", iface))
	return nil
}

func (s *Supplicant) command(ctx context.Context, cmd string) ([]byte, error) {
	if cmd == "" {
		return nil, fmt.Errorf("empty command")
	}
	s.μ.Lock()
	l := s.link
	s.μ.Unlock()
	if l == nil {
		return nil, errNotConnected
	}
	reply, err := l.request(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if isFailure(reply) {
		return reply, fmt.Errorf("command %q failed", cmd)
	}
	return reply, nil
}

// Close implements a method of the Controller interface. It closes the
// control connection, if any.
func (s *Supplicant) Close() error {
	s.μ.Lock()
	l := s.link
	s.link = nil
	s.μ.Unlock()
	if l == nil {
		return nil
	}
	return l.close()
}
