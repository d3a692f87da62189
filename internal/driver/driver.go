// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package driver controls the WiFi driver and supplicant processes by running
// configured commands.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tungmangtdh3/wifid/internal/logging"
	"golang.org/x/sys/unix"
)

// Driver manages the lifecycle of the driver and the supplicant.
type Driver interface {
	LoadDriver(ctx context.Context) error
	UnloadDriver(ctx context.Context) error
	StartSupplicant(ctx context.Context, p2p bool) error
	StopSupplicant(ctx context.Context, p2p bool) error
}

// Commands are the command lines run for each operation. An empty command
// makes the operation a successful no-op. The P2P variants are used instead
// of Start and Stop when P2P support is requested and they are non-empty.
type Commands struct {
	LoadDriver   []string
	UnloadDriver []string
	Start        []string
	Stop         []string
	StartP2P     []string
	StopP2P      []string
}

// Exec is a Driver that runs external commands.
type Exec struct {
	cmds Commands
	log  *slog.Logger
}

// NewExec constructs an Exec driver for the given commands.
func NewExec(cmds Commands, log *slog.Logger) *Exec {
	return &Exec{cmds: cmds, log: logging.NewComponentLogger(log, "driver")}
}

// LoadDriver implements a method of the Driver interface.
func (e *Exec) LoadDriver(ctx context.Context) error {
	return e.run(ctx, "load driver", e.cmds.LoadDriver)
}

// UnloadDriver implements a method of the Driver interface.
func (e *Exec) UnloadDriver(ctx context.Context) error {
	return e.run(ctx, "unload driver", e.cmds.UnloadDriver)
}

// StartSupplicant implements a method of the Driver interface.
func (e *Exec) StartSupplicant(ctx context.Context, p2p bool) error {
	if p2p && len(e.cmds.StartP2P) != 0 {
		return e.run(ctx, "start supplicant (p2p)", e.cmds.StartP2P)
	}
	return e.run(ctx, "start supplicant", e.cmds.Start)
}

// StopSupplicant implements a method of the Driver interface.
func (e *Exec) StopSupplicant(ctx context.Context, p2p bool) error {
	if p2p && len(e.cmds.StopP2P) != 0 {
		return e.run(ctx, "stop supplicant (p2p)", e.cmds.StopP2P)
	}
	return e.run(ctx, "stop supplicant", e.cmds.Stop)
}

func (e *Exec) run(ctx context.Context, op string, argv []string) error {
	if len(argv) == 0 {
		e.log.Debug("no command configured", logging.String("op", op))
		return nil
	}
	if filepath.IsAbs(argv[0]) {
		if err := unix.Access(argv[0], unix.X_OK); err != nil {
			return fmt.Errorf("%s: %s is not executable: %w", op, argv[0], err)
		}
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	e.log.Debug("running command", logging.String("op", op), logging.String("argv", strings.Join(argv, " ")))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %s", op, err, msg)
	}
	return nil
}
