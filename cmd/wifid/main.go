// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Program wifid bridges a host process to the WiFi driver, wpa_supplicant,
// and hostapd over an abstract-namespace Unix-domain socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/tungmangtdh3/wifid"
	"github.com/tungmangtdh3/wifid/controller"
	"github.com/tungmangtdh3/wifid/internal/config"
	"github.com/tungmangtdh3/wifid/internal/driver"
	"github.com/tungmangtdh3/wifid/internal/ifmon"
	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run runs the daemon with the given arguments and returns its exit status.
func run(args []string, stderr io.Writer) int {
	cfg, err := loadConfig(args, stderr)
	if errors.Is(err, config.ErrHelp) {
		return 1
	} else if err != nil {
		fmt.Fprintf(stderr, "wifid: %v\n", err)
		return 1
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "wifid: %v\n", err)
		return 1
	}

	if cfg.LockFile != "" {
		lock := flock.New(cfg.LockFile)
		ok, err := lock.TryLock()
		if err != nil {
			log.Error("acquire lock failed", logging.Error(err), logging.String("path", cfg.LockFile))
			return 1
		} else if !ok {
			log.Error("another instance is running", logging.String("path", cfg.LockFile),
				logging.String(logging.FieldErrorHint, "stop the other instance or set lock_file"))
			return 1
		}
		defer lock.Unlock()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := serve(ctx, cfg, log); err != nil {
		log.Error("daemon failed", logging.Error(err))
		return 1
	}
	return 0
}

// loadConfig parses the command line and the configuration file it names,
// and returns the validated result.
func loadConfig(args []string, stderr io.Writer) (config.Config, error) {
	fa, err := config.ParseArgs(filepath.Base(os.Args[0]), args, stderr)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(fa.Config)
	if err != nil {
		return cfg, err
	}
	fa.Apply(&cfg)
	return cfg, cfg.Validate()
}

// serve constructs the daemon and its controllers for cfg, and runs it until
// ctx ends.
func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	typ, err := transport.ParseSocketType(cfg.Socket.Type)
	if err != nil {
		return err
	}
	tr, err := transport.New(transport.Config{
		Name:   cfg.Socket.Name,
		Type:   typ,
		Listen: cfg.Socket.Listen,
	})
	if err != nil {
		return err
	}
	defer tr.Release()

	d := wifid.New(tr, &wifid.Options{
		Logger:         log,
		InitialBackoff: cfg.Reconnect.InitialDelay(),
		MaxBackoff:     cfg.Reconnect.MaxDelay(),
		ReadBufferSize: cfg.Socket.ReadBuffer,
	})
	disp := d.Dispatcher()

	sup := controller.NewSupplicant(controller.SupplicantConfig{
		Interface:      cfg.Supplicant.Interface,
		CtrlDir:        cfg.Supplicant.CtrlDir,
		P2PSupported:   cfg.Supplicant.P2PSupported,
		CommandTimeout: cfg.Supplicant.CommandTimeout(),
	}, driver.NewExec(driver.Commands{
		LoadDriver:   cfg.Supplicant.LoadDriver,
		UnloadDriver: cfg.Supplicant.UnloadDriver,
		Start:        cfg.Supplicant.Start,
		Stop:         cfg.Supplicant.Stop,
		StartP2P:     cfg.Supplicant.StartP2P,
		StopP2P:      cfg.Supplicant.StopP2P,
	}, log), disp.Sink(), log)
	defer sup.Close()

	hap := controller.NewHostapd(controller.HostapdConfig{
		CtrlDir:        cfg.Hostapd.CtrlDir,
		ConnectRetries: cfg.Hostapd.ConnectRetries,
		RetryInterval:  cfg.Hostapd.RetryInterval(),
		CommandTimeout: cfg.Supplicant.CommandTimeout(),
	}, disp.Sink(), log)
	defer hap.Close()

	disp.Route(sup).Route(hap)

	if cfg.Monitor.Enabled {
		mon := ifmon.New(cfg.Monitor.InterfacePrefix, disp.Sink(), log)
		if err := mon.Start(ctx); err != nil {
			return err
		}
		defer mon.Stop()
	}

	log.Info("serving",
		logging.String("socket", cfg.Socket.Name),
		logging.String("type", typ.String()),
		logging.Bool("listen", cfg.Socket.Listen))
	return d.Run(ctx)
}
