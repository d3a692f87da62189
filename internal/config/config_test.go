// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package config_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tungmangtdh3/wifid/internal/config"
)

func writeFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wifid.toml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate defaults: unexpected error: %v", err)
	}
	if cfg.Socket.Name != "wifid" || cfg.Socket.Type != "seqpacket" || cfg.Socket.Listen {
		t.Errorf("Socket defaults: got %+v", cfg.Socket)
	}
	if got := cfg.Reconnect.InitialDelay(); got != 100*time.Millisecond {
		t.Errorf("InitialDelay: got %v, want 100ms", got)
	}
	if got := cfg.Supplicant.CommandTimeout(); got != 10*time.Second {
		t.Errorf("CommandTimeout: got %v, want 10s", got)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
lock_file = ""

[socket]
name = "wifi-test"
type = "stream"

[supplicant]
interface = "wlan1"
load_driver = ["/sbin/modprobe", "bcmdhd"]

[hostapd]
connect_retries = 5

[monitor]
enabled = false
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: unexpected error: %v", err)
	}

	want := config.Default()
	want.LockFile = ""
	want.Socket.Name = "wifi-test"
	want.Socket.Type = "stream"
	want.Supplicant.Interface = "wlan1"
	want.Supplicant.LoadDriver = []string{"/sbin/modprobe", "bcmdhd"}
	want.Hostapd.ConnectRetries = 5
	want.Monitor.Enabled = false
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load (-want, +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, text string
	}{
		{"UnknownKey", "[socket]\nnmae = \"x\"\n"},
		{"BadSyntax", "[socket\n"},
		{"WrongType", "[socket]\nlisten = \"yes\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tc.text))
			var cerr *config.Error
			if !errors.As(err, &cerr) {
				t.Errorf("Load: got %v, want *config.Error", err)
			}
		})
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load missing: got %v, want %v", err, os.ErrNotExist)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"EmptyName", func(c *config.Config) { c.Socket.Name = "" }},
		{"LongName", func(c *config.Config) { c.Socket.Name = strings.Repeat("x", 107) }},
		{"BadType", func(c *config.Config) { c.Socket.Type = "datagram" }},
		{"SmallBuffer", func(c *config.Config) { c.Socket.ReadBuffer = 4 }},
		{"ZeroDelay", func(c *config.Config) { c.Reconnect.InitialDelayMS = 0 }},
		{"MaxBelowInitial", func(c *config.Config) { c.Reconnect.MaxDelayMS = 10 }},
		{"BadLevel", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"BadFormat", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"NoRetries", func(c *config.Config) { c.Hostapd.ConnectRetries = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.modify(&cfg)
			var cerr *config.Error
			if err := cfg.Validate(); !errors.As(err, &cerr) {
				t.Errorf("Validate: got %v, want *config.Error", err)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	args, err := config.ParseArgs("wifid", []string{"-a", "sock", "-L", "-S", "-log-level", "debug"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseArgs: unexpected error: %v", err)
	}
	cfg := config.Default()
	cfg.Socket.Type = "stream"
	args.Apply(&cfg)

	want := config.Default()
	want.Socket.Name = "sock"
	want.Socket.Listen = true
	want.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Apply (-want, +got):\n%s", diff)
	}

	// Flags not given leave the configuration alone.
	args, err = config.ParseArgs("wifid", nil, io.Discard)
	if err != nil {
		t.Fatalf("ParseArgs: unexpected error: %v", err)
	}
	cfg = config.Default()
	args.Apply(&cfg)
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("Apply no flags (-want, +got):\n%s", diff)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := [][]string{
		{"-a"},
		{"-a", ""},
		{"-a="},
		{"-bogus"},
		{"extra"},
		{"-L", "extra"},
	}
	for _, args := range tests {
		_, err := config.ParseArgs("wifid", args, io.Discard)
		var cerr *config.Error
		if !errors.As(err, &cerr) {
			t.Errorf("ParseArgs(%q): got %v, want *config.Error", args, err)
		}
	}

	var buf strings.Builder
	if _, err := config.ParseArgs("wifid", []string{"-h"}, &buf); !errors.Is(err, config.ErrHelp) {
		t.Errorf("ParseArgs(-h): got %v, want %v", err, config.ErrHelp)
	}
	if !strings.Contains(buf.String(), "Usage: wifid") {
		t.Errorf("ParseArgs(-h) output: got %q, want usage", buf.String())
	}
}
