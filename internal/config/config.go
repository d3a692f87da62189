// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package config loads the daemon configuration from a TOML file and the
// command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Socket configures the transport to the host.
type Socket struct {
	Name       string `toml:"name"`
	Type       string `toml:"type"` // seqpacket or stream
	Listen     bool   `toml:"listen"`
	ReadBuffer int    `toml:"read_buffer"`
}

// Reconnect configures the delay between attempts to open the transport.
type Reconnect struct {
	InitialDelayMS int `toml:"initial_delay_ms"`
	MaxDelayMS     int `toml:"max_delay_ms"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Supplicant configures the driver and wpa_supplicant.
type Supplicant struct {
	Interface        string   `toml:"interface"`
	CtrlDir          string   `toml:"ctrl_dir"`
	P2PSupported     bool     `toml:"p2p_supported"`
	LoadDriver       []string `toml:"load_driver"`
	UnloadDriver     []string `toml:"unload_driver"`
	Start            []string `toml:"start"`
	Stop             []string `toml:"stop"`
	StartP2P         []string `toml:"start_p2p"`
	StopP2P          []string `toml:"stop_p2p"`
	CommandTimeoutMS int      `toml:"command_timeout_ms"`
}

// Hostapd configures the hostapd control connection.
type Hostapd struct {
	CtrlDir         string `toml:"ctrl_dir"`
	ConnectRetries  int    `toml:"connect_retries"`
	RetryIntervalMS int    `toml:"retry_interval_ms"`
}

// Monitor configures network interface notifications.
type Monitor struct {
	Enabled         bool   `toml:"enabled"`
	InterfacePrefix string `toml:"interface_prefix"`
}

// Config encapsulates all configuration values for the daemon.
type Config struct {
	Socket     Socket     `toml:"socket"`
	Reconnect  Reconnect  `toml:"reconnect"`
	Logging    Logging    `toml:"logging"`
	Supplicant Supplicant `toml:"supplicant"`
	Hostapd    Hostapd    `toml:"hostapd"`
	Monitor    Monitor    `toml:"monitor"`
	LockFile   string     `toml:"lock_file"`
}

// An Error reports an invalid configuration.
type Error struct {
	Source string // the file or "flags"
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("config %s: %v", e.Source, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Load returns the default configuration updated from the TOML file at path.
// Keys not defined by Config are rejected. An empty path returns the
// defaults. Load does not validate the result, so that flags can be applied
// first.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, &Error{Source: path, Err: err}
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return cfg, &Error{Source: path, Err: errors.New(serr.String())}
		}
		return cfg, &Error{Source: path, Err: err}
	}
	return cfg, nil
}

// InitialDelay returns the delay after the first failure to open the
// transport.
func (r Reconnect) InitialDelay() time.Duration { return ms(r.InitialDelayMS) }

// MaxDelay returns the longest delay between attempts to open the transport.
func (r Reconnect) MaxDelay() time.Duration { return ms(r.MaxDelayMS) }

// CommandTimeout returns the timeout for each control request.
func (s Supplicant) CommandTimeout() time.Duration { return ms(s.CommandTimeoutMS) }

// RetryInterval returns the delay between hostapd connection attempts.
func (h Hostapd) RetryInterval() time.Duration { return ms(h.RetryIntervalMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
