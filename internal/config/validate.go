// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package config

import (
	"errors"
	"fmt"

	"github.com/tungmangtdh3/wifid/internal/logging"
	"github.com/tungmangtdh3/wifid/transport"
	"github.com/tungmangtdh3/wifid/wire"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateSocket,
		c.validateReconnect,
		c.validateLogging,
		c.validateControllers,
	} {
		if err := check(); err != nil {
			return &Error{Source: "validate", Err: err}
		}
	}
	return nil
}

func (c *Config) validateSocket() error {
	if _, err := transport.Address(c.Socket.Name); err != nil {
		return fmt.Errorf("socket.name: %w", err)
	}
	if _, err := transport.ParseSocketType(c.Socket.Type); err != nil {
		return fmt.Errorf("socket.type: %w", err)
	}
	if c.Socket.ReadBuffer < wire.HeaderSize+2 {
		return fmt.Errorf("socket.read_buffer must be at least %d", wire.HeaderSize+2)
	}
	return nil
}

func (c *Config) validateReconnect() error {
	r := c.Reconnect
	if r.InitialDelayMS <= 0 || r.MaxDelayMS <= 0 {
		return errors.New("reconnect delays must be positive")
	}
	if r.MaxDelayMS < r.InitialDelayMS {
		return errors.New("reconnect.max_delay_ms must not be less than reconnect.initial_delay_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text", "console", "auto":
		return nil
	}
	return fmt.Errorf("logging.format %q is not valid", c.Logging.Format)
}

func (c *Config) validateControllers() error {
	if c.Supplicant.CommandTimeoutMS <= 0 {
		return errors.New("supplicant.command_timeout_ms must be positive")
	}
	if c.Hostapd.ConnectRetries <= 0 {
		return errors.New("hostapd.connect_retries must be positive")
	}
	if c.Hostapd.RetryIntervalMS < 0 {
		return errors.New("hostapd.retry_interval_ms must not be negative")
	}
	return nil
}
