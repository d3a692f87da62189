// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/creachadair/flax"
)

// ErrHelp is reported by ParseArgs when usage was requested with -h.
var ErrHelp = flag.ErrHelp

// Flags are the command-line flags of the daemon.
type Flags struct {
	Name      string `flag:"a,Abstract socket name (default wifid)"`
	Help      bool   `flag:"h,Print usage and exit"`
	SeqPacket bool   `flag:"S,Use a sequenced-packet socket"`
	Listen    bool   `flag:"L,Listen for the host instead of connecting to it"`
	Config    string `flag:"config,Configuration file (TOML)"`
	LogLevel  string `flag:"log-level,Log level (debug, info, warn, error)"`
	LogFormat string `flag:"log-format,Log format (json, text, auto)"`
}

// Args are the parsed command line.
type Args struct {
	Flags
	set map[string]bool // flags given explicitly
}

// IsSet reports whether the named flag was given on the command line.
func (a *Args) IsSet(name string) bool { return a.set[name] }

// ParseArgs parses the command-line arguments of the program called name.
// Diagnostics and usage are written to w. If -h is given, ParseArgs prints
// usage and reports ErrHelp. Any other failure is reported as an *Error.
func ParseArgs(name string, args []string, w io.Writer) (*Args, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage: %s [flags]\n\nFlags:\n", name)
		fs.PrintDefaults()
	}

	a := &Args{set: make(map[string]bool)}
	flax.MustBind(fs, &a.Flags)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, &Error{Source: "flags", Err: err}
	}
	fs.Visit(func(f *flag.Flag) { a.set[f.Name] = true })

	if a.Help {
		fs.Usage()
		return nil, ErrHelp
	}
	if a.IsSet("a") && a.Name == "" {
		return nil, &Error{Source: "flags", Err: errors.New("-a requires a non-empty socket name")}
	}
	if fs.NArg() != 0 {
		return nil, &Error{Source: "flags", Err: fmt.Errorf("unexpected arguments: %q", fs.Args())}
	}
	return a, nil
}

// Apply overrides cfg with the flags given explicitly in a.
func (a *Args) Apply(cfg *Config) {
	if a.IsSet("a") {
		cfg.Socket.Name = a.Name
	}
	if a.SeqPacket {
		cfg.Socket.Type = "seqpacket"
	}
	if a.Listen {
		cfg.Socket.Listen = true
	}
	if a.IsSet("log-level") {
		cfg.Logging.Level = a.LogLevel
	}
	if a.IsSet("log-format") {
		cfg.Logging.Format = a.LogFormat
	}
}
