// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Program wifictl is a command-line utility that plays the part of the host
// process for a wifid daemon: it sends requests and prints the responses and
// notifications the daemon sends back.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/tungmangtdh3/wifid/transport"
	"github.com/tungmangtdh3/wifid/wire"
)

var flags struct {
	Name    string        `flag:"a,default=wifid,Abstract socket name"`
	Stream  bool          `flag:"stream,Use a stream socket instead of a sequenced-packet socket"`
	Connect bool          `flag:"connect,Connect to the daemon instead of waiting for it to connect"`
	Timeout time.Duration `flag:"timeout,default=30s,Time limit for each request (0 for none)"`
}

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Usage: `<command> [arguments]
help [<command>]`,
		Help: `Utilities for talking to a wifid daemon.

By default the daemon connects to its host, so wifictl listens on the socket
and waits for the daemon to connect. Use -connect for a daemon run with -L.`,

		SetFlags: command.Flags(flax.MustBind, &flags),

		Commands: []*command.C{
			{
				Name:  "proto",
				Usage: "",
				Help:  "Request and print the protocol version of the daemon.",
				Run:   runProto,
			},
			{
				Name:  "send",
				Usage: "<type> [<data>]",
				Help: `Send a request and print the response.

The type is a message type name (see "types") or number. The data, if given,
is sent as the request payload. Notifications that arrive before the response
are printed as they are received.`,
				Run: runSend,
			},
			{
				Name: "watch",
				Help: "Print notifications from the daemon until interrupted.",
				Run:  runWatch,
			},
			{
				Name: "types",
				Help: "List the request message types.",
				Run:  runTypes,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

// parseType parses a message type name or number.
func parseType(s string) (wire.MessageType, error) {
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return wire.MessageType(n), nil
	}
	return wire.ParseMessageType(s)
}

func runProto(env *command.Env) error {
	if len(env.Args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	ctx, cancel := requestContext()
	defer cancel()
	h, err := dial(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	rsp, err := h.call(ctx, wire.Request{Type: wire.TypeVersion, SessionID: h.nextID()}, printNotification)
	if err != nil {
		return err
	}
	if rsp.Status != wire.StatusOK {
		return fmt.Errorf("version request failed: %v", rsp.Status)
	}
	var v wire.Version
	if err := v.UnmarshalBinary(rsp.Data); err != nil {
		return fmt.Errorf("invalid version response: %w", err)
	}
	fmt.Println(v)
	return nil
}

func runSend(env *command.Env) error {
	if len(env.Args) == 0 || len(env.Args) > 2 {
		return env.Usagef("wrong number of arguments")
	}
	typ, err := parseType(env.Args[0])
	if err != nil {
		return err
	}
	var data []byte
	if len(env.Args) == 2 {
		data = []byte(env.Args[1])
	}

	ctx, cancel := requestContext()
	defer cancel()
	h, err := dial(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	rsp, err := h.call(ctx, wire.Request{Type: typ, SessionID: h.nextID(), Data: data}, printNotification)
	if err != nil {
		return err
	}
	fmt.Print(responseTable(rsp))
	if rsp.Status != wire.StatusOK {
		return errors.New("request failed")
	}
	return nil
}

func runWatch(env *command.Env) error {
	if len(env.Args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	h, err := dial(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	counts := make(map[wire.NotificationType]int)
	err = h.watch(ctx, func(n *wire.Notification) {
		counts[n.Type]++
		printNotification(n)
	})
	fmt.Print(countTable(counts))
	if ctx.Err() != nil {
		return nil // interrupted
	}
	return err
}

func runTypes(env *command.Env) error {
	if len(env.Args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	fmt.Print(typesTable())
	return nil
}

// requestContext returns a context for a single request, which ends after
// the configured timeout or on interrupt.
func requestContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if flags.Timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, flags.Timeout)
	return tctx, func() { cancel(); stop() }
}

func printNotification(n *wire.Notification) {
	fmt.Printf("%s %s %q\n", time.Now().Format(time.TimeOnly), n.Type, n.Data)
}

func dial(ctx context.Context) (*host, error) {
	typ := transport.SeqPacket
	if flags.Stream {
		typ = transport.Stream
	}
	return openHost(ctx, transport.Config{Name: flags.Name, Type: typ, Listen: !flags.Connect})
}
