// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package wifid implements a daemon that bridges a host process to the WiFi
// control facilities of the system: driver loading, the wpa_supplicant
// lifecycle and its control interface, and the hostapd control interface.
//
// The host and the daemon exchange binary frames over a Unix-domain socket
// with an abstract-namespace address. The host sends requests; the daemon
// sends responses and unsolicited notifications. The frame format is defined
// by the wire package.
//
// # Daemon
//
// The core type defined by this package is the [Daemon]. A daemon owns a
// [Transport] connection to the host, an outbound message queue, and a
// [Dispatcher] that routes requests to controllers:
//
//	tr, err := transport.New(transport.Config{Name: "wifid"})
//	...
//	d := wifid.New(tr, &wifid.Options{Logger: log})
//	d.Dispatcher().Route(controller.NewSupplicant(cfg, drv, d.Dispatcher().Sink(), log))
//
// Call [Daemon.Run] to serve the host. Run opens the transport, reads and
// dispatches frames until the connection ends, and then opens it again,
// until its context ends:
//
//	if err := d.Run(ctx); err != nil {
//	   log.Error("daemon failed", "error", err)
//	}
//
// # Sessions
//
// Each request carries a session ID chosen by the host. The daemon records
// the session IDs of pending requests in a [SessionRegistry], in arrival order
// for each message type. When a controller responds to a request of type T,
// the response carries the session ID of the oldest unanswered request of
// type T.
//
// # Metrics
//
// Each daemon maintains a collection of metrics. Use the [Daemon.Metrics]
// method to obtain an [expvar.Map] containing them:
//
//   - frames_received: counter of inbound frames read
//   - frames_sent: counter of outbound frames written
//   - frames_dropped: counter of outbound frames that could not be delivered
//   - frames_malformed: counter of inbound frames rejected as malformed
//   - frames_ignored: counter of inbound frames that were not requests
//   - requests: counter of requests dispatched
//   - responses: counter of responses generated
//   - notifications: counter of notifications generated
//   - connections: counter of connections established
//   - open_failures: counter of failed attempts to open the transport
//   - send_failures: counter of failed writes to the transport
//   - sessions_pending: gauge of requests awaiting a response
package wifid
