// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package wifid

import "expvar"

// daemonMetrics record daemon activity counters.
type daemonMetrics struct {
	frameRecv      expvar.Int
	frameSent      expvar.Int
	frameDropped   expvar.Int // outbound frames that could not be delivered
	frameMalformed expvar.Int
	frameIgnored   expvar.Int // inbound frames of a category other than request
	requests       expvar.Int
	responses      expvar.Int
	notifications  expvar.Int
	connections    expvar.Int
	openFailures   expvar.Int
	sendFailures   expvar.Int

	emap *expvar.Map
}

func newDaemonMetrics(pending func() int) *daemonMetrics {
	m := &daemonMetrics{emap: new(expvar.Map)}
	m.emap.Set("frames_received", &m.frameRecv)
	m.emap.Set("frames_sent", &m.frameSent)
	m.emap.Set("frames_dropped", &m.frameDropped)
	m.emap.Set("frames_malformed", &m.frameMalformed)
	m.emap.Set("frames_ignored", &m.frameIgnored)
	m.emap.Set("requests", &m.requests)
	m.emap.Set("responses", &m.responses)
	m.emap.Set("notifications", &m.notifications)
	m.emap.Set("connections", &m.connections)
	m.emap.Set("open_failures", &m.openFailures)
	m.emap.Set("send_failures", &m.sendFailures)
	m.emap.Set("sessions_pending", expvar.Func(func() any { return pending() }))
	return m
}
