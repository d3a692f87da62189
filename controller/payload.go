// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package controller

import (
	"bytes"
	"strings"

	"github.com/tungmangtdh3/wifid/wire"
)

// requestString returns the data of req as a string, without trailing NUL
// bytes or surrounding space. Hosts written in C often include the
// terminator.
func requestString(req *wire.Request) string {
	return strings.TrimSpace(string(bytes.TrimRight(req.Data, "\x00")))
}

// requestFlag reports the Boolean carried in the first data byte of req, or
// def if req has no data.
func requestFlag(req *wire.Request, def bool) bool {
	s := wire.NewScanner(req.Data)
	v, err := s.Bool()
	if err != nil {
		return def
	}
	return v
}

// isFailure reports whether a control reply indicates failure.
func isFailure(reply []byte) bool {
	return bytes.HasPrefix(reply, []byte("FAIL")) || bytes.HasPrefix(reply, []byte("UNKNOWN COMMAND"))
}
