// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package driver_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tungmangtdh3/wifid/internal/driver"
)

func TestExec(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	notExec := filepath.Join(dir, "plain")
	if err := os.WriteFile(notExec, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := driver.NewExec(driver.Commands{
		LoadDriver:   []string{"sh", "-c", "echo loaded > " + marker},
		UnloadDriver: []string{"sh", "-c", "echo cannot unload >&2; exit 3"},
		Start:        nil, // no-op
		Stop:         []string{notExec},
		StartP2P:     []string{"sh", "-c", "echo p2p > " + marker},
	}, nil)
	ctx := t.Context()

	if err := d.LoadDriver(ctx); err != nil {
		t.Errorf("LoadDriver: unexpected error: %v", err)
	}
	if data, err := os.ReadFile(marker); err != nil || string(data) != "loaded\n" {
		t.Errorf("Marker: got (%q, %v), want loaded", data, err)
	}

	if err := d.UnloadDriver(ctx); err == nil {
		t.Error("UnloadDriver: got nil error, want error")
	} else if !strings.Contains(err.Error(), "cannot unload") {
		t.Errorf("UnloadDriver: error %q does not include command output", err)
	}

	if err := d.StartSupplicant(ctx, false); err != nil {
		t.Errorf("StartSupplicant: unexpected error: %v", err)
	}
	if err := d.StartSupplicant(ctx, true); err != nil {
		t.Errorf("StartSupplicant(p2p): unexpected error: %v", err)
	}
	if data, _ := os.ReadFile(marker); string(data) != "p2p\n" {
		t.Errorf("Marker: got %q, want p2p", data)
	}

	// StopP2P is unset, so the plain Stop command is used, and it is not
	// executable.
	if err := d.StopSupplicant(ctx, true); err == nil {
		t.Error("StopSupplicant: got nil error, want error")
	} else if !strings.Contains(err.Error(), "not executable") {
		t.Errorf("StopSupplicant: got %v, want not executable", err)
	}
}
