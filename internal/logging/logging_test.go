// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
	if ValidLevel("bogus") || !ValidLevel("Warn") {
		t.Errorf("ValidLevel misclassified a level")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "json", &buf)
	log.Debug("hidden")
	log.Info("saliency computed", "tokens", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "saliency computed" || rec["tokens"] != float64(4) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New("debug", "text", &buf).Debug("step", "n", 1)
	if !strings.Contains(buf.String(), "msg=step") || !strings.Contains(buf.String(), "n=1") {
		t.Errorf("unexpected text record %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Errorf("discard logger should drop errors")
	}
}
