package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.value); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	logger := SetupLogger(&buf, "relay")

	logger.Info("skipped")
	logger.Warn("kept")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["service"] != "relay" {
		t.Errorf("unexpected record: %v", entry)
	}
	if slog.Default() != logger {
		t.Error("SetupLogger should replace the default logger")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), WithQueue(logger, "input_queue"))
	FromContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), "queue=input_queue") {
		t.Errorf("context logger not used: %s", buf.String())
	}

	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should fall back to the default logger")
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cl := CronLogger{Logger: logger}

	cl.Info("schedule", "entry", 1)
	if buf.Len() != 0 {
		t.Errorf("cron info should be logged at debug level: %s", buf.String())
	}

	cl.Error(errors.New("job panicked"), "panic", "entry", 2)
	out := buf.String()
	if !strings.Contains(out, "cron: panic") || !strings.Contains(out, "job panicked") || !strings.Contains(out, "entry=2") {
		t.Errorf("unexpected cron error output: %s", out)
	}
}
