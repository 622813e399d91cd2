package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestStructuredLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLoggerWithOutput(&buf, "weather-api", "1.0.0", InfoLevel)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.Info(ctx, "[TEST] hello", Fields{"station": "USC00110072"})
	logger.Error(ctx, "[TEST] failed", Fields{}, errors.New("boom"))
	_ = logger.Sync()

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := lines[0]
	if first["msg"] != "[TEST] hello" {
		t.Errorf("msg = %v", first["msg"])
	}
	if first["service"] != "weather-api" {
		t.Errorf("service = %v", first["service"])
	}
	if first["request_id"] != "req-42" {
		t.Errorf("request_id = %v", first["request_id"])
	}
	fields, ok := first["fields"].(map[string]interface{})
	if !ok || fields["station"] != "USC00110072" {
		t.Errorf("fields = %v", first["fields"])
	}

	if lines[1]["error"] != "boom" {
		t.Errorf("error = %v", lines[1]["error"])
	}
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLoggerWithOutput(&buf, "svc", "1", WarnLevel)

	logger.Debug(context.Background(), "debug", nil)
	logger.Info(context.Background(), "info", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	logger.SetLevel(DebugLevel)
	logger.Debug(context.Background(), "debug", nil)
	if buf.Len() == 0 {
		t.Fatal("expected debug output after SetLevel")
	}
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLoggerWithOutput(&buf, "svc", "1", InfoLevel)

	logger.WithFields(Fields{"component": "ingester", "file": "a.txt"}).
		Info(context.Background(), "merged", Fields{"file": "b.txt"})

	lines := decodeLines(t, &buf)
	fields := lines[0]["fields"].(map[string]interface{})
	if fields["component"] != "ingester" || fields["file"] != "b.txt" {
		t.Errorf("fields = %v", fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug": DebugLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
		"info":  InfoLevel,
		"":      InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
