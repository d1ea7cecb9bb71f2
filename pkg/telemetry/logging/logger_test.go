package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"json", Config{Level: "info", Format: "json"}, false},
		{"text", Config{Level: "DEBUG", Format: "text"}, false},
		{"defaults", Config{}, false},
		{"invalid level", Config{Level: "loud"}, true},
		{"invalid format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	return m
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithStage(ctx, "extract")
	ctx = WithActor(ctx, "alice")
	logger.InfoContext(ctx, "stage completed", "entities", 3)

	m := decodeLine(t, &buf)
	for key, want := range map[string]any{"run_id": "run-1", "stage": "extract", "actor": "alice", "entities": float64(3)} {
		if m[key] != want {
			t.Errorf("%s = %v, want %v", key, m[key], want)
		}
	}
	if _, ok := m["hitl_id"]; ok {
		t.Error("empty hitl_id should be omitted")
	}
}

func TestLogger_RedactsPII(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("contact", "jane.doe@example.com").Info("entity found in 123-45-6789 context",
		"snippet", "SSN: 123-45-6789",
		"raw_value", "anything",
		"document_id", "jane.doe@example.com",
		slog.Group("entity", slog.String("value", "reach me at bob@corp.io")),
		"error", errors.New("failed on 123-45-6789"),
	)

	out := buf.String()
	if strings.Contains(out, "123-45-6789") {
		t.Errorf("SSN leaked into log: %s", out)
	}
	if strings.Contains(out, "bob@corp.io") {
		t.Errorf("email in group leaked into log: %s", out)
	}

	m := decodeLine(t, &buf)
	if m["raw_value"] != "[REDACTED]" {
		t.Errorf("raw_value = %v", m["raw_value"])
	}
	if m["contact"] != "[EMAIL]" {
		t.Errorf("contact = %v", m["contact"])
	}
	if m["document_id"] != "jane.doe@example.com" {
		t.Errorf("identifier keys should pass through, got %v", m["document_id"])
	}
	if !strings.Contains(m["msg"].(string), "[SSN]") {
		t.Errorf("msg = %v", m["msg"])
	}
}

func TestLogger_NoRedactionWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Format: "text", Writer: &buf})
	logger.Info("x", "email", "a@b.com")
	if !strings.Contains(buf.String(), "a@b.com") {
		t.Errorf("value should be untouched: %s", buf.String())
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Level: "warn", Writer: &buf})
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn not logged")
	}
}

func TestContextGetters(t *testing.T) {
	ctx := WithHITLID(WithActor(WithRunID(context.Background(), "r"), "bob"), "h")
	if GetRunID(ctx) != "r" || GetActor(ctx) != "bob" {
		t.Errorf("getters = %q/%q", GetRunID(ctx), GetActor(ctx))
	}
	if GetRunID(context.Background()) != "" {
		t.Error("missing run id should be empty")
	}
	if attrs := contextAttrs(ctx); len(attrs) != 3 {
		t.Errorf("contextAttrs = %v", attrs)
	}
}
