package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestLogRequestIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := New("souschef-test", "debug", "json")
	log.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "user-1")
	log.LogRequest(ctx, http.MethodGet, "/recipes", http.StatusOK, 15*time.Millisecond)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["service"] != "souschef-test" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["trace_id"] != "trace-1" || entry["user_id"] != "user-1" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["path"] != "/recipes" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestServerErrorsLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("svc", "info", "json")
	log.SetOutput(&buf)

	log.LogRequest(context.Background(), http.MethodPost, "/x", http.StatusBadGateway, time.Millisecond)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "error" {
		t.Fatalf("expected error level, got %v", entry["level"])
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetUserID(ctx) != "" || GetRole(ctx) != "" {
		t.Fatalf("expected empty values on bare context")
	}
	if WithTraceID(ctx, "") != ctx {
		t.Fatalf("empty trace id should not wrap context")
	}
	if NewTraceID() == NewTraceID() {
		t.Fatalf("trace ids should be unique")
	}
}
