package httpapi

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAuditLogKeepsNewestPerUser(t *testing.T) {
	l := NewAuditLog(3, nil)
	for _, e := range []AuditEntry{
		{User: "a", Route: "/notes"},
		{User: "b", Route: "/recipes"},
		{User: "a", Route: "/shopping"},
		{User: "a", Route: "/logs/{date}"},
	} {
		l.add(e)
	}

	got := l.ForUser("a", 0)
	if len(got) != 2 {
		t.Fatalf("expected the oldest entry to be evicted, got %+v", got)
	}
	if got[0].Route != "/logs/{date}" || got[1].Route != "/shopping" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if one := l.ForUser("a", 1); len(one) != 1 {
		t.Fatalf("limit ignored: %+v", one)
	}
	if none := l.ForUser("c", 10); len(none) != 0 {
		t.Fatalf("unexpected entries for unknown user: %+v", none)
	}
}

func TestFileAuditSinkAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := OpenAuditFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l := NewAuditLog(0, sink)
	l.add(AuditEntry{User: "a", Route: "/notes", Method: "POST", Status: 201})
	l.add(AuditEntry{User: "a", Route: "/notes/{noteID}", Method: "DELETE", Status: 204})
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	var lines []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, e)
	}
	if len(lines) != 2 || lines[1].Status != 204 {
		t.Fatalf("unexpected audit file contents %+v", lines)
	}
}
