// Package remotetest runs an in-process stand-in for the PostgREST and
// Storage endpoints the remote backend talks to.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/souschef/supabase/client"
)

// Row is one stored Row.
type Row struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Server implements the slice of PostgREST and Storage the remote backend
// uses: eq/gte/lte filters on columns and data->> fields, limit, insert,
// upsert, patch and delete.
type Server struct {
	mu      sync.Mutex
	tables  map[string]map[string]Row
	objects map[string][]byte
}

// New starts a server for the duration of t and returns a client bound to
// it.
func New(t testing.TB) (*Server, *client.Client) {
	t.Helper()
	fake := &Server{tables: make(map[string]map[string]Row), objects: make(map[string][]byte)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	c, err := client.New(client.Config{URL: server.URL, APIKey: "service", HTTPClient: server.Client()})
	require.NoError(t, err)
	return fake, c
}

// Row returns the stored row for id in table.
func (f *Server) Row(table, id string) (Row, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tables[table][id]
	return row, ok
}

// Len counts the rows in table.
func (f *Server) Len(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

// Object returns the stored object at key ("bucket/path").
func (f *Server) Object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/storage/v1/object/") {
		f.serveStorage(w, r)
		return
	}
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	rows := f.tables[table]
	if rows == nil {
		rows = make(map[string]Row)
		f.tables[table] = rows
	}

	switch r.Method {
	case http.MethodGet:
		out := f.match(rows, r)
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n < len(out) {
			out = out[:n]
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var docs []Row
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &docs); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		merge := strings.Contains(r.Header.Get("Prefer"), "merge-duplicates")
		for _, d := range docs {
			if _, exists := rows[d.ID]; exists && !merge {
				writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": "duplicate key value violates unique constraint"})
				return
			}
		}
		for _, d := range docs {
			rows[d.ID] = d
		}
		writeJSON(w, http.StatusCreated, docs)
	case http.MethodPatch:
		var patch Row
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &patch)
		out := f.match(rows, r)
		for i, d := range out {
			d.OwnerID = patch.OwnerID
			d.Data = patch.Data
			d.UpdatedAt = patch.UpdatedAt
			rows[d.ID] = d
			out[i] = d
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodDelete:
		out := f.match(rows, r)
		for _, d := range out {
			delete(rows, d.ID)
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *Server) serveStorage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")
	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		writeJSON(w, http.StatusOK, map[string]string{"Key": key})
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "Object not found"})
			return
		}
		_, _ = w.Write(data)
	case http.MethodDelete:
		var req struct {
			Prefixes []string `json:"prefixes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range req.Prefixes {
			delete(f.objects, key+"/"+p)
		}
		writeJSON(w, http.StatusOK, []any{})
	}
}

func (f *Server) match(rows map[string]Row, r *http.Request) []Row {
	out := make([]Row, 0)
	for _, d := range rows {
		if matches(d, r.URL.Query()) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matches(d Row, query map[string][]string) bool {
	for column, conds := range query {
		switch column {
		case "select", "limit", "order", "offset", "on_conflict":
			continue
		}
		var value string
		switch {
		case column == "id":
			value = d.ID
		case column == "owner_id":
			value = d.OwnerID
		case strings.HasPrefix(column, "data->>"):
			value = gjson.GetBytes(d.Data, strings.TrimPrefix(column, "data->>")).String()
		default:
			return false
		}
		for _, cond := range conds {
			op, operand, _ := strings.Cut(cond, ".")
			switch op {
			case "eq":
				if value != operand {
					return false
				}
			case "gte":
				if value < operand {
					return false
				}
			case "lte":
				if value > operand {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
