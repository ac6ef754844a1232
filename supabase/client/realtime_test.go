package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// phoenixServer accepts one connection, answers the first join and then
// sends frames to the joined topic.
func phoenixServer(t *testing.T, frames func(topic string) []string) (*httptest.Server, <-chan string) {
	t.Helper()
	joins := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" || r.URL.Query().Get("apikey") != "anon" {
			http.Error(w, "bad path", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame := gjson.ParseBytes(msg)
			if frame.Get("event").String() != "phx_join" {
				continue
			}
			topic := frame.Get("topic").String()
			joins <- string(msg)
			_ = conn.WriteJSON(map[string]any{
				"topic": topic, "event": "phx_reply", "ref": frame.Get("ref").String(),
				"payload": map[string]any{"status": "ok"},
			})
			for _, f := range frames(topic) {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, joins
}

func TestRealtimeDeliversPostgresChanges(t *testing.T) {
	server, joins := phoenixServer(t, func(topic string) []string {
		return []string{
			`{"topic":"` + topic + `","event":"postgres_changes","payload":{"data":{"type":"INSERT","schema":"public","table":"recipes","record":{"id":"r1","owner_id":"alice"},"old_record":null}}}`,
			`{"topic":"other","event":"postgres_changes","payload":{"data":{"type":"INSERT","record":{"id":"x"}}}}`,
			`{"topic":"` + topic + `","event":"DELETE","payload":{"type":"DELETE","table":"recipes","old_record":{"id":"r2"}}}`,
		}
	})

	rt := NewRealtimeClient(server.URL, "anon", WithHeartbeat(time.Hour))
	require.NoError(t, rt.Connect(context.Background()))
	defer rt.Close()

	events := make(chan ChangeEvent, 4)
	sub, err := rt.SubscribePostgresChanges(context.Background(), PostgresChangesConfig{
		Table:  "recipes",
		Filter: "owner_id=eq.alice",
	}, func(e ChangeEvent) { events <- e })
	require.NoError(t, err)
	assert.Equal(t, "realtime:public:recipes:owner_id=eq.alice", sub.Topic())

	join := gjson.Parse(<-joins)
	assert.Equal(t, "recipes", join.Get("payload.config.postgres_changes.0.table").String())
	assert.Equal(t, "owner_id=eq.alice", join.Get("payload.config.postgres_changes.0.filter").String())
	assert.Equal(t, "*", join.Get("payload.config.postgres_changes.0.event").String())

	first := receive(t, events)
	assert.Equal(t, "INSERT", first.Type)
	assert.Equal(t, "r1", first.ID())
	assert.Nil(t, first.OldRecord)
	assert.True(t, strings.Contains(string(first.Raw), "postgres_changes"))

	second := receive(t, events)
	assert.Equal(t, "DELETE", second.Type)
	assert.Equal(t, "r2", second.ID())

	require.NoError(t, sub.Unsubscribe())
}

func TestRealtimeFiltersEventType(t *testing.T) {
	server, _ := phoenixServer(t, func(topic string) []string {
		return []string{
			`{"topic":"` + topic + `","event":"postgres_changes","payload":{"data":{"type":"UPDATE","record":{"id":"u"}}}}`,
			`{"topic":"` + topic + `","event":"postgres_changes","payload":{"data":{"type":"INSERT","record":{"id":"i"}}}}`,
		}
	})

	rt := NewRealtimeClient(server.URL, "anon")
	require.NoError(t, rt.Connect(context.Background()))
	defer rt.Close()

	events := make(chan ChangeEvent, 4)
	_, err := rt.SubscribePostgresChanges(context.Background(), PostgresChangesConfig{Table: "notes", Event: "insert"},
		func(e ChangeEvent) { events <- e })
	require.NoError(t, err)

	assert.Equal(t, "i", receive(t, events).ID())
}

func TestRealtimeClose(t *testing.T) {
	server, _ := phoenixServer(t, func(string) []string { return nil })
	rt := NewRealtimeClient(server.URL, "anon")
	require.NoError(t, rt.Connect(context.Background()))
	require.NoError(t, rt.Close())

	select {
	case <-rt.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed")
	}
	assert.NoError(t, rt.Err())

	_, err := rt.SubscribePostgresChanges(context.Background(), PostgresChangesConfig{Table: "t"}, func(ChangeEvent) {})
	assert.ErrorIs(t, err, ErrRealtimeClosed)
}

func TestRealtimeRequiresTableAndHandler(t *testing.T) {
	rt := NewRealtimeClient("https://example.supabase.co", "anon")
	_, err := rt.SubscribePostgresChanges(context.Background(), PostgresChangesConfig{}, func(ChangeEvent) {})
	assert.Error(t, err)
	_, err = rt.SubscribePostgresChanges(context.Background(), PostgresChangesConfig{Table: "t"}, nil)
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(rt.url, "wss://example.supabase.co/realtime/v1/websocket?"))
}

func receive(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}
