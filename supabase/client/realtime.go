package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// DefaultHeartbeat is the Phoenix heartbeat interval.
const DefaultHeartbeat = 25 * time.Second

// ErrRealtimeClosed is returned when using a closed connection.
var ErrRealtimeClosed = errors.New("supabase: realtime connection closed")

// ChangeEvent is one postgres_changes notification. Record and OldRecord
// hold the raw JSON rows; Raw is the whole frame.
type ChangeEvent struct {
	Type            string
	Schema          string
	Table           string
	CommitTimestamp string
	Record          []byte
	OldRecord       []byte
	Raw             []byte
}

// ID returns the row id from the new record, or the old one for deletes.
func (e ChangeEvent) ID() string {
	if id := gjson.GetBytes(e.Record, "id"); id.Exists() && id.String() != "" {
		return id.String()
	}
	return gjson.GetBytes(e.OldRecord, "id").String()
}

// ChangeHandler receives events in arrival order on the read goroutine.
type ChangeHandler func(ChangeEvent)

// PostgresChangesConfig selects the rows a subscription listens to.
type PostgresChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE or *
	Schema string
	Table  string
	Filter string // e.g. "owner_id=eq.abc"
}

func (c PostgresChangesConfig) normalized() PostgresChangesConfig {
	if c.Schema == "" {
		c.Schema = "public"
	}
	if c.Event == "" {
		c.Event = "*"
	}
	c.Event = strings.ToUpper(c.Event)
	return c
}

// RealtimeClient speaks the Phoenix channel protocol to Supabase Realtime.
type RealtimeClient struct {
	url       string
	apiKey    string
	token     string
	heartbeat time.Duration
	dialer    *websocket.Dialer

	writeMu sync.Mutex
	conn    *websocket.Conn
	ref     atomic.Int64

	subsMu sync.RWMutex
	subs   map[string]*Subscription

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// RealtimeOption configures a RealtimeClient.
type RealtimeOption func(*RealtimeClient)

// WithHeartbeat overrides the heartbeat interval.
func WithHeartbeat(d time.Duration) RealtimeOption {
	return func(r *RealtimeClient) {
		if d > 0 {
			r.heartbeat = d
		}
	}
}

// WithAccessToken authenticates channel joins as a user.
func WithAccessToken(token string) RealtimeOption {
	return func(r *RealtimeClient) { r.token = token }
}

// NewRealtimeClient builds a client for the project at supabaseURL.
func NewRealtimeClient(supabaseURL, apiKey string, opts ...RealtimeOption) *RealtimeClient {
	wsURL := strings.TrimSuffix(supabaseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	wsURL += "/realtime/v1/websocket?" + url.Values{"apikey": {apiKey}, "vsn": {"1.0.0"}}.Encode()

	r := &RealtimeClient{
		url:       wsURL,
		apiKey:    apiKey,
		heartbeat: DefaultHeartbeat,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		subs:      make(map[string]*Subscription),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Realtime returns a realtime client for this project.
func (c *Client) Realtime(opts ...RealtimeOption) *RealtimeClient {
	if c.token != "" {
		opts = append([]RealtimeOption{WithAccessToken(c.token)}, opts...)
	}
	return NewRealtimeClient(c.baseURL, c.apiKey, opts...)
}

// Connect dials the websocket and starts the read and heartbeat loops. The
// connection lives until Close or a read error; see Done and Err.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn != nil {
		return nil
	}

	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}
	r.conn = conn

	go r.readLoop(conn)
	go r.heartbeatLoop()
	return nil
}

// Done is closed when the connection ends.
func (r *RealtimeClient) Done() <-chan struct{} { return r.done }

// Err returns the error that ended the connection, if any.
func (r *RealtimeClient) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Close ends the connection.
func (r *RealtimeClient) Close() error {
	r.writeMu.Lock()
	conn := r.conn
	r.writeMu.Unlock()
	if conn == nil {
		r.shutdown(nil)
		return nil
	}

	r.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	r.writeMu.Unlock()

	r.shutdown(nil)
	return conn.Close()
}

func (r *RealtimeClient) shutdown(err error) {
	r.closeOnce.Do(func() {
		r.errMu.Lock()
		r.err = err
		r.errMu.Unlock()
		close(r.done)
	})
}

func (r *RealtimeClient) nextRef() string {
	return strconv.FormatInt(r.ref.Add(1), 10)
}

func (r *RealtimeClient) send(msg map[string]any) error {
	select {
	case <-r.done:
		return ErrRealtimeClosed
	default:
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn == nil {
		return ErrRealtimeClosed
	}
	return r.conn.WriteJSON(msg)
}

// Subscription is one joined channel.
type Subscription struct {
	client  *RealtimeClient
	topic   string
	config  PostgresChangesConfig
	handler ChangeHandler
	joinRef string
}

// Topic returns the channel topic.
func (s *Subscription) Topic() string { return s.topic }

// SubscribePostgresChanges joins a channel delivering row changes matching
// cfg to handler.
func (r *RealtimeClient) SubscribePostgresChanges(ctx context.Context, cfg PostgresChangesConfig, handler ChangeHandler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("supabase: nil change handler")
	}
	cfg = cfg.normalized()
	if cfg.Table == "" {
		return nil, errors.New("supabase: table is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topic := "realtime:" + cfg.Schema + ":" + cfg.Table
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	change := map[string]any{"event": cfg.Event, "schema": cfg.Schema, "table": cfg.Table}
	if cfg.Filter != "" {
		change["filter"] = cfg.Filter
	}
	payload := map[string]any{
		"config": map[string]any{
			"postgres_changes": []any{change},
		},
	}
	token := r.token
	if token == "" {
		token = r.apiKey
	}
	payload["access_token"] = token

	ref := r.nextRef()
	sub := &Subscription{client: r, topic: topic, config: cfg, handler: handler, joinRef: ref}

	r.subsMu.Lock()
	r.subs[topic] = sub
	r.subsMu.Unlock()

	if err := r.send(map[string]any{
		"topic":    topic,
		"event":    "phx_join",
		"payload":  payload,
		"ref":      ref,
		"join_ref": ref,
	}); err != nil {
		r.subsMu.Lock()
		delete(r.subs, topic)
		r.subsMu.Unlock()
		return nil, fmt.Errorf("realtime join %s: %w", topic, err)
	}
	return sub, nil
}

// Unsubscribe leaves the channel.
func (s *Subscription) Unsubscribe() error {
	r := s.client
	r.subsMu.Lock()
	if r.subs[s.topic] != s {
		r.subsMu.Unlock()
		return nil
	}
	delete(r.subs, s.topic)
	r.subsMu.Unlock()

	err := r.send(map[string]any{
		"topic":    s.topic,
		"event":    "phx_leave",
		"payload":  map[string]any{},
		"ref":      r.nextRef(),
		"join_ref": s.joinRef,
	})
	if errors.Is(err, ErrRealtimeClosed) {
		return nil
	}
	return err
}

func (r *RealtimeClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			select {
			case <-r.done:
				err = nil
			default:
			}
			r.shutdown(err)
			return
		}
		r.dispatch(message)
	}
}

func (r *RealtimeClient) dispatch(message []byte) {
	frame := gjson.ParseBytes(message)
	topic := frame.Get("topic").String()

	r.subsMu.RLock()
	sub := r.subs[topic]
	r.subsMu.RUnlock()
	if sub == nil {
		return
	}

	var data gjson.Result
	switch frame.Get("event").String() {
	case "postgres_changes":
		data = frame.Get("payload.data")
	case "INSERT", "UPDATE", "DELETE":
		data = frame.Get("payload")
	default:
		return
	}
	if !data.Exists() {
		return
	}

	event := ChangeEvent{
		Type:            strings.ToUpper(data.Get("type").String()),
		Schema:          data.Get("schema").String(),
		Table:           data.Get("table").String(),
		CommitTimestamp: data.Get("commit_timestamp").String(),
		Raw:             message,
	}
	if rec := data.Get("record"); rec.Exists() && rec.Type != gjson.Null {
		event.Record = []byte(rec.Raw)
	}
	if old := data.Get("old_record"); old.Exists() && old.Type != gjson.Null {
		event.OldRecord = []byte(old.Raw)
	}
	if sub.config.Event != "*" && sub.config.Event != event.Type {
		return
	}
	sub.handler(event)
}

func (r *RealtimeClient) heartbeatLoop() {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.send(map[string]any{
				"topic":   "phoenix",
				"event":   "heartbeat",
				"payload": map[string]any{},
				"ref":     r.nextRef(),
			}); err != nil {
				return
			}
		}
	}
}
