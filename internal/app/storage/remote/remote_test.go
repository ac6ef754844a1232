package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/remote/remotetest"
	"github.com/R3E-Network/souschef/internal/app/storage/storagetest"
	"github.com/R3E-Network/souschef/internal/app/watch"
	"github.com/R3E-Network/souschef/internal/logging"
	"github.com/R3E-Network/souschef/supabase/client"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Stores {
		_, c := remotetest.New(t)
		return New(c)
	})
}

func TestStoreKeepsDocumentShape(t *testing.T) {
	fake, c := remotetest.New(t)
	s := New(c)
	ctx := context.Background()

	r, err := s.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Soup"})
	require.NoError(t, err)

	doc, ok := fake.Row("recipes", r.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", doc.OwnerID)
	assert.Equal(t, "Soup", gjson.GetBytes(doc.Data, "name").String())
	assert.True(t, doc.UpdatedAt.Equal(r.UpdatedAt))
}

func TestAccountDocumentKeepsPasswordHash(t *testing.T) {
	fake, c := remotetest.New(t)
	s := New(c)
	ctx := context.Background()

	acct, err := s.CreateAccount(ctx, accountFixture())
	require.NoError(t, err)

	row, ok := fake.Row("accounts", acct.ID)
	require.True(t, ok)
	data := row.Data
	assert.Equal(t, "secret-hash", gjson.GetBytes(data, "password_hash").String())
	assert.Equal(t, "chef@example.com", gjson.GetBytes(data, "email_key").String())
}

func accountFixture() account.Account {
	return account.Account{Email: " Chef@Example.com", DisplayName: "Chef", PasswordHash: "secret-hash", Currency: "EUR"}
}

func TestStorePublishesChanges(t *testing.T) {
	_, c := remotetest.New(t)
	var (
		mu      sync.Mutex
		changes []watch.Change
	)
	s := New(c, WithPublisher(watch.PublisherFunc(func(ch watch.Change) {
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	})))
	ctx := context.Background()

	n, err := s.CreateNote(ctx, note.Note{OwnerID: "alice", Body: "buy saffron"})
	require.NoError(t, err)
	n.Body = "buy more saffron"
	_, err = s.UpdateNote(ctx, n)
	require.NoError(t, err)
	require.NoError(t, s.DeleteNote(ctx, n.ID))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, []watch.Op{watch.OpCreate, watch.OpUpdate, watch.OpDelete},
		[]watch.Op{changes[0].Op, changes[1].Op, changes[2].Op})
	for _, ch := range changes {
		assert.Equal(t, "alice", ch.OwnerID)
		assert.Equal(t, storage.CollectionNotes, ch.Collection)
		assert.Equal(t, n.ID, ch.ID)
	}
}

func TestUpsertKeepsTimestamps(t *testing.T) {
	_, c := remotetest.New(t)
	s := New(c)
	ctx := context.Background()

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := recipe.Recipe{ID: "r1", OwnerID: "alice", Name: "Bread", CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, s.Recipes.Upsert(ctx, r))
	r.Name = "Sourdough"
	require.NoError(t, s.Recipes.Upsert(ctx, r))

	got, err := s.Recipes.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Sourdough", got.Name)
	assert.True(t, got.UpdatedAt.Equal(stamp))
}

func TestCollectionGetMissing(t *testing.T) {
	_, c := remotetest.New(t)
	s := New(c)

	_, err := s.Recipes.Get(context.Background(), "nope")
	assert.True(t, storage.IsNotFound(err))

	_, err = s.Recipes.Delete(context.Background(), "nope")
	assert.True(t, storage.IsNotFound(err))
}

func TestImagesRoundTrip(t *testing.T) {
	fake, c := remotetest.New(t)
	images := NewImages(c, "receipts")
	ctx := context.Background()

	path, err := images.Put(ctx, "alice", "rc1", []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "alice/rc1.jpg", path)

	_, stored := fake.Object("receipts/alice/rc1.jpg")
	assert.True(t, stored)

	data, err := images.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	require.NoError(t, images.Delete(ctx, path))
	_, err = images.Get(ctx, path)
	assert.True(t, client.IsNotFound(err))
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": ".jpg",
		"IMAGE/PNG":  ".png",
		"image/webp": ".webp",
		"":           ".bin",
	}
	for contentType, want := range cases {
		if got := extension(contentType); got != want {
			t.Errorf("extension(%q) = %q, want %q", contentType, got, want)
		}
	}
}

// realtimeFake answers joins and pushes one insert to the recipes topic.
func realtimeFake(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	joins := make(chan string, 16)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
			joins <- topic
			if strings.HasPrefix(topic, "realtime:public:recipes:") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"`+topic+`","event":"postgres_changes","payload":{"data":{"type":"INSERT","schema":"public","table":"recipes","record":{"id":"r9","owner_id":"alice","data":{"id":"r9","owner_id":"alice","name":"Remote soup"}}}}}`))
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, joins
}

func TestListenerRelaysRealtimeChanges(t *testing.T) {
	_, c := remotetest.New(t)
	server, joins := realtimeFake(t)

	changes := make(chan watch.Change, 8)
	listener := NewListener(New(c), watch.PublisherFunc(func(ch watch.Change) { changes <- ch }), logging.Discard())
	listener.realtime = func() *client.RealtimeClient {
		return client.NewRealtimeClient(server.URL, "anon", client.WithHeartbeat(time.Hour))
	}

	release, err := listener.Watch(context.Background(), "alice")
	require.NoError(t, err)
	second, err := listener.Watch(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, listener.Feeds())

	select {
	case ch := <-changes:
		assert.Equal(t, "alice", ch.OwnerID)
		assert.Equal(t, storage.CollectionRecipes, ch.Collection)
		assert.Equal(t, "r9", ch.ID)
		assert.Equal(t, watch.OpCreate, ch.Op)
		assert.Equal(t, OriginRealtime, ch.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("no change relayed")
	}

	seen := map[string]bool{}
	for len(seen) < len(listener.store.ownedSources()) {
		select {
		case topic := <-joins:
			seen[topic] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("joined %d topics", len(seen))
		}
	}
	assert.True(t, seen["realtime:public:shopping_items:owner_id=eq.alice"])

	release()
	assert.Equal(t, 1, listener.Feeds())
	second()
	second()
	assert.Equal(t, 0, listener.Feeds())
	require.NoError(t, listener.Stop(context.Background()))
}

func TestListenerConnectsWithoutHoldingLock(t *testing.T) {
	_, c := remotetest.New(t)
	arrived := make(chan struct{}, 1)
	gate := make(chan struct{})
	upgrader := websocket.Upgrader{}
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-gate
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer slow.Close()

	listener := NewListener(New(c), watch.PublisherFunc(func(watch.Change) {}), logging.Discard())
	listener.realtime = func() *client.RealtimeClient {
		return client.NewRealtimeClient(slow.URL, "anon", client.WithHeartbeat(time.Hour))
	}

	watched := make(chan error, 1)
	var release func()
	go func() {
		var err error
		release, err = listener.Watch(context.Background(), "alice")
		watched <- err
	}()
	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("connect never started")
	}

	feeds := make(chan int, 1)
	go func() { feeds <- listener.Feeds() }()
	select {
	case n := <-feeds:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("listener lock held during connect")
	}

	close(gate)
	select {
	case err := <-watched:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not finish")
	}
	assert.Equal(t, 1, listener.Feeds())
	release()
	require.NoError(t, listener.Stop(context.Background()))
}
