package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestHubDeliversToMatchingOwnerAndCollection(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	all := hub.Subscribe(context.Background(), "alice")
	recipes := hub.Subscribe(context.Background(), "alice", "recipes")
	bob := hub.Subscribe(context.Background(), "bob")
	defer all.Close()
	defer recipes.Close()
	defer bob.Close()

	hub.Publish(Change{OwnerID: "alice", Collection: "notes", ID: "n1", Op: OpCreate})
	hub.Publish(Change{OwnerID: "alice", Collection: "recipes", ID: "r1", Op: OpUpdate})

	assert.Equal(t, "n1", recv(t, all.C()).ID)
	assert.Equal(t, "r1", recv(t, all.C()).ID)
	got := recv(t, recipes.C())
	assert.Equal(t, "r1", got.ID)
	assert.False(t, got.At.IsZero())

	select {
	case c := <-bob.C():
		t.Fatalf("bob received alice's change %+v", c)
	default:
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()
	sub := hub.Subscribe(context.Background(), "alice")
	defer sub.Close()

	for i := 0; i < 3; i++ {
		hub.Publish(Change{OwnerID: "alice", Collection: "recipes", ID: "r"})
	}
	assert.EqualValues(t, 2, sub.Dropped())
	recv(t, sub.C())
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()
	ctx, cancel := context.WithCancel(context.Background())
	sub := hub.Subscribe(ctx, "alice")
	require.Equal(t, 1, hub.Subscribers("alice"))

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not released")
	}
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("alice"))
	sub.Close()
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(context.Background(), "alice")
	hub.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	late := hub.Subscribe(context.Background(), "alice")
	_, ok = <-late.C()
	assert.False(t, ok)
	hub.Publish(Change{OwnerID: "alice"})
}

func TestQueryEmitsInitialAndChangedSnapshots(t *testing.T) {
	hub := NewHub(8)
	defer hub.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var version atomic.Int32
	snapshots := Query(ctx, hub, "alice", "recipes", func(context.Context) ([]int32, error) {
		return []int32{version.Load()}, nil
	})

	first := <-snapshots
	require.NoError(t, first.Err)
	assert.Equal(t, []int32{0}, first.Items)
	assert.Equal(t, "recipes", first.Collection)

	// Wait for the query's subscription before publishing.
	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 1 }, time.Second, 5*time.Millisecond)
	version.Store(1)
	hub.Publish(Change{OwnerID: "alice", Collection: "notes"})
	hub.Publish(Change{OwnerID: "alice", Collection: "recipes"})

	select {
	case snap := <-snapshots:
		assert.Equal(t, []int32{1}, snap.Items)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after change")
	}

	cancel()
	for range snapshots {
	}
}
