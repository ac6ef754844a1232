package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/souschef/internal/app/watch"
	"github.com/R3E-Network/souschef/internal/logging"
	"github.com/R3E-Network/souschef/supabase/client"
)

// OriginRealtime marks changes received from Supabase Realtime.
const OriginRealtime = "supabase-realtime"

type changeSource interface {
	Name() string
	relay(ctx context.Context, rt *client.RealtimeClient, owner string, pub watch.Publisher) (*client.Subscription, error)
}

func (c *Collection[T]) relay(ctx context.Context, rt *client.RealtimeClient, owner string, pub watch.Publisher) (*client.Subscription, error) {
	return c.Listen(ctx, rt, owner, func(e Event[T]) {
		pub.Publish(watch.Change{
			OwnerID:    owner,
			Collection: c.name,
			ID:         e.ID,
			Op:         e.Op,
			At:         time.Now().UTC(),
			Origin:     OriginRealtime,
		})
	})
}

func (s *Store) ownedSources() []changeSource {
	return []changeSource{s.Recipes, s.Ingredients, s.Products, s.Logs, s.Notes, s.Shopping, s.Receipts}
}

type feed struct {
	refs   int
	cancel context.CancelFunc
	rt     *client.RealtimeClient
}

// Listener keeps one realtime connection per watched owner and republishes
// its row changes, so writes made by other clients reach local subscribers.
type Listener struct {
	store     *Store
	publisher watch.Publisher
	log       *logging.Logger
	realtime  func() *client.RealtimeClient

	mu    sync.Mutex
	feeds map[string]*feed
}

// NewListener creates a listener relaying into pub.
func NewListener(store *Store, pub watch.Publisher, log *logging.Logger) *Listener {
	if log == nil {
		log = logging.NewDefault("remote-listener")
	}
	return &Listener{
		store:     store,
		publisher: pub,
		log:       log,
		realtime:  func() *client.RealtimeClient { return store.client.Realtime() },
		feeds:     make(map[string]*feed),
	}
}

func (l *Listener) Name() string                { return "remote-listener" }
func (l *Listener) Start(context.Context) error { return nil }

// Stop closes every open feed.
func (l *Listener) Stop(context.Context) error {
	l.mu.Lock()
	feeds := l.feeds
	l.feeds = make(map[string]*feed)
	l.mu.Unlock()

	for _, f := range feeds {
		f.cancel()
		_ = f.rt.Close()
	}
	return nil
}

// Watch starts relaying owner's changes and returns a release function.
// Concurrent watchers of one owner share a connection. The connection is
// opened without holding the lock; when two watchers race, the later one
// closes its own connection and joins the first feed.
func (l *Listener) Watch(ctx context.Context, owner string) (func(), error) {
	if release, ok := l.join(owner); ok {
		return release, nil
	}

	rt := l.realtime()
	if err := rt.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect realtime: %w", err)
	}
	feedCtx, cancel := context.WithCancel(context.Background())
	for _, src := range l.store.ownedSources() {
		if _, err := src.relay(feedCtx, rt, owner, l.publisher); err != nil {
			cancel()
			_ = rt.Close()
			return nil, fmt.Errorf("listen %s: %w", src.Name(), err)
		}
	}
	f := &feed{refs: 1, cancel: cancel, rt: rt}

	l.mu.Lock()
	if existing, ok := l.feeds[owner]; ok {
		existing.refs++
		l.mu.Unlock()
		cancel()
		_ = rt.Close()
		return l.releaser(owner, existing), nil
	}
	l.feeds[owner] = f
	l.mu.Unlock()

	go l.watchConnection(owner, f)
	l.log.WithField("owner_id", owner).Debug("Realtime feed opened")
	return l.releaser(owner, f), nil
}

func (l *Listener) join(owner string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.feeds[owner]
	if !ok {
		return nil, false
	}
	f.refs++
	return l.releaser(owner, f), true
}

func (l *Listener) releaser(owner string, f *feed) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			f.refs--
			last := f.refs == 0 && l.feeds[owner] == f
			if last {
				delete(l.feeds, owner)
			}
			l.mu.Unlock()
			if last {
				f.cancel()
				_ = f.rt.Close()
				l.log.WithField("owner_id", owner).Debug("Realtime feed closed")
			}
		})
	}
}

// watchConnection forgets a feed whose connection dropped so the next Watch
// reconnects.
func (l *Listener) watchConnection(owner string, f *feed) {
	<-f.rt.Done()
	if err := f.rt.Err(); err != nil {
		l.log.WithError(err).WithField("owner_id", owner).Warn("Realtime connection lost")
	}
	l.mu.Lock()
	if l.feeds[owner] == f {
		delete(l.feeds, owner)
	}
	l.mu.Unlock()
	f.cancel()
}

// Feeds reports the number of owners currently watched.
func (l *Listener) Feeds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.feeds)
}
