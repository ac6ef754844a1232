package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/metrics"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/remote"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Mode selects the sync direction.
type Mode string

const (
	// ModePush makes remote equal to local, deleting remote extras.
	ModePush Mode = "push"
	// ModePull makes local equal to remote, deleting local extras.
	ModePull Mode = "pull"
	// ModeMerge copies in both directions and never deletes.
	ModeMerge Mode = "merge"
)

// ParseMode validates a mode name. Empty means merge.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModePush:
		return ModePush, nil
	case ModePull:
		return ModePull, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", raw)
	}
}

// Counts are the writes applied to one collection.
type Counts struct {
	LocalAdded    int `json:"local_added"`
	LocalUpdated  int `json:"local_updated"`
	LocalDeleted  int `json:"local_deleted"`
	RemoteAdded   int `json:"remote_added"`
	RemoteUpdated int `json:"remote_updated"`
	RemoteDeleted int `json:"remote_deleted"`
}

// Total is the number of writes on both sides.
func (c Counts) Total() int {
	return c.LocalAdded + c.LocalUpdated + c.LocalDeleted + c.RemoteAdded + c.RemoteUpdated + c.RemoteDeleted
}

// Report describes one owner's sync run.
type Report struct {
	Owner       string            `json:"owner"`
	Mode        Mode              `json:"mode"`
	Collections map[string]Counts `json:"collections"`
	Duration    time.Duration     `json:"duration"`
}

// Total is the number of writes across collections.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Total()
	}
	return n
}

type collectionSync interface {
	name() string
	run(ctx context.Context, owner string, mode Mode) (Counts, error)
}

// binding ties one collection's local store calls to its remote collection.
// Records are matched by key, which defaults to the id. A collection with
// its own unique key (one log per day) matches on that, and a matched pair
// with different ids is resolved by replacing the target record.
type binding[T any] struct {
	collection string
	list       func(ctx context.Context, owner string) ([]T, error)
	create     func(ctx context.Context, v T) (T, error)
	update     func(ctx context.Context, v T) (T, error)
	remove     func(ctx context.Context, id string) error
	remote     *remote.Collection[T]
	id         func(T) string
	key        func(T) string
	updatedAt  func(T) time.Time
}

func (b binding[T]) name() string { return b.collection }

func (b binding[T]) keyOf(v T) string {
	if b.key != nil {
		return b.key(v)
	}
	return b.id(v)
}

func (b binding[T]) run(ctx context.Context, owner string, mode Mode) (Counts, error) {
	var counts Counts
	local, err := b.list(ctx, owner)
	if err != nil {
		return counts, fmt.Errorf("list local %s: %w", b.collection, err)
	}
	remoteItems, err := b.remote.List(ctx, owner)
	if err != nil {
		return counts, fmt.Errorf("list remote %s: %w", b.collection, err)
	}
	localByKey, _ := index(local, b.keyOf)
	remoteByKey, _ := index(remoteItems, b.keyOf)

	switch mode {
	case ModePush:
		plan := Diff(local, remoteItems, b.keyOf, sameContent[T])
		for _, v := range append(Shadowed(remoteItems, b.keyOf), plan.Delete...) {
			if err := b.deleteRemote(ctx, b.id(v)); err != nil {
				return counts, err
			}
		}
		for _, v := range append(plan.Add, plan.Update...) {
			if err := b.putRemote(ctx, v, remoteByKey); err != nil {
				return counts, err
			}
		}
		counts.RemoteAdded, counts.RemoteUpdated, counts.RemoteDeleted = len(plan.Add), len(plan.Update), len(plan.Delete)

	case ModePull:
		plan := Diff(remoteItems, local, b.keyOf, sameContent[T])
		for _, v := range append(Shadowed(local, b.keyOf), plan.Delete...) {
			if err := b.deleteLocal(ctx, b.id(v)); err != nil {
				return counts, err
			}
		}
		for _, v := range append(plan.Add, plan.Update...) {
			if err := b.putLocal(ctx, v, localByKey); err != nil {
				return counts, err
			}
		}
		counts.LocalAdded, counts.LocalUpdated, counts.LocalDeleted = len(plan.Add), len(plan.Update), len(plan.Delete)

	default:
		plan := Merge(local, remoteItems, b.keyOf, b.updatedAt)
		for _, v := range plan.ToLocal {
			have, exists := localByKey[b.keyOf(v)]
			if exists && sameContent(v, have) {
				continue
			}
			if err := b.putLocal(ctx, v, localByKey); err != nil {
				return counts, err
			}
			if exists {
				counts.LocalUpdated++
			} else {
				counts.LocalAdded++
			}
		}
		for _, v := range plan.ToRemote {
			have, exists := remoteByKey[b.keyOf(v)]
			if exists && sameContent(v, have) {
				continue
			}
			if err := b.putRemote(ctx, v, remoteByKey); err != nil {
				return counts, err
			}
			if exists {
				counts.RemoteUpdated++
			} else {
				counts.RemoteAdded++
			}
		}
	}
	return counts, nil
}

// putLocal writes v locally, creating it when no record with its id exists.
// A local record holding v's key under another id is removed first.
func (b binding[T]) putLocal(ctx context.Context, v T, localByKey map[string]T) error {
	if have, ok := localByKey[b.keyOf(v)]; ok && b.id(have) != b.id(v) {
		if err := b.deleteLocal(ctx, b.id(have)); err != nil {
			return err
		}
	}
	_, err := b.update(ctx, v)
	if storage.IsNotFound(err) {
		_, err = b.create(ctx, v)
	}
	if err != nil {
		return fmt.Errorf("write local %s %s: %w", b.collection, b.id(v), err)
	}
	return nil
}

// putRemote upserts v remotely, replacing a remote record that holds v's key
// under another id.
func (b binding[T]) putRemote(ctx context.Context, v T, remoteByKey map[string]T) error {
	if have, ok := remoteByKey[b.keyOf(v)]; ok && b.id(have) != b.id(v) {
		if err := b.deleteRemote(ctx, b.id(have)); err != nil {
			return err
		}
	}
	if err := b.remote.Upsert(ctx, v); err != nil {
		return fmt.Errorf("push %s %s: %w", b.collection, b.id(v), err)
	}
	return nil
}

func (b binding[T]) deleteLocal(ctx context.Context, id string) error {
	if err := b.remove(ctx, id); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("delete local %s %s: %w", b.collection, id, err)
	}
	return nil
}

func (b binding[T]) deleteRemote(ctx context.Context, id string) error {
	if _, err := b.remote.Delete(ctx, id); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("delete remote %s %s: %w", b.collection, id, err)
	}
	return nil
}

// sameContent compares two records ignoring their timestamps, which local
// stores reset on every write. Null and empty lists compare equal.
func sameContent[T any](a, b T) bool {
	return reflect.DeepEqual(contentOf(a), contentOf(b))
}

func contentOf(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	delete(m, "created_at")
	delete(m, "updated_at")
	for k, v := range m {
		if list, ok := v.([]any); v == nil || (ok && len(list) == 0) {
			delete(m, k)
		}
	}
	return m
}

// Syncer mirrors owners' records between the local store and the remote
// document backend.
type Syncer struct {
	local       storage.Stores
	remote      *remote.Store
	log         *logging.Logger
	concurrency int
	bindings    []collectionSync

	mu    sync.Mutex
	last  map[string]Report
	locks map[string]*sync.Mutex
}

// NewSyncer builds a syncer over every owned collection plus the account.
func NewSyncer(local storage.Stores, rem *remote.Store, log *logging.Logger) *Syncer {
	if log == nil {
		log = logging.NewDefault("mirror")
	}
	s := &Syncer{local: local, remote: rem, log: log, concurrency: 4, last: map[string]Report{}, locks: map[string]*sync.Mutex{}}
	s.bindings = []collectionSync{
		binding[account.Account]{
			collection: storage.CollectionAccounts,
			list: func(ctx context.Context, owner string) ([]account.Account, error) {
				acct, err := local.GetAccount(ctx, owner)
				if storage.IsNotFound(err) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return []account.Account{acct}, nil
			},
			create:    local.CreateAccount,
			update:    local.UpdateAccount,
			remove:    local.DeleteAccount,
			remote:    rem.Accounts,
			id:        func(a account.Account) string { return a.ID },
			updatedAt: func(a account.Account) time.Time { return a.UpdatedAt },
		},
		binding[recipe.Recipe]{
			collection: storage.CollectionRecipes,
			list:       local.ListRecipes,
			create:     local.CreateRecipe,
			update:     local.UpdateRecipe,
			remove:     local.DeleteRecipe,
			remote:     rem.Recipes,
			id:         func(r recipe.Recipe) string { return r.ID },
			updatedAt:  func(r recipe.Recipe) time.Time { return r.UpdatedAt },
		},
		binding[recipe.Ingredient]{
			collection: storage.CollectionIngredients,
			list:       local.ListOwnerIngredients,
			create:     local.CreateIngredient,
			update:     local.UpdateIngredient,
			remove:     local.DeleteIngredient,
			remote:     rem.Ingredients,
			id:         func(i recipe.Ingredient) string { return i.ID },
			updatedAt:  func(i recipe.Ingredient) time.Time { return i.UpdatedAt },
		},
		binding[logbook.Log]{
			collection: storage.CollectionLogs,
			list:       local.ListLogs,
			create:     local.CreateLog,
			update:     local.UpdateLog,
			remove:     local.DeleteLog,
			remote:     rem.Logs,
			id:         func(l logbook.Log) string { return l.ID },
			key:        func(l logbook.Log) string { return l.Date },
			updatedAt:  func(l logbook.Log) time.Time { return l.UpdatedAt },
		},
		binding[note.Note]{
			collection: storage.CollectionNotes,
			list:       local.ListNotes,
			create:     local.CreateNote,
			update:     local.UpdateNote,
			remove:     local.DeleteNote,
			remote:     rem.Notes,
			id:         func(n note.Note) string { return n.ID },
			updatedAt:  func(n note.Note) time.Time { return n.UpdatedAt },
		},
		binding[product.Product]{
			collection: storage.CollectionProducts,
			list:       local.ListProducts,
			create:     local.CreateProduct,
			update:     local.UpdateProduct,
			remove:     local.DeleteProduct,
			remote:     rem.Products,
			id:         func(p product.Product) string { return p.ID },
			updatedAt:  func(p product.Product) time.Time { return p.UpdatedAt },
		},
		binding[shopping.Item]{
			collection: storage.CollectionShopping,
			list:       local.ListShoppingItems,
			create:     local.CreateShoppingItem,
			update:     local.UpdateShoppingItem,
			remove:     local.DeleteShoppingItem,
			remote:     rem.Shopping,
			id:         func(i shopping.Item) string { return i.ID },
			updatedAt:  func(i shopping.Item) time.Time { return i.UpdatedAt },
		},
		binding[receipt.Receipt]{
			collection: storage.CollectionReceipts,
			list:       local.ListReceipts,
			create:     local.CreateReceipt,
			update:     local.UpdateReceipt,
			remove:     local.DeleteReceipt,
			remote:     rem.Receipts,
			id:         func(r receipt.Receipt) string { return r.ID },
			updatedAt:  func(r receipt.Receipt) time.Time { return r.UpdatedAt },
		},
	}
	return s
}

// Sync mirrors owner's collections in mode. Collections run concurrently;
// the first failure cancels the rest. Runs for the same owner are
// serialised, whether they come from the scheduler or a request.
func (s *Syncer) Sync(ctx context.Context, owner string, mode Mode) (Report, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Report{}, fmt.Errorf("owner is required")
	}
	if mode == "" {
		mode = ModeMerge
	}
	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()
	start := time.Now()
	report := Report{Owner: owner, Mode: mode, Collections: make(map[string]Counts, len(s.bindings))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, b := range s.bindings {
		g.Go(func() error {
			counts, err := b.run(gctx, owner, mode)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Collections[b.name()] = counts
			mu.Unlock()
			recordCounts(b.name(), counts)
			return nil
		})
	}
	err := g.Wait()
	report.Duration = time.Since(start)
	metrics.RecordSyncRun(string(mode), report.Duration, err == nil)

	entry := s.log.WithContext(ctx).WithField("owner", owner).WithField("mode", mode).WithField("writes", report.Total())
	if err != nil {
		entry.WithError(err).Warn("sync failed")
		return report, err
	}
	entry.Info("sync finished")

	s.mu.Lock()
	s.last[owner] = report
	s.mu.Unlock()
	return report, nil
}

// SyncAll syncs every known owner: local accounts for push and merge,
// remote accounts for pull. It keeps going after a failed owner and
// returns the joined errors.
func (s *Syncer) SyncAll(ctx context.Context, mode Mode) ([]Report, error) {
	owners, err := s.owners(ctx, mode)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(owners))
	var errs []error
	for _, owner := range owners {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := s.Sync(ctx, owner, mode)
		if err != nil {
			errs = append(errs, fmt.Errorf("owner %s: %w", owner, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (s *Syncer) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		s.locks[owner] = l
	}
	return l
}

// Last returns the most recent successful report for owner.
func (s *Syncer) Last(owner string) (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[owner]
	return r, ok
}

func (s *Syncer) owners(ctx context.Context, mode Mode) ([]string, error) {
	var (
		accounts []account.Account
		err      error
	)
	if mode == ModePull {
		accounts, err = s.remote.ListAccounts(ctx)
	} else {
		accounts, err = s.local.ListAccounts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func recordCounts(collection string, c Counts) {
	metrics.RecordSyncChanges(collection, "local", "add", c.LocalAdded)
	metrics.RecordSyncChanges(collection, "local", "update", c.LocalUpdated)
	metrics.RecordSyncChanges(collection, "local", "delete", c.LocalDeleted)
	metrics.RecordSyncChanges(collection, "remote", "add", c.RemoteAdded)
	metrics.RecordSyncChanges(collection, "remote", "update", c.RemoteUpdated)
	metrics.RecordSyncChanges(collection, "remote", "delete", c.RemoteDeleted)
}
