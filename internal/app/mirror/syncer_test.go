package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/memory"
	"github.com/R3E-Network/souschef/internal/app/storage/remote"
	"github.com/R3E-Network/souschef/internal/app/storage/remote/remotetest"
	"github.com/R3E-Network/souschef/internal/logging"
)

func newSyncer(t *testing.T) (*Syncer, *memory.Store, *remote.Store, *remotetest.Server) {
	t.Helper()
	server, c := remotetest.New(t)
	local := memory.New()
	rem := remote.New(c)
	return NewSyncer(local, rem, logging.Discard()), local, rem, server
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeMerge, "PUSH": ModePush, " pull ": ModePull, "merge": ModeMerge} {
		got, err := ParseMode(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("sideways")
	assert.Error(t, err)
}

func TestPushMirrorsLocalAndDeletesRemoteExtras(t *testing.T) {
	syncer, local, rem, server := newSyncer(t)
	ctx := context.Background()

	_, err := local.CreateAccount(ctx, account.Account{ID: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	r, err := local.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Soup", Servings: 2})
	require.NoError(t, err)
	_, err = local.CreateIngredient(ctx, recipe.Ingredient{OwnerID: "alice", RecipeID: r.ID, Name: "Leek"})
	require.NoError(t, err)
	stale, err := rem.CreateNote(ctx, note.Note{OwnerID: "alice", Title: "stale"})
	require.NoError(t, err)

	report, err := syncer.Sync(ctx, "alice", ModePush)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Collections[storage.CollectionRecipes].RemoteAdded)
	assert.Equal(t, 1, report.Collections[storage.CollectionIngredients].RemoteAdded)
	assert.Equal(t, 1, report.Collections[storage.CollectionAccounts].RemoteAdded)
	assert.Equal(t, 1, report.Collections[storage.CollectionNotes].RemoteDeleted)

	row, ok := server.Row("recipes", r.ID)
	require.True(t, ok)
	assert.True(t, row.UpdatedAt.Equal(r.UpdatedAt), "push keeps local timestamps")
	_, ok = server.Row("notes", stale.ID)
	assert.False(t, ok)

	again, err := syncer.Sync(ctx, "alice", ModePush)
	require.NoError(t, err)
	assert.Zero(t, again.Total())

	last, ok := syncer.Last("alice")
	require.True(t, ok)
	assert.Equal(t, ModePush, last.Mode)
}

func TestPullMirrorsRemote(t *testing.T) {
	syncer, local, rem, _ := newSyncer(t)
	ctx := context.Background()

	remoteRecipe, err := rem.CreateRecipe(ctx, recipe.Recipe{OwnerID: "alice", Name: "Curry", Servings: 4})
	require.NoError(t, err)
	localOnly, err := local.CreateNote(ctx, note.Note{OwnerID: "alice", Title: "scratch"})
	require.NoError(t, err)

	report, err := syncer.Sync(ctx, "alice", ModePull)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Collections[storage.CollectionRecipes].LocalAdded)
	assert.Equal(t, 1, report.Collections[storage.CollectionNotes].LocalDeleted)

	got, err := local.GetRecipe(ctx, remoteRecipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curry", got.Name)
	_, err = local.GetNote(ctx, localOnly.ID)
	assert.True(t, storage.IsNotFound(err))

	again, err := syncer.Sync(ctx, "alice", ModePull)
	require.NoError(t, err)
	assert.Zero(t, again.Total(), "restamped local copies are not rewritten")
}

func TestMergeNewerWinsAndNeverDeletes(t *testing.T) {
	syncer, local, rem, server := newSyncer(t)
	ctx := context.Background()

	shared, err := local.CreateNote(ctx, note.Note{OwnerID: "alice", Title: "draft"})
	require.NoError(t, err)
	older := shared
	older.Title = "old remote"
	older.UpdatedAt = shared.UpdatedAt.Add(-time.Hour)
	require.NoError(t, rem.Notes.Upsert(ctx, older))

	remoteOnly, err := rem.CreateNote(ctx, note.Note{OwnerID: "alice", Title: "from phone"})
	require.NoError(t, err)
	localOnly, err := local.CreateNote(ctx, note.Note{OwnerID: "alice", Title: "from laptop"})
	require.NoError(t, err)

	report, err := syncer.Sync(ctx, "alice", ModeMerge)
	require.NoError(t, err)
	counts := report.Collections[storage.CollectionNotes]
	assert.Equal(t, 1, counts.LocalAdded)
	assert.Equal(t, 1, counts.RemoteAdded)
	assert.Equal(t, 1, counts.RemoteUpdated)
	assert.Zero(t, counts.LocalDeleted+counts.RemoteDeleted)

	_, err = local.GetNote(ctx, remoteOnly.ID)
	assert.NoError(t, err)
	_, ok := server.Row("notes", localOnly.ID)
	assert.True(t, ok)
	n, err := rem.GetNote(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", n.Title)
	assert.Equal(t, 3, server.Len("notes"))
}

func TestSyncAllVisitsLocalAccounts(t *testing.T) {
	syncer, local, _, server := newSyncer(t)
	ctx := context.Background()

	for _, id := range []string{"bob", "alice"} {
		_, err := local.CreateAccount(ctx, account.Account{ID: id, Email: id + "@example.com"})
		require.NoError(t, err)
	}
	reports, err := syncer.SyncAll(ctx, ModeMerge)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "alice", reports[0].Owner)
	assert.Equal(t, 2, server.Len("accounts"))

	_, err = syncer.Sync(ctx, " ", ModeMerge)
	assert.Error(t, err)
}

func TestPullReplacesLocalLogForSameDay(t *testing.T) {
	syncer, local, rem, _ := newSyncer(t)
	ctx := context.Background()

	_, err := local.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: "2024-03-01", Note: "laptop"})
	require.NoError(t, err)
	require.NoError(t, rem.Logs.Upsert(ctx, logbook.Log{
		ID: "phone-log", OwnerID: "alice", Date: "2024-03-01", Note: "phone", UpdatedAt: time.Now().UTC(),
	}))

	report, err := syncer.Sync(ctx, "alice", ModePull)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Collections[storage.CollectionLogs].LocalUpdated)

	got, err := local.GetLogByDate(ctx, "alice", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "phone-log", got.ID)
	assert.Equal(t, "phone", got.Note)
	all, err := local.ListLogs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	again, err := syncer.Sync(ctx, "alice", ModePull)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}

func TestMergeResolvesSameDayLogsByTime(t *testing.T) {
	syncer, local, rem, server := newSyncer(t)
	ctx := context.Background()

	mine, err := local.CreateLog(ctx, logbook.Log{OwnerID: "alice", Date: "2024-03-01", Note: "laptop"})
	require.NoError(t, err)
	require.NoError(t, rem.Logs.Upsert(ctx, logbook.Log{
		ID: "phone-log", OwnerID: "alice", Date: "2024-03-01", Note: "phone", UpdatedAt: mine.UpdatedAt.Add(-time.Hour),
	}))
	require.NoError(t, rem.Logs.Upsert(ctx, logbook.Log{
		ID: "older-day", OwnerID: "alice", Date: "2024-02-28", Note: "phone", UpdatedAt: mine.UpdatedAt.Add(-time.Hour),
	}))

	report, err := syncer.Sync(ctx, "alice", ModeMerge)
	require.NoError(t, err)
	counts := report.Collections[storage.CollectionLogs]
	assert.Equal(t, 1, counts.RemoteUpdated)
	assert.Equal(t, 1, counts.LocalAdded)

	_, ok := server.Row("logs", "phone-log")
	assert.False(t, ok, "the older same-day log is replaced")
	_, ok = server.Row("logs", mine.ID)
	assert.True(t, ok)
	_, err = local.GetLogByDate(ctx, "alice", "2024-02-28")
	assert.NoError(t, err)
}

func TestSyncWaitsForRunningOwner(t *testing.T) {
	syncer, _, _, _ := newSyncer(t)
	ctx := context.Background()

	held := syncer.ownerLock("alice")
	held.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := syncer.Sync(ctx, "alice", ModeMerge)
		done <- err
	}()

	_, err := syncer.Sync(ctx, "bob", ModeMerge)
	require.NoError(t, err, "other owners are not blocked")
	select {
	case <-done:
		t.Fatal("sync ran while another run held the owner")
	case <-time.After(50 * time.Millisecond):
	}

	held.Unlock()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not resume")
	}
}
