package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	K string
	V int
	T time.Time
}

func key(r rec) string        { return r.K }
func sameValue(a, b rec) bool { return a.V == b.V }
func stamp(r rec) time.Time   { return r.T }

func keys(items []rec) []string {
	out := []string{}
	for _, r := range items {
		out = append(out, r.K)
	}
	return out
}

func TestDiffClassifiesAndOrders(t *testing.T) {
	source := []rec{{K: "c", V: 3}, {K: "a", V: 1}, {K: "b", V: 20}}
	target := []rec{{K: "b", V: 2}, {K: "d", V: 4}, {K: "a", V: 1}}

	plan := Diff(source, target, key, sameValue)
	assert.Equal(t, []string{"c"}, keys(plan.Add))
	assert.Equal(t, []string{"b"}, keys(plan.Update))
	assert.Equal(t, 20, plan.Update[0].V)
	assert.Equal(t, []string{"d"}, keys(plan.Delete))
	assert.Equal(t, 3, plan.Len())

	result := Apply(target, plan, key)
	assert.Equal(t, Apply(source, Plan[rec]{}, key), result)
}

func TestDiffLastDuplicateWins(t *testing.T) {
	source := []rec{{K: "a", V: 1}, {K: "a", V: 2}}
	target := []rec{{K: "a", V: 2}}
	plan := Diff(source, target, key, sameValue)
	assert.True(t, plan.Empty())

	plan = Diff([]rec{{K: "a", V: 2}, {K: "a", V: 5}}, target, key, sameValue)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, 5, plan.Update[0].V)
}

func TestDiffEmptyInputs(t *testing.T) {
	plan := Diff(nil, nil, key, sameValue)
	assert.True(t, plan.Empty())
	assert.NotNil(t, plan.Add)
	assert.NotNil(t, plan.Delete)

	plan = Diff(nil, []rec{{K: "x"}}, key, sameValue)
	assert.Equal(t, []string{"x"}, keys(plan.Delete))
}

func TestMergeNewerWinsTiesKeepLocal(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	local := []rec{
		{K: "only-local", T: t0},
		{K: "local-newer", V: 1, T: t0.Add(time.Hour)},
		{K: "remote-newer", V: 1, T: t0},
		{K: "tie", V: 1, T: t0},
	}
	remote := []rec{
		{K: "only-remote", T: t0},
		{K: "local-newer", V: 2, T: t0},
		{K: "remote-newer", V: 2, T: t0.Add(time.Hour)},
		{K: "tie", V: 2, T: t0},
	}

	plan := Merge(local, remote, key, stamp)
	assert.Equal(t, []string{"only-remote", "remote-newer"}, keys(plan.ToLocal))
	assert.Equal(t, []string{"local-newer", "only-local"}, keys(plan.ToRemote))
	assert.Equal(t, 2, plan.ToLocal[1].V)
}

func TestShadowedListsDroppedDuplicates(t *testing.T) {
	items := []rec{{K: "a", V: 1}, {K: "b", V: 2}, {K: "a", V: 3}, {K: "a", V: 4}}
	shadowed := Shadowed(items, key)
	require.Len(t, shadowed, 2)
	assert.Equal(t, 1, shadowed[0].V)
	assert.Equal(t, 3, shadowed[1].V)
	assert.Empty(t, Shadowed([]rec{{K: "a"}, {K: "b"}}, key))
}
