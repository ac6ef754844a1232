// Package mirror compares keyed record lists and keeps the local store and
// the remote document backend in step.
package mirror

import (
	"sort"
	"time"
)

// Plan lists the writes that turn a target list into a source list. Each
// slice is ordered by key.
type Plan[T any] struct {
	Add    []T
	Update []T
	Delete []T
}

// Empty reports whether the plan has nothing to do.
func (p Plan[T]) Empty() bool {
	return len(p.Add) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Len is the total number of writes.
func (p Plan[T]) Len() int {
	return len(p.Add) + len(p.Update) + len(p.Delete)
}

func index[T any](items []T, key func(T) string) (map[string]T, []string) {
	byKey := make(map[string]T, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, seen := byKey[k]; !seen {
			keys = append(keys, k)
		}
		byKey[k] = item
	}
	sort.Strings(keys)
	return byKey, keys
}

// Shadowed returns the items a keyed lookup of items drops: every item
// followed by another with the same key, in input order.
func Shadowed[T any](items []T, key func(T) string) []T {
	last := make(map[string]int, len(items))
	for i, item := range items {
		last[key(item)] = i
	}
	out := []T{}
	for i, item := range items {
		if last[key(item)] != i {
			out = append(out, item)
		}
	}
	return out
}

// Diff compares source with target. Items only in source are added, items
// only in target are deleted and items in both are updated with the source
// value unless equal reports them the same. When a key repeats within one
// list the last occurrence wins.
func Diff[T any](source, target []T, key func(T) string, equal func(a, b T) bool) Plan[T] {
	src, srcKeys := index(source, key)
	dst, dstKeys := index(target, key)

	plan := Plan[T]{Add: []T{}, Update: []T{}, Delete: []T{}}
	for _, k := range srcKeys {
		want := src[k]
		have, ok := dst[k]
		switch {
		case !ok:
			plan.Add = append(plan.Add, want)
		case !equal(want, have):
			plan.Update = append(plan.Update, want)
		}
	}
	for _, k := range dstKeys {
		if _, ok := src[k]; !ok {
			plan.Delete = append(plan.Delete, dst[k])
		}
	}
	return plan
}

// Apply runs plan against target and returns the resulting list ordered by
// key. It is the in-memory counterpart of executing the plan on a store.
func Apply[T any](target []T, plan Plan[T], key func(T) string) []T {
	byKey, _ := index(target, key)
	for _, item := range plan.Delete {
		delete(byKey, key(item))
	}
	for _, item := range plan.Update {
		byKey[key(item)] = item
	}
	for _, item := range plan.Add {
		byKey[key(item)] = item
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

// MergePlan is a two-way plan: writes to make on each side. It never
// deletes.
type MergePlan[T any] struct {
	ToLocal  []T
	ToRemote []T
}

// Merge reconciles two lists without deletions. Items present on one side
// only are copied to the other; items on both sides resolve to the newer
// updatedAt, and ties keep local.
func Merge[T any](local, remote []T, key func(T) string, updatedAt func(T) time.Time) MergePlan[T] {
	loc, locKeys := index(local, key)
	rem, remKeys := index(remote, key)

	plan := MergePlan[T]{ToLocal: []T{}, ToRemote: []T{}}
	for _, k := range locKeys {
		l := loc[k]
		r, ok := rem[k]
		switch {
		case !ok:
			plan.ToRemote = append(plan.ToRemote, l)
		case updatedAt(r).After(updatedAt(l)):
			plan.ToLocal = append(plan.ToLocal, r)
		case updatedAt(l).After(updatedAt(r)):
			plan.ToRemote = append(plan.ToRemote, l)
		}
	}
	for _, k := range remKeys {
		if _, ok := loc[k]; !ok {
			plan.ToLocal = append(plan.ToLocal, rem[k])
		}
	}
	sortByKey(plan.ToLocal, key)
	return plan
}

func sortByKey[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
}
