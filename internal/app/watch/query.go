package watch

import "context"

// Snapshot is the full result of a reactive query at one point in time.
type Snapshot[T any] struct {
	Collection string
	Items      []T
	Err        error
}

// FetchFunc loads the current contents of a collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Query emits a snapshot of fetch's result immediately and again after every
// change to owner's collection. Changes that arrive while a snapshot is being
// produced are coalesced into the next fetch. The returned channel is closed
// when ctx is done or the hub closes.
func Query[T any](ctx context.Context, hub *Hub, owner, collection string, fetch FetchFunc[T]) <-chan Snapshot[T] {
	out := make(chan Snapshot[T])
	sub := hub.Subscribe(ctx, owner, collection)

	go func() {
		defer close(out)
		defer sub.Close()

		emit := func() bool {
			items, err := fetch(ctx)
			select {
			case out <- Snapshot[T]{Collection: collection, Items: items, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				drain(sub.C())
				if !emit() {
					return
				}
			}
		}
	}()
	return out
}

func drain(ch <-chan Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
