// Package remote stores records as JSON documents in Supabase tables shaped
// {id, owner_id, data jsonb, updated_at} and streams their changes over
// Supabase Realtime.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
	"github.com/R3E-Network/souschef/supabase/client"
)

// document is the row shape of every collection table.
type document struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Codec describes how a record maps onto a document row.
type Codec[T any] struct {
	ID        func(T) string
	Owner     func(T) string
	UpdatedAt func(T) time.Time
	// Encode and Decode default to encoding/json on T.
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

func (c Codec[T]) encode(v T) ([]byte, error) {
	if c.Encode != nil {
		return c.Encode(v)
	}
	return json.Marshal(v)
}

func (c Codec[T]) decode(raw []byte) (T, error) {
	if c.Decode != nil {
		return c.Decode(raw)
	}
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// Filter narrows a List query.
type Filter func(*client.QueryBuilder) *client.QueryBuilder

// DataEq matches a top-level string field of the document.
func DataEq(field, value string) Filter {
	return func(q *client.QueryBuilder) *client.QueryBuilder { return q.Eq("data->>"+field, value) }
}

// DataBetween bounds a top-level field; empty bounds are open.
func DataBetween(field, from, to string) Filter {
	return func(q *client.QueryBuilder) *client.QueryBuilder {
		if from != "" {
			q = q.Gte("data->>"+field, from)
		}
		if to != "" {
			q = q.Lte("data->>"+field, to)
		}
		return q
	}
}

// Collection is a typed view over one document table.
type Collection[T any] struct {
	client *client.Client
	table  string
	name   string
	codec  Codec[T]
}

// NewCollection binds table to the record type described by codec. name is
// the collection name used in change notifications.
func NewCollection[T any](c *client.Client, table, name string, codec Codec[T]) *Collection[T] {
	return &Collection[T]{client: c, table: table, name: name, codec: codec}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Table returns the backing table.
func (c *Collection[T]) Table() string { return c.table }

func (c *Collection[T]) toDocument(v T) (document, error) {
	data, err := c.codec.encode(v)
	if err != nil {
		return document{}, fmt.Errorf("encode %s document: %w", c.name, err)
	}
	return document{
		ID:        c.codec.ID(v),
		OwnerID:   c.codec.Owner(v),
		Data:      data,
		UpdatedAt: c.codec.UpdatedAt(v).UTC(),
	}, nil
}

func (c *Collection[T]) decodeRows(resp *client.Response) ([]T, error) {
	var rows []document
	if err := resp.JSON(&rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", c.name, err)
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := c.codec.decode(row.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", c.name, row.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// List returns the owner's documents matching filters, in no particular order.
func (c *Collection[T]) List(ctx context.Context, owner string, filters ...Filter) ([]T, error) {
	q := c.client.From(c.table).Select("id,owner_id,data,updated_at")
	if owner != "" {
		q = q.Eq("owner_id", owner)
	}
	for _, f := range filters {
		q = f(q)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return c.decodeRows(resp)
}

// Find returns the first document matching filters across all owners.
func (c *Collection[T]) Find(ctx context.Context, filters ...Filter) (T, bool, error) {
	var zero T
	q := c.client.From(c.table).Select("id,owner_id,data,updated_at").Limit(1)
	for _, f := range filters {
		q = f(q)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return zero, false, translate(err)
	}
	items, err := c.decodeRows(resp)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

// Get returns the document with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	resp, err := c.client.From(c.table).Select("id,owner_id,data,updated_at").Eq("id", id).Execute(ctx)
	if err != nil {
		return zero, translate(err)
	}
	items, err := c.decodeRows(resp)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, storage.NotFound(c.name, id)
	}
	return items[0], nil
}

// Insert writes a new document; an existing id is a conflict.
func (c *Collection[T]) Insert(ctx context.Context, v T) error {
	doc, err := c.toDocument(v)
	if err != nil {
		return err
	}
	_, err = c.client.From(c.table).Insert(ctx, []document{doc})
	return translate(err)
}

// Replace overwrites an existing document and reports whether it existed.
func (c *Collection[T]) Replace(ctx context.Context, v T) (bool, error) {
	doc, err := c.toDocument(v)
	if err != nil {
		return false, err
	}
	resp, err := c.client.From(c.table).Eq("id", doc.ID).Update(ctx, map[string]any{
		"owner_id":   doc.OwnerID,
		"data":       doc.Data,
		"updated_at": doc.UpdatedAt,
	})
	if err != nil {
		return false, translate(err)
	}
	var rows []document
	if err := resp.JSON(&rows); err != nil {
		return false, fmt.Errorf("decode %s update: %w", c.name, err)
	}
	return len(rows) > 0, nil
}

// Upsert writes v as is, keeping its timestamps. Used by sync.
func (c *Collection[T]) Upsert(ctx context.Context, v T) error {
	doc, err := c.toDocument(v)
	if err != nil {
		return err
	}
	_, err = c.client.From(c.table).Upsert(ctx, []document{doc}, "id")
	return translate(err)
}

// Delete removes the document and returns its owner.
func (c *Collection[T]) Delete(ctx context.Context, id string) (string, error) {
	resp, err := c.client.From(c.table).Eq("id", id).Delete(ctx)
	if err != nil {
		return "", translate(err)
	}
	var rows []document
	if err := resp.JSON(&rows); err != nil {
		return "", fmt.Errorf("decode %s delete: %w", c.name, err)
	}
	if len(rows) == 0 {
		return "", storage.NotFound(c.name, id)
	}
	return rows[0].OwnerID, nil
}

// Event is a decoded realtime change. Doc is the zero value for deletes.
type Event[T any] struct {
	Op      watch.Op
	ID      string
	OwnerID string
	Doc     T
}

// Listen streams changes to owner's documents until ctx is done or the
// subscription is closed.
func (c *Collection[T]) Listen(ctx context.Context, rt *client.RealtimeClient, owner string, handler func(Event[T])) (*client.Subscription, error) {
	sub, err := rt.SubscribePostgresChanges(ctx, client.PostgresChangesConfig{
		Table:  c.table,
		Filter: "owner_id=eq." + owner,
	}, func(e client.ChangeEvent) {
		event, ok := c.decodeEvent(e)
		if ok {
			handler(event)
		}
	})
	if err != nil {
		return nil, err
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-rt.Done():
		}
	}()
	return sub, nil
}

func (c *Collection[T]) decodeEvent(e client.ChangeEvent) (Event[T], bool) {
	event := Event[T]{ID: e.ID()}
	row := e.Record
	switch e.Type {
	case "INSERT":
		event.Op = watch.OpCreate
	case "UPDATE":
		event.Op = watch.OpUpdate
	case "DELETE":
		event.Op = watch.OpDelete
		row = e.OldRecord
	default:
		return event, false
	}
	event.OwnerID = gjson.GetBytes(row, "owner_id").String()
	if event.Op != watch.OpDelete {
		data := gjson.GetBytes(row, "data")
		if !data.Exists() {
			return event, false
		}
		raw := []byte(data.Raw)
		if data.Type == gjson.String {
			// Some publications deliver jsonb columns as strings.
			raw = []byte(data.String())
		}
		doc, err := c.codec.decode(raw)
		if err != nil {
			return event, false
		}
		event.Doc = doc
	}
	return event, event.ID != ""
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case client.IsConflict(err):
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	case client.IsNotFound(err):
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	default:
		return err
	}
}
