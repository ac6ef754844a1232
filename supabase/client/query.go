package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// From starts a PostgREST query on table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

type filter struct {
	column string
	op     string
	value  string
}

// QueryBuilder builds PostgREST requests. Filters apply to selects,
// updates and deletes.
type QueryBuilder struct {
	client  *Client
	table   string
	columns string
	filters []filter
	orders  []string
	limit   int
	offset  int
	single  bool
	count   string
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) where(column, op string, value any) *QueryBuilder {
	q.filters = append(q.filters, filter{column: column, op: op, value: fmt.Sprint(value)})
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder  { return q.where(column, "eq", value) }
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder { return q.where(column, "neq", value) }
func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder  { return q.where(column, "gt", value) }
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder { return q.where(column, "gte", value) }
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder  { return q.where(column, "lt", value) }
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder { return q.where(column, "lte", value) }

// ILike adds a case-insensitive pattern filter; use * as the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.where(column, "ilike", pattern)
}

// In adds an IN filter. Values containing reserved characters are quoted.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		if strings.ContainsAny(v, `,()"`) {
			v = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
		quoted[i] = v
	}
	return q.where(column, "in", "("+strings.Join(quoted, ",")+")")
}

// Is adds an IS filter (null, true, false).
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return q.where(column, "is", value)
}

func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Single asks PostgREST for exactly one object. Zero rows yields an
// APIError for which IsNotFound is true.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Count requests a row count (exact, planned or estimated).
func (q *QueryBuilder) Count(countType string) *QueryBuilder {
	q.count = countType
	return q
}

func (q *QueryBuilder) path() string {
	return "/rest/v1/" + url.PathEscape(q.table)
}

func (q *QueryBuilder) filterValues() url.Values {
	params := url.Values{}
	for _, f := range q.filters {
		params.Add(f.column, f.op+"."+f.value)
	}
	return params
}

// Query returns the encoded query string of a select.
func (q *QueryBuilder) Query() string {
	return q.selectValues().Encode()
}

func (q *QueryBuilder) selectValues() url.Values {
	params := q.filterValues()
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", strconv.Itoa(q.offset))
	}
	return params
}

// Execute runs a select.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	req, err := q.client.newRequest(ctx, http.MethodGet, q.path(), q.selectValues(), nil)
	if err != nil {
		return nil, err
	}
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if q.count != "" {
		req.Header.Set("Prefer", "count="+q.count)
	}
	return q.client.do(req)
}

// Insert inserts one row or a slice of rows and returns the representation.
func (q *QueryBuilder) Insert(ctx context.Context, data any) (*Response, error) {
	req, err := q.client.newRequest(ctx, http.MethodPost, q.path(), nil, data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

// Upsert inserts rows, merging with existing rows that collide on
// onConflict (the primary key when empty).
func (q *QueryBuilder) Upsert(ctx context.Context, data any, onConflict string) (*Response, error) {
	params := url.Values{}
	if onConflict != "" {
		params.Set("on_conflict", onConflict)
	}
	req, err := q.client.newRequest(ctx, http.MethodPost, q.path(), params, data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")
	return q.client.do(req)
}

// Update patches the rows matched by the filters.
func (q *QueryBuilder) Update(ctx context.Context, data any) (*Response, error) {
	if len(q.filters) == 0 {
		return nil, fmt.Errorf("supabase: update on %s without filters", q.table)
	}
	req, err := q.client.newRequest(ctx, http.MethodPatch, q.path(), q.filterValues(), data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

// Delete removes the rows matched by the filters and returns them.
func (q *QueryBuilder) Delete(ctx context.Context) (*Response, error) {
	if len(q.filters) == 0 {
		return nil, fmt.Errorf("supabase: delete on %s without filters", q.table)
	}
	req, err := q.client.newRequest(ctx, http.MethodDelete, q.path(), q.filterValues(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}
