// Package sqlstore implements the storage interfaces on an embedded SQLite
// database (modernc.org/sqlite) or on PostgreSQL, through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config selects and tunes the database connection.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) driver() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	default:
		return strings.ToLower(strings.TrimSpace(c.Driver))
	}
}

// Open connects to the configured database. SQLite files get WAL journaling,
// a busy timeout and foreign keys; their parent directory is created.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	drv := cfg.driver()
	dsn := strings.TrimSpace(cfg.DSN)

	switch drv {
	case DriverSQLite:
		if dsn == "" {
			dsn = "souschef.db"
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(drv, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", drv, err)
	}

	if drv == DriverSQLite {
		// A single connection serialises writers and keeps :memory:
		// databases alive for the lifetime of the handle.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", drv, err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

// Store implements storage.Stores over SQL.
type Store struct {
	db        *sqlx.DB
	publisher watch.Publisher
	now       func() time.Time
}

var _ storage.Stores = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPublisher attaches a change publisher notified after every write.
func WithPublisher(p watch.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New creates a Store using the provided database handle. The schema must
// already be migrated.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		publisher: watch.Nop,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) notify(owner, collection, id string, op watch.Op) {
	s.publisher.Publish(watch.Change{OwnerID: owner, Collection: collection, ID: id, Op: op, At: s.now()})
}

func (s *Store) insert(ctx context.Context, table string, columns []string, row interface{}) error {
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		placeholders[i] = ":" + c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := s.db.NamedExecContext(ctx, query, row)
	return translate(err)
}

// update rewrites every column except id and created_at.
func (s *Store) update(ctx context.Context, table string, columns []string, row interface{}) (bool, error) {
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == "id" || c == "created_at" {
			continue
		}
		sets = append(sets, c+" = :"+c)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", table, strings.Join(sets, ", "))
	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return false, translate(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) remove(ctx context.Context, table, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM "+table+" WHERE id = ?"), id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ownerOf reads the owner of a row about to be deleted so the change can be
// published.
func (s *Store) ownerOf(ctx context.Context, table, id string) (string, error) {
	var owner string
	err := s.db.GetContext(ctx, &owner, s.db.Rebind("SELECT owner_id FROM "+table+" WHERE id = ?"), id)
	return owner, err
}

func (s *Store) get(ctx context.Context, dest interface{}, resource, id, query string, args ...interface{}) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFound(resource, id)
	}
	return err
}

func (s *Store) selectRows(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}

// translate maps unique-constraint violations onto storage.ErrConflict.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(liteErr.Error(), "UNIQUE") {
				return fmt.Errorf("%w: %v", storage.ErrConflict, err)
			}
		}
	}
	return err
}

// jsonColumn stores a Go value as JSON text.
type jsonColumn[T any] struct {
	V T
}

func (j jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *jsonColumn[T]) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		var zero T
		j.V = zero
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(raw) == 0 {
		var zero T
		j.V = zero
		return nil
	}
	return json.Unmarshal(raw, &j.V)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// missing converts sql.ErrNoRows from an owner lookup into a not-found error.
func (s *Store) missing(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFound(resource, id)
	}
	return err
}
