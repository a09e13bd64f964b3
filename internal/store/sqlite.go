package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/realtime"
)

// SQLiteStore implements the Store interface using a local SQLite database.
// Several processes may share one database file; their change events meet
// through a realtime.RedisBridge passed as the publisher.
type SQLiteStore struct {
	db     *sqlx.DB
	fanout *realtime.Fanout
	pub    realtime.Publisher
	origin string
	seq    atomic.Uint64
	log    *zap.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithFanout makes the store serve its feed from f.
func WithFanout(f *realtime.Fanout) Option {
	return func(s *SQLiteStore) { s.fanout = f }
}

// WithPublisher routes committed change events through p instead of
// straight into the fanout. p must deliver to the fanout itself.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *SQLiteStore) { s.pub = p }
}

// WithOrigin sets the identifier stamped on events from this process.
func WithOrigin(origin string) Option {
	return func(s *SQLiteStore) { s.origin = origin }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) { s.log = l }
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode and foreign keys, and runs any pending schema
// migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.fanout == nil {
		s.fanout = realtime.NewFanout()
	}
	if s.pub == nil {
		s.pub = s.fanout
	}
	if s.origin == "" {
		s.origin = uuid.New().String()
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the change feed and the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.fanout.Close()
	return s.db.Close()
}

// Origin returns the identifier stamped on events from this store.
func (s *SQLiteStore) Origin() string {
	return s.origin
}

// Feed returns the change feed served by this store.
func (s *SQLiteStore) Feed() realtime.Feed {
	return s.fanout
}

// Subscribe opens a change feed for scope and returns its unsubscribe
// function. Views should go through a realtime.Registry instead so that
// one feed serves every subscriber of a scope.
func (s *SQLiteStore) Subscribe(
	ctx context.Context, scope realtime.Scope, onEvent func(realtime.Event),
) (func(), error) {
	stream, err := s.fanout.Open(ctx, scope, onEvent)
	if err != nil {
		return nil, apperr.Transient("subscribing "+scope.Key(), err)
	}
	return stream.Close, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// change describes one committed row change to publish.
type change struct {
	table   string
	op      realtime.Op
	id      string
	columns map[string]string
	row     any
}

// emit publishes committed changes in order. Encoding failures are
// logged; the commit already happened.
func (s *SQLiteStore) emit(changes ...change) {
	for _, c := range changes {
		ev := realtime.Event{
			Origin:  s.origin,
			Seq:     s.seq.Add(1),
			Table:   c.table,
			Op:      c.op,
			ID:      c.id,
			Columns: c.columns,
			At:      time.Now().UTC(),
		}
		if c.row != nil {
			body, err := json.Marshal(c.row)
			if err != nil {
				s.log.Error("encoding change row",
					zap.String("table", c.table),
					zap.String("id", c.id),
					zap.Error(err),
				)
				continue
			}
			ev.New = body
		}
		s.pub.Publish(ev)
	}
}

// notFound maps sql.ErrNoRows to a NotFoundError and wraps anything
// else with the operation name.
func notFound(err error, resource, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireRows returns a NotFoundError when a mutation touched no rows.
func requireRows(result sql.Result, resource, id string) error {
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound(resource, id)
	}
	return nil
}

// encodeList stores a string slice as a JSON array.
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	body, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(body)
}

// decodeList reads a JSON array column. Malformed values decode as empty.
func decodeList(raw string) []string {
	items := []string{}
	if strings.TrimSpace(raw) == "" {
		return items
	}
	_ = json.Unmarshal([]byte(raw), &items)
	return items
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newID returns id, or a fresh UUID when id is empty.
func newID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}
