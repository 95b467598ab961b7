package rdbs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/log"
	"github.com/theia-log/theia/pkg/model"
	"github.com/theia-log/theia/pkg/store"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp DOUBLE PRECISION,
		source TEXT,
		tags TEXT,
		content TEXT,
		custom_headers TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS events_timestamp_idx ON events (timestamp)`,
}

// Store is the relational EventStore backend.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Open connects to the database named by url, creates the schema when
// missing and returns the store. postgres:// and postgresql:// URLs use
// the lib/pq driver; anything else is handed to the SQLite driver as a
// path or DSN.
func Open(url string) (*Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	st, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	st.logger.Info().Str("driver", driver).Msg("Connected to relational store")
	return st, nil
}

// New wraps an existing database handle, creating the schema when
// missing. The store takes ownership of the handle.
func New(db *sql.DB) (*Store, error) {
	st := &Store{
		db:     db,
		logger: log.WithComponent("store.rdbs"),
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("create events schema: %w", err)
		}
	}
	return st, nil
}

// Save inserts the event. Inserting an id that already exists is a
// silent no-op, making ingest idempotent on this backend.
func (s *Store) Save(ctx context.Context, ev *model.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	s.mu.Unlock()

	extras, err := encodeExtras(ev.Extra)
	if err != nil {
		return fmt.Errorf("encode custom headers: %w", err)
	}

	query := `
		INSERT INTO events (id, timestamp, source, tags, content, custom_headers)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		ev.ID, ev.Timestamp, ev.Source, strings.Join(ev.Tags, ","), ev.Content, extras,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// Search pushes the time window and order into SQL and streams the
// result set through the compiled predicate.
func (s *Store) Search(ctx context.Context, f *filter.Filter) (store.Cursor, error) {
	pred, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	s.mu.Unlock()

	var (
		where []string
		args  []any
	)
	if f.Start != nil {
		args = append(args, float64(*f.Start))
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if f.End != nil {
		// Filters compare floor(timestamp); widen so 100.5 still matches
		// end=100 and let the predicate enforce the exact bound.
		args = append(args, float64(*f.End+1))
		where = append(where, fmt.Sprintf("timestamp < $%d", len(args)))
	}

	query := "SELECT id, timestamp, source, tags, content, custom_headers FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp"
	if f.Descending() {
		query += " DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return &cursor{rows: rows, pred: pred}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// cursor streams the result set, applying the predicate in-process.
type cursor struct {
	rows *sql.Rows
	pred filter.Predicate
}

func (c *cursor) Next() (*model.Event, error) {
	for c.rows.Next() {
		var (
			ev     model.Event
			tags   string
			extras sql.NullString
		)
		if err := c.rows.Scan(&ev.ID, &ev.Timestamp, &ev.Source, &tags, &ev.Content, &extras); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if tags != "" {
			ev.Tags = strings.Split(tags, ",")
		}
		if extras.Valid && extras.String != "" {
			if err := json.Unmarshal([]byte(extras.String), &ev.Extra); err != nil {
				return nil, fmt.Errorf("decode custom headers for %s: %w", ev.ID, err)
			}
		}
		if c.pred(&ev) {
			return &ev, nil
		}
	}
	if err := c.rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return nil, nil
}

func (c *cursor) Close() error {
	return c.rows.Close()
}

func encodeExtras(extras []model.Header) (sql.NullString, error) {
	if len(extras) == 0 {
		return sql.NullString{}, nil
	}
	buf, err := json.Marshal(extras)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(buf), Valid: true}, nil
}
