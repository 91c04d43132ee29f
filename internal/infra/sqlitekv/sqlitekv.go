// Package sqlitekv implements the record store on a local SQLite file.
// Records live in a single table keyed by (collection, key) with JSON values,
// which keeps every collection a flat scan — there is no query planning
// beyond primary-key lookups and full-collection reads.
package sqlitekv

import (
	"context"
	"database/sql"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	// SQLite driver (pure Go).
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlitekv")

// Store is a file-backed key-value record store with per-collection change
// notification.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger,
		subs:   make(map[string][]chan struct{}),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, key)
	)`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under (collection, key), or nil if absent.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Store.Get")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM records WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set upserts the value under (collection, key) and notifies subscribers.
func (s *Store) Set(ctx context.Context, collection, key string, value []byte) error {
	ctx, span := tracer.Start(ctx, "Store.Set")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (collection, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (collection, key) DO UPDATE SET
		   value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		collection, key, value,
	)
	if err != nil {
		s.logger.Error("sqlitekv: set failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return err
	}
	s.notify(collection)
	return nil
}

// Remove deletes the record under (collection, key). Removing an absent key
// is not an error.
func (s *Store) Remove(ctx context.Context, collection, key string) error {
	ctx, span := tracer.Start(ctx, "Store.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND key = ?",
		collection, key,
	)
	if err != nil {
		s.logger.Error("sqlitekv: remove failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return err
	}
	s.notify(collection)
	return nil
}

// GetAll returns every value in the collection ordered by key, so a given
// snapshot always scans in the same order.
func (s *Store) GetAll(ctx context.Context, collection string) ([][]byte, error) {
	ctx, span := tracer.Start(ctx, "Store.GetAll")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	rows, err := s.db.QueryContext(ctx,
		"SELECT value FROM records WHERE collection = ? ORDER BY key",
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Subscribe registers a change listener for the collection. The returned
// channel has a one-slot buffer: a slow consumer coalesces bursts into a
// single pending signal instead of blocking writers.
func (s *Store) Subscribe(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[collection] = append(s.subs[collection], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[collection]
		for i, c := range subs {
			if c == ch {
				s.subs[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (s *Store) notify(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
