package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_items (
    source      TEXT NOT NULL,
    external_id TEXT NOT NULL,
    seen_at     TIMESTAMP NOT NULL,
    PRIMARY KEY (source, external_id)
);
CREATE INDEX IF NOT EXISTS idx_seen_items_seen_at ON seen_items (seen_at);
`

// SQLiteStore is the durable seen-item store. Entries older than the
// retention window are pruned on read; past capacity the oldest entries are
// evicted on write.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
	capacity  int
}

var _ ports.SeenStore = (*SQLiteStore)(nil)

// Open creates or opens the store at path. Zero retention disables pruning;
// zero capacity disables eviction.
func Open(path string, retention time.Duration, capacity int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, retention: retention, capacity: capacity}, nil
}

// Contains returns a map with the identities already present.
func (s *SQLiteStore) Contains(ctx context.Context, ids []domain.Identity) (map[domain.Identity]bool, error) {
	result := make(map[domain.Identity]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	if err := s.prune(ctx); err != nil {
		return nil, err
	}

	match := make(sq.Or, 0, len(ids))
	for _, id := range ids {
		match = append(match, sq.Eq{"source": string(id.Source), "external_id": id.ExternalID})
	}

	query, args, err := sq.Select("source", "external_id").From("seen_items").Where(match).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source, externalID string
		if err := rows.Scan(&source, &externalID); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		result[domain.Identity{Source: domain.Source(source), ExternalID: externalID}] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// Mark upserts the identities with the given timestamp.
func (s *SQLiteStore) Mark(ctx context.Context, ids []domain.Identity, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	insert := sq.Insert("seen_items").Columns("source", "external_id", "seen_at")
	for _, id := range ids {
		insert = insert.Values(string(id.Source), id.ExternalID, at.UTC())
	}
	insert = insert.Suffix("ON CONFLICT (source, external_id) DO UPDATE SET seen_at = excluded.seen_at")

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert seen: %w", err)
	}

	return s.evict(ctx)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	query, args, err := sq.Delete("seen_items").Where(sq.Lt{"seen_at": cutoff}).ToSql()
	if err != nil {
		return fmt.Errorf("build prune: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune seen: %w", err)
	}
	return nil
}

func (s *SQLiteStore) evict(ctx context.Context) error {
	if s.capacity <= 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_items`).Scan(&count); err != nil {
		return fmt.Errorf("count seen: %w", err)
	}
	if count <= s.capacity {
		return nil
	}

	// Oldest-first eviction keyed by the seen_at index.
	const evictQuery = `DELETE FROM seen_items WHERE rowid IN (
        SELECT rowid FROM seen_items ORDER BY seen_at ASC LIMIT ?)`
	if _, err := s.db.ExecContext(ctx, evictQuery, count-s.capacity); err != nil {
		return fmt.Errorf("evict seen: %w", err)
	}
	return nil
}
