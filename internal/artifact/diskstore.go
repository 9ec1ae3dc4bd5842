package artifact

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DiskStore is the persistent layer beneath the in-memory cache, backed by a
// single-file sqlite database. Expiry is tracked as unix seconds so lookups
// never depend on driver timestamp formatting.
type DiskStore struct {
	db *sql.DB
}

// OpenDiskStore opens (or creates) the sqlite database at path and applies
// the schema.
func OpenDiskStore(path string) (*DiskStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: open disk store")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "artifact: exec %s", pragma)
		}
	}
	if _, err := db.Exec(diskStoreMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "artifact: migrate disk store")
	}
	return &DiskStore{db: db}, nil
}

const diskStoreMigration = `
CREATE TABLE IF NOT EXISTS artifact_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	payload    BLOB NOT NULL,
	priority   INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifact_cache_expires_at ON artifact_cache(expires_at);
`

func (s *DiskStore) Close() error {
	return s.db.Close()
}

// Get returns the payload for key, or (nil, nil) when absent or expired.
func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM artifact_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().Unix(),
	)

	var payload []byte
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "artifact: get cached payload")
	}
	return payload, nil
}

// Set stores the payload under key, replacing any previous row.
func (s *DiskStore) Set(ctx context.Context, key string, payload []byte, priority Priority, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifact_cache (id, cache_key, payload, priority, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   payload = excluded.payload,
		   priority = excluded.priority,
		   created_at = datetime('now'),
		   expires_at = excluded.expires_at`,
		uuid.New().String(), key, payload, int(priority), time.Now().Add(ttl).Unix(),
	)
	return eris.Wrap(err, "artifact: set cached payload")
}

// Purge deletes expired rows and returns how many were removed.
func (s *DiskStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM artifact_cache WHERE expires_at <= ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "artifact: purge expired payloads")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "artifact: rows affected")
}

// Clear deletes every row and returns how many were removed.
func (s *DiskStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifact_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "artifact: clear payloads")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "artifact: rows affected")
}

// DiskStats summarizes the disk cache contents.
type DiskStats struct {
	Rows    int `json:"rows"`
	Expired int `json:"expired"`
}

// Stats counts total and expired rows.
func (s *DiskStore) Stats(ctx context.Context) (DiskStats, error) {
	var stats DiskStats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(expires_at <= ?), 0) FROM artifact_cache`,
		time.Now().Unix(),
	)
	if err := row.Scan(&stats.Rows, &stats.Expired); err != nil {
		return stats, eris.Wrap(err, "artifact: count cached payloads")
	}
	return stats, nil
}
