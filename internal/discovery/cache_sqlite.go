package discovery

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCacheStore is the database-backed CacheStore implementation.
// Same contract as FileCacheStore; selected via discovery.cache_backend.
type SQLiteCacheStore struct {
	db *sql.DB
}

// NewSQLiteCacheStore opens (creating if needed) a SQLite cache at path.
func NewSQLiteCacheStore(path string) (*SQLiteCacheStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS discovery_cache (
	fingerprint   TEXT PRIMARY KEY,
	urls          TEXT NOT NULL,
	discovered_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLiteCacheStore{db: db}, nil
}

// Get implements CacheStore.
func (s *SQLiteCacheStore) Get(fingerprint string) (CacheEntry, bool, error) {
	var urls string
	var discoveredAt int64
	err := s.db.QueryRow(
		`SELECT urls, discovered_at FROM discovery_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&urls, &discoveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("cache get: %w", err)
	}

	list := splitURLs(urls)
	if len(list) == 0 {
		return CacheEntry{}, false, nil
	}
	return CacheEntry{URLs: list, DiscoveredAt: time.Unix(discoveredAt, 0)}, true, nil
}

// Put implements CacheStore.
func (s *SQLiteCacheStore) Put(fingerprint string, entry CacheEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO discovery_cache (fingerprint, urls, discovered_at) VALUES (?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET urls = excluded.urls, discovered_at = excluded.discovered_at`,
		fingerprint, strings.Join(entry.URLs, "\n"), entry.DiscoveredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Delete implements CacheStore.
func (s *SQLiteCacheStore) Delete(fingerprint string) error {
	var err error
	if fingerprint == "" {
		_, err = s.db.Exec(`DELETE FROM discovery_cache`)
	} else {
		_, err = s.db.Exec(`DELETE FROM discovery_cache WHERE fingerprint = ?`, fingerprint)
	}
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteCacheStore) Close() error {
	return s.db.Close()
}

func splitURLs(joined string) []string {
	var out []string
	for _, u := range strings.Split(joined, "\n") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
