package db

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grove-sh/grove/internal/models"
	"github.com/rotisserie/eris"
)

// InitDB initializes a new database connection
func InitDB(dbPath string) (*sql.DB, error) {
	// Writers from concurrent provisioning would otherwise hit SQLITE_BUSY;
	// the pragma goes in the DSN so every pooled connection gets it.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open database: %s", dbPath)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to ping database")
	}

	return db, nil
}

// ==================== Cache Entry Operations ====================

// GetCacheEntry retrieves the bookkeeping row for a mirror, along with the
// refs digest recorded at the last freshness check. Returns sql.ErrNoRows
// wrapped when no entry exists.
func GetCacheEntry(db *sql.DB, key models.RepoKey) (*models.CacheEntry, string, error) {
	entry := &models.CacheEntry{Key: key}
	var digest string
	var lastVerified sql.NullTime

	err := db.QueryRow(
		"SELECT mirror_path, refs_digest, last_verified_at FROM cache_entries WHERE host = ? AND owner = ? AND repo = ?",
		key.Host, key.Owner, key.Repo,
	).Scan(&entry.MirrorPath, &digest, &lastVerified)

	if err == sql.ErrNoRows {
		return nil, "", eris.Wrapf(err, "cache entry not found: %s", key)
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "failed to query cache entry")
	}

	if lastVerified.Valid {
		entry.LastVerifiedAt = &lastVerified.Time
	}

	return entry, digest, nil
}

// UpsertCacheEntry records a mirror and its current refs digest, updating
// the existing row when the mirror was already known.
func UpsertCacheEntry(db *sql.DB, key models.RepoKey, mirrorPath, refsDigest string) error {
	now := time.Now()
	_, err := db.Exec(
		`INSERT INTO cache_entries (host, owner, repo, mirror_path, refs_digest, created_at, last_verified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (host, owner, repo)
		 DO UPDATE SET mirror_path = excluded.mirror_path, refs_digest = excluded.refs_digest, last_verified_at = excluded.last_verified_at`,
		key.Host, key.Owner, key.Repo, mirrorPath, refsDigest, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to upsert cache entry: %s", key)
	}
	return nil
}

// TouchCacheEntry updates the last_verified_at timestamp without changing
// the stored digest (used when the freshness check found nothing to fetch).
func TouchCacheEntry(db *sql.DB, key models.RepoKey) error {
	_, err := db.Exec(
		"UPDATE cache_entries SET last_verified_at = ? WHERE host = ? AND owner = ? AND repo = ?",
		time.Now(), key.Host, key.Owner, key.Repo,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to touch cache entry: %s", key)
	}
	return nil
}

// DeleteCacheEntry removes the bookkeeping row for a mirror (used when a
// corrupt mirror is rebuilt from scratch).
func DeleteCacheEntry(db *sql.DB, key models.RepoKey) error {
	_, err := db.Exec(
		"DELETE FROM cache_entries WHERE host = ? AND owner = ? AND repo = ?",
		key.Host, key.Owner, key.Repo,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to delete cache entry: %s", key)
	}
	return nil
}

// GetAllCacheEntries retrieves all known mirrors, most recently verified first
func GetAllCacheEntries(db *sql.DB) ([]*models.CacheEntry, error) {
	rows, err := db.Query(
		"SELECT host, owner, repo, mirror_path, last_verified_at FROM cache_entries ORDER BY last_verified_at DESC",
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query cache entries")
	}
	defer rows.Close()

	var entries []*models.CacheEntry
	for rows.Next() {
		entry := &models.CacheEntry{}
		var lastVerified sql.NullTime

		err := rows.Scan(&entry.Key.Host, &entry.Key.Owner, &entry.Key.Repo, &entry.MirrorPath, &lastVerified)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan cache entry row")
		}

		if lastVerified.Valid {
			entry.LastVerifiedAt = &lastVerified.Time
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating cache entry rows")
	}

	return entries, nil
}
