// Package cache is a keyed, encrypted blob store backed by SQLite.
//
// Values are JSON encoded, then sealed with AES-256-GCM under a key derived
// from a random master key kept in the same database. A sentinel entry
// proves the key still opens the stored values; when it does not, the cache
// is cleared and re-keyed.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	encryption "github.com/cs2interlink/cs2-int/internal/crypto"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

const (
	sentinelKey   = "valid_test"
	sentinelValue = 42
	masterKeyName = "master_key"
	keyPurpose    = "cs2-int cache v1"
)

// Store is the subset of Cache used by loaders.
type Store interface {
	GetValue(ctx context.Context, key string, dst any) (bool, error)
	SetValue(ctx context.Context, key string, v any) error
}

// Cache is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	key  []byte
	path string
	log  *logging.Logger
}

// Open opens or creates the cache database at path.
func Open(ctx context.Context, path string, log *logging.Logger) (*Cache, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, path: path, log: log}
	if err := c.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, nonce BLOB NOT NULL, value BLOB NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value BLOB NOT NULL)`,
	}
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create cache schema: %w", err)
		}
	}

	master, err := c.masterKey(ctx)
	if err != nil {
		return err
	}
	if err := c.useMaster(master); err != nil {
		return err
	}

	var n int
	ok, err := c.GetValue(ctx, sentinelKey, &n)
	switch {
	case err == nil && ok && n == sentinelValue:
		return nil
	case err == nil && !ok:
		return c.SetValue(ctx, sentinelKey, sentinelValue)
	default:
		c.log.Warn().Err(err).Msg("Cache key is invalid, clearing cache")
		return c.rekey(ctx)
	}
}

func (c *Cache) masterKey(ctx context.Context) ([]byte, error) {
	var master []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, masterKeyName).Scan(&master)
	if err == nil {
		return master, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read cache key: %w", err)
	}
	master, err = encryption.GenerateKey()
	if err != nil {
		return nil, err
	}
	if _, err := c.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, masterKeyName, master); err != nil {
		return nil, fmt.Errorf("failed to store cache key: %w", err)
	}
	return master, nil
}

func (c *Cache) useMaster(master []byte) error {
	key, err := encryption.DeriveKey(master, keyPurpose)
	if err != nil {
		return fmt.Errorf("invalid cache key: %w", err)
	}
	c.key = key
	return nil
}

// rekey drops every entry, replaces the master key and writes a fresh sentinel.
func (c *Cache) rekey(ctx context.Context) error {
	master, err := encryption.GenerateKey()
	if err != nil {
		return err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, masterKeyName, master); err != nil {
		return fmt.Errorf("failed to store cache key: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := c.useMaster(master); err != nil {
		return err
	}
	return c.SetValue(ctx, sentinelKey, sentinelValue)
}

// GetValue decodes the value stored under key into dst. It reports false
// when no value is stored.
func (c *Cache) GetValue(ctx context.Context, key string, dst any) (bool, error) {
	var nonce, sealed []byte
	err := c.db.QueryRowContext(ctx, `SELECT nonce, value FROM kv WHERE key = ?`, key).Scan(&nonce, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	plain, err := encryption.Open(c.key, nonce, sealed, []byte(key))
	if err != nil {
		return false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	if err := json.Unmarshal(plain, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// SetValue stores v under key, replacing any previous value.
func (c *Cache) SetValue(ctx context.Context, key string, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	nonce, sealed, err := encryption.Seal(c.key, plain, []byte(key))
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kv (key, nonce, value) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET nonce = excluded.nonce, value = excluded.value`,
		key, nonce, sealed)
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry and re-keys the cache.
func (c *Cache) Clear(ctx context.Context) error {
	return c.rekey(ctx)
}

// Keys returns the stored keys, excluding the sentinel.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM kv WHERE key != ? ORDER BY key`, sentinelKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Close closes the database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the value stored under key, or def when it is missing or
// unreadable. Read errors are not returned; a broken entry behaves like a
// cache miss.
func Get[T any](ctx context.Context, s Store, key string, def T) T {
	var v T
	ok, err := s.GetValue(ctx, key, &v)
	if err != nil || !ok {
		return def
	}
	return v
}
