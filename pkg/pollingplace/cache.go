package pollingplace

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ward-stats/internal/division"
)

// Cache persists polling-place addresses between runs in SQLite.
type Cache struct {
	db *sql.DB
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS polling_places (
	division_code   TEXT PRIMARY KEY,
	display_address TEXT NOT NULL,
	cached_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// OpenCache opens (creating if needed) a SQLite cache at dsn and ensures its schema.
func OpenCache(ctx context.Context, dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "pollingplace: open cache")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "pollingplace: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "pollingplace: migrate cache")
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached address for code, if any.
func (c *Cache) Get(ctx context.Context, code division.Code) (string, bool, error) {
	var addr string
	err := c.db.QueryRowContext(ctx,
		`SELECT display_address FROM polling_places WHERE division_code = ?`, string(code),
	).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "pollingplace: read cache %s", code)
	}
	zap.L().Debug("polling place cache hit", zap.String("division", code.String()))
	return addr, true, nil
}

// Put stores or replaces the address for code.
func (c *Cache) Put(ctx context.Context, code division.Code, addr string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO polling_places (division_code, display_address, cached_at)
		VALUES (?, ?, ?)
		ON CONFLICT (division_code) DO UPDATE SET
			display_address = excluded.display_address,
			cached_at = excluded.cached_at`,
		string(code), addr, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "pollingplace: store cache %s", code)
	}
	return nil
}

// Len returns the number of cached divisions.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM polling_places`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "pollingplace: count cache")
	}
	return n, nil
}
