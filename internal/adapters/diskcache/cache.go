package diskcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
	"github.com/mattn/go-sqlite3"
)

const (
	cacheDirName = "scrs"
	databaseFile = "cache-v1.sqlite3"
	cacheDirMode = 0o700

	DefaultTerrainTTL      = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
	DefaultWorkers         = 3
)

var (
	ErrCacheDir          = errors.New("resolve cache directory")
	ErrDirectoryCreation = errors.New("create cache directory")
	ErrDatabaseOpen      = errors.New("open cache database")
	ErrClosed            = errors.New("disk cache closed")
)

const schema = `CREATE TABLE IF NOT EXISTS entries (
	key BLOB PRIMARY KEY,
	value BLOB NOT NULL
)`

type Options struct {
	Dir             string
	TerrainTTL      time.Duration
	CleanupInterval time.Duration
	Workers         int
	Logger          *slog.Logger
	Clock           ports.Clock
}

type Stats struct {
	Path    string
	Entries int
	ByKind  map[string]int
}

type Cache struct {
	db     *sql.DB
	path   string
	opts   Options
	logger *slog.Logger

	jobs      chan func()
	stop      chan struct{}
	workers   sync.WaitGroup
	closeOnce sync.Once
}

var _ ports.TerrainCache = (*Cache)(nil)

// Load opens the cache database and starts the disk workers and the
// cleanup loop. A corrupt database file is deleted and recreated once.
func Load(ctx context.Context, opts Options) (*Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	dir := opts.Dir
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheDir, err)
		}
		dir = filepath.Join(userCacheDir, cacheDirName)
	}

	if err := os.MkdirAll(dir, cacheDirMode); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDirectoryCreation, dir, err)
	}

	path := filepath.Join(dir, databaseFile)
	db, err := openDatabase(ctx, path)
	if err != nil && isCorruption(err) {
		opts.Logger.Warn("cache database corrupt, recreating", slog.String("path", path), slog.Any("error", err))
		if removeErr := removeDatabase(path); removeErr != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrDatabaseOpen, path, errors.Join(err, removeErr))
		}
		db, err = openDatabase(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDatabaseOpen, path, err)
	}

	c := &Cache{
		db:     db,
		path:   path,
		opts:   opts,
		logger: opts.Logger,
		jobs:   make(chan func()),
		stop:   make(chan struct{}),
	}
	for range opts.Workers {
		c.workers.Add(1)
		go c.work()
	}

	return c, nil
}

func (o Options) withDefaults() Options {
	if o.TerrainTTL <= 0 {
		o.TerrainTTL = DefaultTerrainTTL
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Clock == nil {
		o.Clock = ports.SystemClock{}
	}
	o.Logger = o.Logger.With(slog.String("component", "diskcache"))
	return o
}

func openDatabase(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func isCorruption(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrCorrupt || sqliteErr.Code == sqlite3.ErrNotADB
}

func removeDatabase(path string) error {
	for _, name := range []string{path, path + "-journal"} {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (c *Cache) Path() string {
	return c.path
}

// RunCleanup sweeps once immediately and then on every cleanup interval
// until ctx is done.
func (c *Cache) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		removed, err := c.Sweep(ctx)
		switch {
		case err != nil && ctx.Err() == nil && !errors.Is(err, ErrClosed):
			c.logger.Warn("cache sweep failed", slog.Any("error", err))
		case err == nil:
			c.logger.Debug("cache sweep finished", slog.Int("removed", removed))
		}

		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
		}
	}
}

// GetTerrain reports a miss for absent, expired and undecodable entries.
// Undecodable entries are deleted.
func (c *Cache) GetTerrain(ctx context.Context, server string, shard string, room domain.RoomName) (domain.TerrainGrid, bool, error) {
	key, err := encodeKey(terrainKey(server, shard, room))
	if err != nil {
		return domain.TerrainGrid{}, false, err
	}

	var grid domain.TerrainGrid
	var found bool
	err = c.submit(ctx, func() error {
		var value []byte
		err := c.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read terrain %s: %w", room, err)
		}

		decoded, fetchedAt, err := decodeTerrain(value)
		if err != nil {
			c.logger.Warn("dropping undecodable terrain entry", slog.String("room", room.String()), slog.Any("error", err))
			if _, delErr := c.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); delErr != nil {
				c.logger.Warn("delete undecodable terrain entry", slog.Any("error", delErr))
			}
			return nil
		}
		if c.expired(fetchedAt) {
			return nil
		}

		grid = decoded
		found = true
		return nil
	})
	if err != nil {
		return domain.TerrainGrid{}, false, err
	}

	return grid, found, nil
}

func (c *Cache) SetTerrain(ctx context.Context, server string, shard string, room domain.RoomName, grid domain.TerrainGrid) error {
	key, err := encodeKey(terrainKey(server, shard, room))
	if err != nil {
		return err
	}
	value, err := encodeTerrain(grid, c.opts.Clock.Now())
	if err != nil {
		return err
	}

	return c.submit(ctx, func() error {
		_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO entries (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return fmt.Errorf("write terrain %s: %w", room, err)
		}
		return nil
	})
}

// Sweep deletes expired entries and entries whose key or value no longer
// decode. It returns the number of deleted entries.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	var removed int
	err := c.submit(ctx, func() error {
		stale, err := c.staleKeys(ctx)
		if err != nil {
			return err
		}

		for _, key := range stale {
			if _, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
				return fmt.Errorf("delete stale entry: %w", err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (c *Cache) staleKeys(ctx context.Context) ([][]byte, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, value FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("scan cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stale [][]byte
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if !c.keep(key, value) {
			stale = append(stale, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan cache entries: %w", err)
	}
	return stale, nil
}

func (c *Cache) keep(rawKey []byte, value []byte) bool {
	key, err := decodeKey(rawKey)
	if err != nil {
		return false
	}

	switch key.Kind {
	case kindTerrain:
		_, fetchedAt, err := decodeTerrain(value)
		return err == nil && !c.expired(fetchedAt)
	default:
		return false
	}
}

func (c *Cache) expired(fetchedAt time.Time) bool {
	return c.opts.Clock.Now().Sub(fetchedAt) > c.opts.TerrainTTL
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: c.path, ByKind: map[string]int{}}
	err := c.submit(ctx, func() error {
		rows, err := c.db.QueryContext(ctx, `SELECT key FROM entries`)
		if err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var rawKey []byte
			if err := rows.Scan(&rawKey); err != nil {
				return fmt.Errorf("scan cache key: %w", err)
			}
			stats.Entries++
			kind := "invalid"
			if key, err := decodeKey(rawKey); err == nil {
				kind = key.Kind
			}
			stats.ByKind[kind]++
		}
		return rows.Err()
	})
	return stats, err
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.submit(ctx, func() error {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		return nil
	})
}

func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.workers.Wait()
		err = c.db.Close()
	})
	return err
}

func (c *Cache) work() {
	defer c.workers.Done()
	for {
		select {
		case <-c.stop:
			return
		case job := <-c.jobs:
			job()
		}
	}
}

// submit runs fn on one of the disk workers and waits for its result.
func (c *Cache) submit(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result := make(chan error, 1)
	job := func() { result <- fn() }

	select {
	case c.jobs <- job:
	case <-c.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
