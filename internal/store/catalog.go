package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // pure Go driver registered as "sqlite"

	"github.com/kariantti/NuGetGallery/internal/errors"
)

// Catalog drivers.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// CatalogOptions configures NewSQLiteCatalog.
type CatalogOptions struct {
	// Driver is DriverModernc (default) or DriverCGO.
	Driver string
	// LookupBatchSize caps keys per SELECT (default 500).
	LookupBatchSize int
	// LookupConcurrency caps batches queried at once (default 4).
	LookupConcurrency int
}

// DefaultCatalogOptions returns the defaults used when fields are zero.
func DefaultCatalogOptions() CatalogOptions {
	return CatalogOptions{
		Driver:            DriverModernc,
		LookupBatchSize:   500,
		LookupConcurrency: 4,
	}
}

// SQLiteCatalog is a Catalog backed by a SQLite packages table in WAL mode.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
	opts CatalogOptions

	mu     sync.RWMutex
	closed bool
}

var _ Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog opens (creating if needed) the catalog database at path.
func NewSQLiteCatalog(path string, opts CatalogOptions) (*SQLiteCatalog, error) {
	defaults := DefaultCatalogOptions()
	if opts.Driver == "" {
		opts.Driver = defaults.Driver
	}
	if opts.LookupBatchSize <= 0 {
		opts.LookupBatchSize = defaults.LookupBatchSize
	}
	if opts.LookupConcurrency <= 0 {
		opts.LookupConcurrency = defaults.LookupConcurrency
	}

	dsn, err := catalogDSN(path, opts.Driver)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "cannot create catalog directory", err)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "cannot open catalog", err).
			WithDetail("path", path)
	}
	// WAL allows concurrent readers; lookups fan out across connections.
	db.SetMaxOpenConns(opts.LookupConcurrency)
	db.SetMaxIdleConns(opts.LookupConcurrency)
	db.SetConnMaxLifetime(0)

	c := &SQLiteCatalog{db: db, path: path, opts: opts}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "cannot initialise catalog schema", err).
			WithDetail("path", path)
	}

	slog.Debug("catalog_opened",
		slog.String("path", path),
		slog.String("driver", opts.Driver))
	return c, nil
}

// catalogDSN encodes per-connection pragmas in the form each driver expects.
func catalogDSN(path, driver string) (string, error) {
	switch driver {
	case DriverModernc:
		return "file:" + path +
			"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", nil
	case DriverCGO:
		return "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", nil
	default:
		return "", errors.ConfigError(fmt.Sprintf("unknown catalog driver %q", driver), nil)
	}
}

func (c *SQLiteCatalog) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS packages (
		key            INTEGER PRIMARY KEY,
		id             TEXT    NOT NULL,
		version        TEXT    NOT NULL,
		title          TEXT    NOT NULL DEFAULT '',
		description    TEXT    NOT NULL DEFAULT '',
		authors        TEXT    NOT NULL DEFAULT '',
		tags           TEXT    NOT NULL DEFAULT '',
		download_count INTEGER NOT NULL DEFAULT 0,
		published      INTEGER NOT NULL DEFAULT 0,
		listed         INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_packages_id ON packages(id);
	`
	_, err := c.db.Exec(schema)
	return err
}

// SavePackages upserts pkgs in one transaction.
func (c *SQLiteCatalog) SavePackages(ctx context.Context, pkgs []*Package) error {
	if len(pkgs) == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New(errors.ErrCodeCatalogUnavailable, "catalog is closed", nil)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeCatalogWrite, "cannot begin catalog transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO packages
			(key, id, version, title, description, authors, tags, download_count, published, listed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.New(errors.ErrCodeCatalogWrite, "cannot prepare catalog insert", err)
	}
	defer stmt.Close()

	for _, p := range pkgs {
		_, err := stmt.ExecContext(ctx,
			p.Key, p.ID, p.Version, p.Title, p.Description, p.Authors, p.Tags,
			p.DownloadCount, p.Published.Unix(), p.Listed)
		if err != nil {
			return errors.New(errors.ErrCodeCatalogWrite, "cannot save package "+p.ID, err).
				WithDetail("key", fmt.Sprint(p.Key))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeCatalogWrite, "cannot commit catalog transaction", err)
	}
	return nil
}

// DeletePackages removes the given keys. Unknown keys are ignored.
func (c *SQLiteCatalog) DeletePackages(ctx context.Context, keys []int) error {
	if len(keys) == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New(errors.ErrCodeCatalogUnavailable, "catalog is closed", nil)
	}

	for _, chunk := range chunkKeys(keys, c.opts.LookupBatchSize) {
		query := "DELETE FROM packages WHERE key IN (" + placeholders(len(chunk)) + ")"
		if _, err := c.db.ExecContext(ctx, query, keyArgs(chunk)...); err != nil {
			return errors.New(errors.ErrCodeCatalogWrite, "cannot delete packages", err)
		}
	}
	return nil
}

// GetPackages looks keys up in chunks of LookupBatchSize, querying up to
// LookupConcurrency chunks in parallel. Duplicate keys are looked up once.
func (c *SQLiteCatalog) GetPackages(ctx context.Context, keys []int) (map[int]*Package, error) {
	result := make(map[int]*Package, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "catalog is closed", nil)
	}

	unique := slices.Clone(keys)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.LookupConcurrency)

	for _, chunk := range chunkKeys(unique, c.opts.LookupBatchSize) {
		g.Go(func() error {
			pkgs, err := c.lookup(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, p := range pkgs {
				result[p.Key] = p
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.CatalogError("catalog lookup failed", err).
			WithDetail("keys", fmt.Sprint(len(unique)))
	}
	return result, nil
}

func (c *SQLiteCatalog) lookup(ctx context.Context, keys []int) ([]*Package, error) {
	query := `SELECT key, id, version, title, description, authors, tags, download_count, published, listed
		FROM packages WHERE key IN (` + placeholders(len(keys)) + `)`

	rows, err := c.db.QueryContext(ctx, query, keyArgs(keys)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pkgs := make([]*Package, 0, len(keys))
	for rows.Next() {
		var (
			p         Package
			published int64
		)
		if err := rows.Scan(&p.Key, &p.ID, &p.Version, &p.Title, &p.Description,
			&p.Authors, &p.Tags, &p.DownloadCount, &published, &p.Listed); err != nil {
			return nil, err
		}
		p.Published = time.Unix(published, 0).UTC()
		pkgs = append(pkgs, &p)
	}
	return pkgs, rows.Err()
}

// AllPackages returns every catalog record ordered by key.
func (c *SQLiteCatalog) AllPackages(ctx context.Context) ([]*Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "catalog is closed", nil)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT key FROM packages ORDER BY key`)
	if err != nil {
		return nil, errors.CatalogError("cannot list packages", err)
	}
	var keys []int
	for rows.Next() {
		var k int
		if err := rows.Scan(&k); err != nil {
			_ = rows.Close()
			return nil, errors.CatalogError("cannot list packages", err)
		}
		keys = append(keys, k)
	}
	_ = rows.Close()

	pkgs := make([]*Package, 0, len(keys))
	for _, chunk := range chunkKeys(keys, c.opts.LookupBatchSize) {
		batch, err := c.lookup(ctx, chunk)
		if err != nil {
			return nil, errors.CatalogError("cannot list packages", err)
		}
		pkgs = append(pkgs, batch...)
	}
	slices.SortFunc(pkgs, func(a, b *Package) int { return a.Key - b.Key })
	return pkgs, nil
}

// Count returns the number of packages in the catalog.
func (c *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, errors.New(errors.ErrCodeCatalogUnavailable, "catalog is closed", nil)
	}

	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&n); err != nil {
		return 0, errors.CatalogError("cannot count packages", err)
	}
	return n, nil
}

// Close closes the database. Further calls fail with ERR_301.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func chunkKeys(keys []int, size int) [][]int {
	var chunks [][]int
	for start := 0; start < len(keys); start += size {
		chunks = append(chunks, keys[start:min(start+size, len(keys))])
	}
	return chunks
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func keyArgs(keys []int) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
