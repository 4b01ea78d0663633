// Package sqldb is the primary-storage side of the index engine: it knows
// which tables exist, executes statement batches and runs transactions.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ridge/quartz/retry"
	"github.com/ridge/quartz/sqlvendor"
	"github.com/ridge/quartz/symbol"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

// ErrReadOnlyTable is returned when a write targets a read-only table
var ErrReadOnlyTable = errors.New("table is read-only")

// Conn executes statements. Satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Config describes the database to open
type Config struct {
	Driver string
	DSN    string

	// Vendor selects the SQL dialect; defaults to Driver
	Vendor string

	// IndexSpatial enables writes to location and region tables
	IndexSpatial bool

	// ComparesIgnoreCase tells that the database compares text
	// case-insensitively
	ComparesIgnoreCase bool

	MaxOpenConns int

	// ConnectRetry paces the initial connection attempts. Defaults to
	// retry.DefaultExpConfig.
	ConnectRetry retry.ExpConfig
}

// Database is an open index database
type Database struct {
	db      *sql.DB
	config  Config
	vendor  sqlvendor.Vendor
	symbols *symbol.Cache
	tables  atomic.Pointer[map[string]bool]
}

// Open connects to the database described by config, waiting for it to come
// up
func Open(ctx context.Context, config Config) (*Database, error) {
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Driver, err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	if config.ConnectRetry == (retry.ExpConfig{}) {
		config.ConnectRetry = retry.DefaultExpConfig
	}
	err = retry.Do(ctx, config.ConnectRetry, func() error {
		return retry.Retriable(db.PingContext(ctx))
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", config.Driver, err)
	}

	d, err := New(ctx, db, config)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an already open handle
func New(ctx context.Context, db *sql.DB, config Config) (*Database, error) {
	name := config.Vendor
	if name == "" {
		name = config.Driver
	}
	vendor, err := sqlvendor.ByName(name)
	if err != nil {
		return nil, err
	}

	d := &Database{
		db:     db,
		config: config,
		vendor: vendor,
	}
	d.symbols = symbol.NewCache(NewSymbolStore(db, vendor))

	if err := d.RefreshTables(ctx); err != nil {
		return nil, err
	}
	if d.HasTable(SymbolTable) {
		if err := d.symbols.Load(ctx); err != nil {
			return nil, err
		}
	}

	tlog.Get(ctx).Info("Index database ready",
		zap.String("vendor", vendor.Name()),
		zap.Int("tables", len(*d.tables.Load())),
		zap.Bool("spatial", config.IndexSpatial))
	return d, nil
}

// DB returns the underlying handle
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the underlying handle
func (d *Database) Close() error {
	return d.db.Close()
}

// Vendor returns the SQL dialect
func (d *Database) Vendor() sqlvendor.Vendor {
	return d.vendor
}

// Symbols returns the symbol resolver
func (d *Database) Symbols() symbol.Resolver {
	return d.symbols
}

// IndexSpatial tells whether location and region indexes are written
func (d *Database) IndexSpatial() bool {
	return d.config.IndexSpatial
}

// ComparesIgnoreCase tells whether the database compares text
// case-insensitively
func (d *Database) ComparesIgnoreCase() bool {
	return d.config.ComparesIgnoreCase
}

// HasTable tells whether a table existed at the last refresh
func (d *Database) HasTable(name string) bool {
	return (*d.tables.Load())[name]
}

// Tables returns the set of known tables
func (d *Database) Tables() map[string]bool {
	return *d.tables.Load()
}

// RefreshTables reloads the set of existing tables
func (d *Database) RefreshTables(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, d.vendor.TablesQuery())
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	d.tables.Store(&tables)
	return nil
}

func (d *Database) bind(row []any) []any {
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = d.vendor.BindValue(v)
	}
	return args
}

// ExecuteBatch runs query once per row through a single prepared statement
// and returns the number of rows each execution affected.
//
// On failure the statement and every row are logged, and a *BatchError is
// returned.
func (d *Database) ExecuteBatch(ctx context.Context, conn Conn, query string, rows [][]any) ([]int64, error) {
	query = d.vendor.Rebind(query)
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, batchFailed(ctx, query, rows, -1, err)
	}
	defer stmt.Close()

	counts := make([]int64, 0, len(rows))
	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, d.bind(row)...)
		if err != nil {
			return nil, batchFailed(ctx, query, rows, i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, batchFailed(ctx, query, rows, i, err)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// ExecuteUpdate runs a single statement and returns the number of affected
// rows
func (d *Database) ExecuteUpdate(ctx context.Context, conn Conn, query string, args ...any) (int64, error) {
	query = d.vendor.Rebind(query)
	res, err := conn.ExecContext(ctx, query, d.bind(args)...)
	if err != nil {
		return 0, batchFailed(ctx, query, [][]any{args}, 0, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", query, err)
	}
	return n, nil
}

// Do runs fn in a transaction. The transaction is committed if fn returns
// nil and rolled back if it returns an error or panics.
func (d *Database) Do(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
