// Package mock provides an in-memory index backend for unit tests
package mock

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/sqlvendor"
	"github.com/ridge/quartz/symbol"
)

// Call is one recorded statement execution. ExecuteUpdate calls have a
// single row.
type Call struct {
	Query string
	Rows  [][]any
}

// Backend records the statements it is asked to execute instead of running
// them
type Backend struct {
	// Affected returns the number of rows an execution of query with row
	// affects. Defaults to 1.
	Affected func(query string, row []any) int64

	// Fail, if set, returns the error a statement fails with
	Fail func(query string) error

	Spatial    bool
	IgnoreCase bool

	// SQLVendor is the dialect statements are built for; SQLite if nil
	SQLVendor sqlvendor.Vendor

	tables  map[string]bool
	symbols *symbol.Cache

	mu        sync.Mutex
	calls     []Call
	commits   int
	rollbacks int
	inTx      bool
	txSymbols []string
}

// store notes symbols created while a transaction runs
type store struct {
	*symbol.MemStore
	b *Backend
}

func (s store) Create(ctx context.Context, name string) (int64, error) {
	s.b.mu.Lock()
	if s.b.inTx {
		s.b.txSymbols = append(s.b.txSymbols, name)
	}
	s.b.mu.Unlock()
	return s.MemStore.Create(ctx, name)
}

// NewBackend creates a backend where the given tables exist
func NewBackend(tables ...string) *Backend {
	b := &Backend{tables: map[string]bool{}}
	b.symbols = symbol.NewCache(store{MemStore: symbol.NewMemStore(), b: b})
	for _, t := range tables {
		b.tables[t] = true
	}
	return b
}

// HasTable implements sqlindex.Backend
func (b *Backend) HasTable(name string) bool {
	return b.tables[name]
}

// IndexSpatial implements sqlindex.Backend
func (b *Backend) IndexSpatial() bool {
	return b.Spatial
}

// ComparesIgnoreCase implements sqlindex.Backend
func (b *Backend) ComparesIgnoreCase() bool {
	return b.IgnoreCase
}

// Vendor implements sqlindex.Backend
func (b *Backend) Vendor() sqlvendor.Vendor {
	if b.SQLVendor == nil {
		return sqlvendor.SQLite{}
	}
	return b.SQLVendor
}

// Symbols implements sqlindex.Backend
func (b *Backend) Symbols() symbol.Resolver {
	return b.symbols
}

func (b *Backend) affected(query string, row []any) int64 {
	if b.Affected == nil {
		return 1
	}
	return b.Affected(query, row)
}

// ExecuteBatch implements sqlindex.Backend
func (b *Backend) ExecuteBatch(ctx context.Context, conn sqldb.Conn, query string, rows [][]any) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, Call{Query: query, Rows: rows})
	if b.Fail != nil {
		if err := b.Fail(query); err != nil {
			return nil, &sqldb.BatchError{Query: query, Rows: rows, Err: err}
		}
	}
	counts := make([]int64, len(rows))
	for i, row := range rows {
		counts[i] = b.affected(query, row)
	}
	return counts, nil
}

// ExecuteUpdate implements sqlindex.Backend
func (b *Backend) ExecuteUpdate(ctx context.Context, conn sqldb.Conn, query string, args ...any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, Call{Query: query, Rows: [][]any{args}})
	if b.Fail != nil {
		if err := b.Fail(query); err != nil {
			return 0, &sqldb.BatchError{Query: query, Rows: [][]any{args}, Err: err}
		}
	}
	return b.affected(query, args), nil
}

// Do runs fn with a nil transaction and counts commits and rollbacks
func (b *Backend) Do(ctx context.Context, fn func(tx *sql.Tx) error) error {
	b.mu.Lock()
	b.inTx = true
	b.mu.Unlock()

	err := fn(nil)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.inTx = false
	if err != nil {
		b.rollbacks++
		return err
	}
	b.commits++
	return nil
}

// Calls returns the recorded statements and forgets them
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := b.calls
	b.calls = nil
	return calls
}

// Transactions returns the number of committed and rolled back transactions
func (b *Backend) Transactions() (commits, rollbacks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commits, b.rollbacks
}

// SymbolsCreatedInTransaction returns the names of the symbols created while
// Do was running its function
func (b *Backend) SymbolsCreatedInTransaction() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.txSymbols...)
}
