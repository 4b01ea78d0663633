package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ridge/quartz/sqlvendor"
	"github.com/ridge/quartz/symbol"
)

// SymbolTable is the table holding index name symbols
const SymbolTable = "Symbol"

// SymbolStore keeps symbols in the Symbol(symbolId, value) table.
//
// It always uses its own connections, so new symbols are committed
// independently of the caller's transaction.
type SymbolStore struct {
	db *sql.DB

	loadQuery   string
	lookupQuery string
	createQuery string
}

// NewSymbolStore creates a store over db
func NewSymbolStore(db *sql.DB, vendor sqlvendor.Vendor) *SymbolStore {
	ident := func(name string) string {
		var b strings.Builder
		vendor.AppendIdentifier(&b, name)
		return b.String()
	}
	table, id, value := ident(SymbolTable), ident("symbolId"), ident("value")
	return &SymbolStore{
		db:          db,
		loadQuery:   "SELECT " + id + ", " + value + " FROM " + table,
		lookupQuery: vendor.Rebind("SELECT " + id + " FROM " + table + " WHERE " + value + " = ?"),
		createQuery: vendor.Rebind("INSERT INTO " + table + " (" + value + ") VALUES (?)"),
	}
}

// Load implements symbol.Store
func (s *SymbolStore) Load(ctx context.Context) ([]symbol.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, s.loadQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []symbol.Symbol
	for rows.Next() {
		var sym symbol.Symbol
		if err := rows.Scan(&sym.ID, &sym.Name); err != nil {
			return nil, err
		}
		res = append(res, sym)
	}
	return res, rows.Err()
}

// Lookup implements symbol.Store
func (s *SymbolStore) Lookup(ctx context.Context, name string) (symbol.Symbol, bool, error) {
	sym := symbol.Symbol{Name: name}
	err := s.db.QueryRowContext(ctx, s.lookupQuery, name).Scan(&sym.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return symbol.Symbol{}, false, nil
	case err != nil:
		return symbol.Symbol{}, false, err
	}
	return sym, true, nil
}

// Create implements symbol.Store. A symbol concurrently created by another
// process is returned as is.
func (s *SymbolStore) Create(ctx context.Context, name string) (int64, error) {
	_, insertErr := s.db.ExecContext(ctx, s.createQuery, name)

	sym, ok, err := s.Lookup(ctx, name)
	switch {
	case err != nil:
		return 0, err
	case ok:
		return sym.ID, nil
	case insertErr != nil:
		return 0, insertErr
	default:
		return 0, fmt.Errorf("symbol %q vanished after insert", name)
	}
}
