// Package symbol maps index names to the small integer keys stored in
// symbol-keyed index tables.
//
// The mapping is append-only: once a name has a symbol it keeps it forever.
package symbol

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Symbol is one name/id pair
type Symbol struct {
	ID   int64
	Name string
}

// Resolver turns names into symbol ids
type Resolver interface {
	// ForWrite returns the symbol for name, creating it if necessary
	ForWrite(ctx context.Context, name string) (int64, error)

	// ForRead returns the symbol for name without creating it. The boolean
	// is false when no symbol exists.
	ForRead(ctx context.Context, name string) (int64, bool, error)
}

// Store is the persistent side of the symbol table
type Store interface {
	// Load returns every known symbol
	Load(ctx context.Context) ([]Symbol, error)

	// Lookup finds one symbol by name
	Lookup(ctx context.Context, name string) (Symbol, bool, error)

	// Create allocates a new symbol for name
	Create(ctx context.Context, name string) (int64, error)
}

const table = "symbol"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		table: {
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
				"symbol": {
					Name:    "symbol",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
			},
		},
	},
}

// Cache is a Resolver keeping every known symbol in memory.
//
// Lookups read a memdb snapshot and never block. Creation of new symbols is
// serialized.
type Cache struct {
	store Store
	db    *memdb.MemDB

	mu sync.Mutex // serializes creation
}

// NewCache creates an empty cache over store
func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		db:    must.OK1(memdb.NewMemDB(schema)),
	}
}

// Load fills the cache with every symbol the store knows
func (c *Cache) Load(ctx context.Context) error {
	symbols, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}
	txn := c.db.Txn(true)
	defer txn.Abort()
	for _, s := range symbols {
		s := s
		must.OK(txn.Insert(table, &s))
	}
	txn.Commit()
	tlog.Get(ctx).Debug("Symbols loaded", zap.Int("count", len(symbols)))
	return nil
}

func (c *Cache) get(name string) (int64, bool) {
	txn := c.db.Txn(false)
	raw := must.OK1(txn.First(table, "id", name))
	if raw == nil {
		return 0, false
	}
	return raw.(*Symbol).ID, true
}

func (c *Cache) put(s Symbol) {
	txn := c.db.Txn(true)
	defer txn.Abort()
	must.OK(txn.Insert(table, &s))
	txn.Commit()
}

// ForRead implements Resolver. Names missing from the cache are looked up in
// the store, since another process may have created them.
func (c *Cache) ForRead(ctx context.Context, name string) (int64, bool, error) {
	if id, ok := c.get(name); ok {
		return id, true, nil
	}
	s, ok, err := c.store.Lookup(ctx, name)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up symbol %q: %w", name, err)
	}
	if !ok {
		return 0, false, nil
	}
	c.put(s)
	return s.ID, true, nil
}

// ForWrite implements Resolver
func (c *Cache) ForWrite(ctx context.Context, name string) (int64, error) {
	if id, ok := c.get(name); ok {
		return id, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok, err := c.ForRead(ctx, name)
	if err != nil || ok {
		return id, err
	}
	id, err = c.store.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create symbol %q: %w", name, err)
	}
	c.put(Symbol{ID: id, Name: name})
	tlog.Get(ctx).Debug("Symbol created", zap.String("name", name), zap.Int64("id", id))
	return id, nil
}

// Name returns the name of a cached symbol id
func (c *Cache) Name(id int64) (string, bool) {
	txn := c.db.Txn(false)
	raw := must.OK1(txn.First(table, "symbol", id))
	if raw == nil {
		return "", false
	}
	return raw.(*Symbol).Name, true
}

// All returns a snapshot of every cached symbol ordered by id
func (c *Cache) All() []Symbol {
	txn := c.db.Txn(false)
	it := must.OK1(txn.Get(table, "id"))
	byID := map[int64]string{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		s := raw.(*Symbol)
		byID[s.ID] = s.Name
	}
	ids := maps.Keys(byID)
	slices.Sort(ids)
	res := make([]Symbol, 0, len(ids))
	for _, id := range ids {
		res = append(res, Symbol{ID: id, Name: byID[id]})
	}
	return res
}

// MemStore is an in-memory Store handing out sequential ids
type MemStore struct {
	mu    sync.Mutex
	names map[string]int64
	next  int64
}

// NewMemStore creates an empty MemStore
func NewMemStore() *MemStore {
	return &MemStore{names: map[string]int64{}, next: 1}
}

// Load implements Store
func (m *MemStore) Load(ctx context.Context) ([]Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Symbol, 0, len(m.names))
	for name, id := range m.names {
		res = append(res, Symbol{ID: id, Name: name})
	}
	return res, nil
}

// Lookup implements Store
func (m *MemStore) Lookup(ctx context.Context, name string) (Symbol, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.names[name]
	return Symbol{ID: id, Name: name}, ok, nil
}

// Create implements Store
func (m *MemStore) Create(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.names[name]; ok {
		return id, nil
	}
	id := m.next
	m.next++
	m.names[name] = id
	return id, nil
}
