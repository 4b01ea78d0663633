// Package sqlindex keeps the index tables consistent with object state.
//
// Every call builds one parameterized statement per (table, statement) pair,
// binds a row for every permutation of every affected index and executes the
// statements as batches on the caller's connection. The caller owns the
// transaction: a failed call leaves the index tables in whatever state the
// transaction rollback restores.
package sqlindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ridge/quartz/catalog"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/normalize"
	"github.com/ridge/quartz/object"
	"github.com/ridge/quartz/permute"
	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/sqlvendor"
	"github.com/ridge/quartz/symbol"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

// Backend is the storage the indexer writes to
type Backend interface {
	catalog.Schema

	Vendor() sqlvendor.Vendor
	Symbols() symbol.Resolver
	ComparesIgnoreCase() bool

	ExecuteBatch(ctx context.Context, conn sqldb.Conn, query string, rows [][]any) ([]int64, error)
	ExecuteUpdate(ctx context.Context, conn sqldb.Conn, query string, args ...any) (int64, error)
}

// Schema supplies the environment struct, whose indexes apply to every
// object
type Schema interface {
	Environment() *meta.Struct
}

// Indexer writes index rows. Safe for concurrent use as long as concurrent
// calls use different connections.
type Indexer struct {
	backend Backend
	schema  Schema
}

// New creates an Indexer
func New(backend Backend, schema Schema) *Indexer {
	return &Indexer{backend: backend, schema: schema}
}

// Insert writes the rows of every index of the given objects
func (x *Indexer) Insert(ctx context.Context, conn sqldb.Conn, states []*object.State) error {
	return x.insert(ctx, conn, nil, states)
}

// InsertIndex writes the rows of a single index of the given objects
func (x *Indexer) InsertIndex(ctx context.Context, conn sqldb.Conn, ix *meta.Index, states []*object.State) error {
	return x.insert(ctx, conn, ix, states)
}

// Delete removes every index row of the given objects
func (x *Indexer) Delete(ctx context.Context, conn sqldb.Conn, states []*object.State) error {
	return x.delete(ctx, conn, nil, states)
}

// DeleteIndex removes the rows of a single index of the given objects
func (x *Indexer) DeleteIndex(ctx context.Context, conn sqldb.Conn, ix *meta.Index, states []*object.State) error {
	return x.delete(ctx, conn, ix, states)
}

// Prepare creates the symbols that inserting the given objects needs.
//
// Symbols are written on a connection of their own. A caller that runs
// several statements in one transaction calls Prepare before the transaction
// starts, so that symbol creation never waits for a lock the transaction
// holds.
func (x *Indexer) Prepare(ctx context.Context, states []*object.State) error {
	return x.prepare(ctx, nil, states)
}

func (x *Indexer) prepare(ctx context.Context, only *meta.Index, states []*object.State) error {
	env := x.schema.Environment()
	opts := x.options()
	symbols := x.backend.Symbols()

	for _, st := range states {
		var ivs []permute.IndexValue
		if only != nil {
			ivs = permute.ComputeIndex(env, st, only)
		} else {
			ivs = permute.Compute(env, st)
		}
		for _, iv := range ivs {
			for _, g := range catalog.WriteTables(x.backend, catalog.ForIndex(iv.Index)) {
				if g.Keying == catalog.ByName || !hasRow(opts, g, iv) {
					continue
				}
				if _, err := g.Key(ctx, symbols, iv.UniqueName()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// hasRow tells whether any permutation of iv converts to non-blank values
// only
func hasRow(opts normalize.Options, g *catalog.Generation, iv permute.IndexValue) bool {
	n := len(iv.Index.Fields)
rows:
	for _, perm := range iv.Rows {
		for i := 0; i < n; i++ {
			if normalize.IsBlank(g.Convert(opts, iv.Index, i, perm[i])) {
				continue rows
			}
		}
		return true
	}
	return false
}

func (x *Indexer) options() normalize.Options {
	return normalize.Options{ComparesIgnoreCase: x.backend.ComparesIgnoreCase()}
}

// bind adds a row to b for every non-blank permutation of iv and returns the
// number of non-blank permutations, including those already in b
func (x *Indexer) bind(ctx context.Context, b *batch, g *catalog.Generation, iv permute.IndexValue, st *object.State, update bool) (int, error) {
	var key any // resolved with the first non-blank row
	vendor := x.backend.Vendor()
	opts := x.options()
	n := len(iv.Index.Fields)

	bindable := 0
	for _, perm := range iv.Rows {
		params := make([]any, 0, n)
		var values strings.Builder
		for i := 0; i < n; i++ {
			p := g.Convert(opts, iv.Index, i, perm[i])
			if normalize.IsBlank(p) {
				params = nil
				break
			}
			params = append(params, p)
			appendKeyValue(vendor, &values, p)
		}
		if params == nil {
			continue
		}
		bindable++

		if key == nil {
			var err error
			if key, err = g.Key(ctx, x.backend.Symbols(), iv.UniqueName()); err != nil {
				return 0, err
			}
		}

		var row []any
		if update {
			row = append(row, params...)
			row = append(row, st.ID)
			if g.TypeIDColumn != "" {
				row = append(row, st.TypeID)
			}
			row = append(row, key)
		} else {
			row = append(row, st.ID)
			if g.TypeIDColumn != "" {
				row = append(row, st.TypeID)
			}
			row = append(row, key)
			row = append(row, params...)
		}
		b.add(bindKey{id: st.ID, key: key, values: values.String()}, row, st)
	}
	return bindable, nil
}

func (x *Indexer) insert(ctx context.Context, conn sqldb.Conn, only *meta.Index, states []*object.State) error {
	env := x.schema.Environment()
	vendor := x.backend.Vendor()
	bs := newBatches()

	for _, st := range states {
		for _, iv := range permute.Compute(env, st) {
			if only != nil && iv.Index != only {
				continue
			}
			for _, g := range catalog.WriteTables(x.backend, catalog.ForIndex(iv.Index)) {
				query, err := insertStatement(vendor, g, iv.Index)
				if err != nil {
					return err
				}
				if _, err := x.bind(ctx, bs.get(g.Name, query), g, iv, st, false); err != nil {
					return err
				}
			}
		}
	}
	return x.execute(ctx, conn, bs, opInsert, nil)
}

// Fallback reasons
const (
	reasonCollection = "collection"
	reasonEmbedded   = "embedded"
	reasonMissing    = "missing"
)

// fallbackReason tells why the rows of ix cannot be updated in place for st;
// empty if they can
func fallbackReason(ix *meta.Index, st *object.State) string {
	for i := range ix.Fields {
		f := ix.FieldAt(i)
		if f.Collection {
			return reasonCollection
		}
		if f.ItemType != meta.TypeRecord {
			continue
		}
		if f.Embedded {
			return reasonEmbedded
		}
		if r, ok := st.Get(f.InternalName).(object.Recordable); ok {
			if vs := r.QuartzState(); vs != nil && vs.Type != nil && vs.Type.Embedded {
				return reasonEmbedded
			}
		}
	}
	return ""
}

// stateSet keeps distinct objects in insertion order
type stateSet struct {
	seen  map[*object.State]bool
	items []*object.State
}

func (s *stateSet) add(st *object.State) bool {
	if s.seen == nil {
		s.seen = map[*object.State]bool{}
	}
	if s.seen[st] {
		return false
	}
	s.seen[st] = true
	s.items = append(s.items, st)
	return true
}

// Update rewrites the rows of a single index in place.
//
// Objects whose rows cannot be updated in place, or whose update touched no
// row, get their rows of the index deleted and inserted anew. Objects no
// longer having any value for the index get their rows deleted.
func (x *Indexer) Update(ctx context.Context, conn sqldb.Conn, ix *meta.Index, states []*object.State) error {
	for _, name := range ix.Fields {
		if _, ok := ix.Parent.Field(name); !ok {
			return fmt.Errorf("index %s covers field %s: %w", ix, name, meta.ErrUnknownField)
		}
	}

	env := x.schema.Environment()
	vendor := x.backend.Vendor()
	tables := catalog.WriteTables(x.backend, catalog.ForIndex(ix))
	if len(tables) == 0 {
		return nil
	}
	logger := tlog.Get(ctx).With(zap.Stringer("index", ix))

	// fallback inserts run after the updates
	if err := x.prepare(ctx, ix, states); err != nil {
		return err
	}

	bs := newBatches()
	var deletes, inserts stateSet
	fallback := func(st *object.State, reason string) {
		if inserts.add(st) {
			logger.Debug("Index update falls back to delete and insert", zap.Stringer("id", st.ID), zap.String("reason", reason))
			updateFallbacks.WithLabelValues(reason).Inc()
		}
	}

	for _, st := range states {
		if reason := fallbackReason(ix, st); reason != "" {
			fallback(st, reason)
			continue
		}

		bindable := 0
		for _, iv := range permute.ComputeIndex(env, st, ix) {
			for _, g := range tables {
				query, err := updateStatement(vendor, g, ix)
				if err != nil {
					return err
				}
				n, err := x.bind(ctx, bs.get(g.Name, query), g, iv, st, true)
				if err != nil {
					return err
				}
				bindable += n
			}
		}
		if bindable == 0 {
			deletes.add(st)
		}
	}

	err := x.execute(ctx, conn, bs, opUpdate, func(b *batch, counts []int64) {
		for i, n := range counts {
			if n == 0 {
				fallback(b.states[i], reasonMissing)
			}
		}
	})
	if err != nil {
		return err
	}

	if len(deletes.items) > 0 {
		if err := x.delete(ctx, conn, ix, deletes.items); err != nil {
			return err
		}
	}
	if len(inserts.items) > 0 {
		if err := x.delete(ctx, conn, ix, inserts.items); err != nil {
			return err
		}
		if err := x.insert(ctx, conn, ix, inserts.items); err != nil {
			return err
		}
	}
	return nil
}

func (x *Indexer) delete(ctx context.Context, conn sqldb.Conn, only *meta.Index, states []*object.State) error {
	if len(states) == 0 {
		return nil
	}

	var ids []any
	seen := map[uuid.UUID]bool{}
	for _, st := range states {
		if !seen[st.ID] {
			seen[st.ID] = true
			ids = append(ids, st.ID)
		}
	}

	kinds := catalog.Kinds()
	if only != nil {
		kinds = []catalog.Kind{catalog.ForIndex(only)}
	}

	vendor := x.backend.Vendor()
	for _, kind := range kinds {
		for _, g := range catalog.WriteTables(x.backend, kind) {
			args := ids
			if only != nil {
				key, ok, err := g.ReadKey(ctx, x.backend.Symbols(), only.UniqueName())
				if err != nil {
					return err
				}
				if !ok {
					// no row can carry a name that has no symbol
					continue
				}
				args = append(ids[:len(ids):len(ids)], key)
			}

			query := deleteStatement(vendor, g, len(ids), only != nil)
			n, err := x.backend.ExecuteUpdate(ctx, conn, query, args...)
			if err != nil {
				batchFailures.WithLabelValues(g.Name, opDelete).Inc()
				return err
			}
			rowsWritten.WithLabelValues(g.Name, opDelete).Add(float64(n))
		}
	}
	return nil
}
