package sqlindex

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ridge/quartz/object"
	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/sqlvendor"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// bindKey identifies a row within a batch. Values holds the length-prefixed
// literal renderings of the converted column values.
type bindKey struct {
	id     uuid.UUID
	key    any
	values string
}

func appendKeyValue(v sqlvendor.Vendor, b *strings.Builder, value any) {
	var lit strings.Builder
	v.AppendValue(&lit, value)
	b.WriteString(strconv.Itoa(lit.Len()))
	b.WriteByte(':')
	b.WriteString(lit.String())
}

// batch is one statement and the rows it is executed with
type batch struct {
	table string
	query string
	rows  [][]any

	// states holds the object of every row
	states []*object.State
	seen   map[bindKey]bool
}

func (b *batch) add(key bindKey, row []any, st *object.State) bool {
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	b.rows = append(b.rows, row)
	b.states = append(b.states, st)
	return true
}

// batches groups rows by table and statement text
type batches struct {
	byKey map[string]*batch
}

func newBatches() *batches {
	return &batches{byKey: map[string]*batch{}}
}

func (bs *batches) get(table, query string) *batch {
	k := table + "\x00" + query
	b := bs.byKey[k]
	if b == nil {
		b = &batch{table: table, query: query, seen: map[bindKey]bool{}}
		bs.byKey[k] = b
	}
	return b
}

// sorted returns the batches ordered by table, so that every call takes
// table locks in the same order
func (bs *batches) sorted() []*batch {
	keys := maps.Keys(bs.byKey)
	slices.Sort(keys)
	res := make([]*batch, 0, len(keys))
	for _, k := range keys {
		res = append(res, bs.byKey[k])
	}
	return res
}

// execute runs every non-empty batch and calls done with the affected row
// counts of each
func (x *Indexer) execute(ctx context.Context, conn sqldb.Conn, bs *batches, op string, done func(b *batch, counts []int64)) error {
	for _, b := range bs.sorted() {
		if len(b.rows) == 0 {
			continue
		}
		counts, err := x.backend.ExecuteBatch(ctx, conn, b.query, b.rows)
		if err != nil {
			batchFailures.WithLabelValues(b.table, op).Inc()
			return err
		}
		var total int64
		for _, n := range counts {
			total += n
		}
		rowsWritten.WithLabelValues(b.table, op).Add(float64(total))
		tlog.Get(ctx).Debug("Index batch executed",
			zap.String("table", b.table), zap.String("op", op),
			zap.Int("rows", len(b.rows)), zap.Int64("affected", total))
		if done != nil {
			done(b, counts)
		}
	}
	return nil
}
