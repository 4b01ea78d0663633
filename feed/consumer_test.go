package feed

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/mock"
	"github.com/ridge/quartz/retry"
	"github.com/ridge/quartz/sqldb/sqltest"
	"github.com/ridge/quartz/sqlindex"
	"github.com/ridge/quartz/test"
	"github.com/ridge/tj"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader() *fakeReader {
	return &fakeReader{messages: make(chan kafka.Message, 16)}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-r.messages:
		return msg, nil
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	return nil
}

func (r *fakeReader) Committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

type env struct {
	person  *meta.Struct
	backend *mock.Backend
	reader  *fakeReader
}

func newEnv(t *testing.T, config Config) (*env, *Consumer) {
	person := meta.NewType("example.Person", uuid.New())
	person.AddField(meta.Field{InternalName: "name", ItemType: meta.TypeText})
	must.OK1(person.AddIndex(true, "name"))
	live := meta.NewLive(must.OK1(meta.NewRegistry(meta.NewEnvironment(), person)))

	e := &env{
		person:  person,
		backend: mock.NewBackend("RecordString4"),
		reader:  newFakeReader(),
	}
	return e, New(e.reader, e.backend, sqlindex.New(e.backend, live), live, config)
}

func save(id uuid.UUID, name string) kafka.Message {
	return kafka.Message{
		Key: []byte(id.String()),
		Value: must.OK1(json.Marshal(tj.O{
			"op":     "save",
			"object": tj.O{"_id": id.String(), "_type": "example.Person", "name": name},
		})),
	}
}

func del(id uuid.UUID) kafka.Message {
	return kafka.Message{
		Key:   []byte(id.String()),
		Value: must.OK1(json.Marshal(tj.O{"op": "delete"})),
	}
}

const insertString4 = `INSERT INTO "RecordString4" ("id","typeId","symbolId","value") VALUES (?, ?, ?, ?)`

func deletes(ids ...any) []mock.Call {
	var calls []mock.Call
	for _, table := range []string{"RecordNumber3", "RecordString4", "RecordUuid3"} {
		q := `DELETE FROM "` + table + `" WHERE "id" IN (?`
		for range ids[1:] {
			q += `, ?`
		}
		calls = append(calls, mock.Call{Query: q + `)`, Rows: [][]any{ids}})
	}
	return calls
}

func TestApply(t *testing.T) {
	ctx := test.Context(t)
	e, c := newEnv(t, Config{})
	a, b, gone := uuid.New(), uuid.New(), uuid.New()

	msgs := []kafka.Message{
		save(a, "Ann"),
		del(b),
		save(gone, "Cy"),
		{Key: []byte("junk"), Value: []byte("{")},
		del(gone),
	}
	require.NoError(t, c.apply(ctx, msgs))

	expected := append(deletes(a, b, gone), mock.Call{
		Query: insertString4,
		Rows:  [][]any{{a, e.person.ID, int64(1), []byte("Ann")}},
	})
	require.Equal(t, expected, e.backend.Calls())

	commits, rollbacks := e.backend.Transactions()
	require.Equal(t, 1, commits)
	require.Zero(t, rollbacks)
	require.Len(t, e.reader.Committed(), len(msgs))
	require.Empty(t, e.backend.SymbolsCreatedInTransaction())
}

func TestApplySQLite(t *testing.T) {
	ctx := test.Context(t)
	person := meta.NewType("example.Person", uuid.New())
	person.AddField(meta.Field{InternalName: "name", ItemType: meta.TypeText})
	must.OK1(person.AddIndex(true, "name"))
	live := meta.NewLive(must.OK1(meta.NewRegistry(meta.NewEnvironment(), person)))

	// several connections on one file, the way a deployment shares it
	d := sqltest.Open(ctx, t, sqltest.Config{
		Tables: []string{"RecordNumber3", "RecordString4", "RecordUuid3"},
		Path:   filepath.Join(t.TempDir(), "index.db"),
	})
	reader := newFakeReader()
	c := New(reader, d, sqlindex.New(d, live), live, Config{Retry: retry.FixedConfig{MaxAttempts: 1}})

	a, b := uuid.New(), uuid.New()
	require.NoError(t, c.apply(ctx, []kafka.Message{save(a, "Ann"), save(b, "Bob")}))
	rows := sqltest.Rows(ctx, t, d, "RecordString4")
	require.Len(t, rows, 2)

	require.NoError(t, c.apply(ctx, []kafka.Message{save(a, "Cy"), del(b)}))
	rows = sqltest.Rows(ctx, t, d, "RecordString4")
	require.Len(t, rows, 1)
	require.Equal(t, a.String(), rows[0].ID)
	require.Equal(t, []any{[]byte("Cy")}, rows[0].Values)
	require.Len(t, reader.Committed(), 4)
}

func TestApplyOnlyUndecodable(t *testing.T) {
	ctx := test.Context(t)
	e, c := newEnv(t, Config{})

	msgs := []kafka.Message{
		{Value: []byte(`{"op": "rename"}`)},
		{Value: []byte(`{"op": "delete"}`)},
	}
	require.NoError(t, c.apply(ctx, msgs))
	require.Empty(t, e.backend.Calls())
	commits, _ := e.backend.Transactions()
	require.Zero(t, commits)
	require.Len(t, e.reader.Committed(), 2)
}

func TestApplyRetries(t *testing.T) {
	ctx := test.Context(t)
	e, c := newEnv(t, Config{Retry: retry.FixedConfig{}})
	failures := 1
	e.backend.Fail = func(query string) error {
		if failures > 0 {
			failures--
			return errors.New("deadlock detected")
		}
		return nil
	}

	require.NoError(t, c.apply(ctx, []kafka.Message{save(uuid.New(), "Ann")}))
	commits, rollbacks := e.backend.Transactions()
	require.Equal(t, 1, commits)
	require.Equal(t, 1, rollbacks)
	require.Len(t, e.reader.Committed(), 1)
}

func TestApplyGivesUp(t *testing.T) {
	ctx := test.Context(t)
	e, c := newEnv(t, Config{Retry: retry.FixedConfig{MaxAttempts: 2}})
	e.backend.Fail = func(query string) error {
		return errors.New("disk full")
	}

	err := c.apply(ctx, []kafka.Message{save(uuid.New(), "Ann")})
	require.ErrorContains(t, err, "disk full")
	commits, rollbacks := e.backend.Transactions()
	require.Zero(t, commits)
	require.Equal(t, 2, rollbacks)
	require.Empty(t, e.reader.Committed())
}

func TestRunBatchSize(t *testing.T) {
	e, c := newEnv(t, Config{BatchSize: 2, FlushInterval: time.Hour})
	group := test.GroupWithTimeout(t, 30*time.Second)
	group.Spawn("consumer", parallel.Fail, c.Run)

	e.reader.messages <- save(uuid.New(), "Ann")
	e.reader.messages <- save(uuid.New(), "Bob")
	require.Eventually(t, func() bool {
		return len(e.reader.Committed()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	commits, _ := e.backend.Transactions()
	require.Equal(t, 1, commits)
}

func TestRunFlushInterval(t *testing.T) {
	e, c := newEnv(t, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	group := test.GroupWithTimeout(t, 30*time.Second)
	group.Spawn("consumer", parallel.Fail, c.Run)

	id := uuid.New()
	e.reader.messages <- del(id)
	require.Eventually(t, func() bool {
		return len(e.reader.Committed()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, deletes(id), e.backend.Calls())
}
