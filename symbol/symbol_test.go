package symbol

import (
	"context"
	"sync"
	"testing"

	"github.com/ridge/quartz/test"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemStore
	mu      sync.Mutex
	creates int
}

func (s *countingStore) Create(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.MemStore.Create(ctx, name)
}

func TestForWriteCreatesOnce(t *testing.T) {
	ctx := test.Context(t)
	store := &countingStore{MemStore: NewMemStore()}
	c := NewCache(store)

	_, ok, err := c.ForRead(ctx, "tags")
	require.NoError(t, err)
	require.False(t, ok)

	id, err := c.ForWrite(ctx, "tags")
	require.NoError(t, err)
	again, err := c.ForWrite(ctx, "tags")
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Equal(t, 1, store.creates)

	read, ok, err := c.ForRead(ctx, "tags")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, read)

	name, ok := c.Name(id)
	require.True(t, ok)
	require.Equal(t, "tags", name)
}

func TestConcurrentCreation(t *testing.T) {
	ctx := test.Context(t)
	store := &countingStore{MemStore: NewMemStore()}
	c := NewCache(store)

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.ForWrite(ctx, "shared")
			if err == nil {
				ids[i] = id
			}
		}()
	}
	wg.Wait()
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	require.Equal(t, 1, store.creates)
}

func TestLoadAndReadThrough(t *testing.T) {
	ctx := test.Context(t)
	store := NewMemStore()
	a, err := store.Create(ctx, "a")
	require.NoError(t, err)
	b, err := store.Create(ctx, "b")
	require.NoError(t, err)

	c := NewCache(store)
	require.NoError(t, c.Load(ctx))
	require.Equal(t, []Symbol{{ID: a, Name: "a"}, {ID: b, Name: "b"}}, c.All())

	// created behind the cache's back
	d, err := store.Create(ctx, "d")
	require.NoError(t, err)
	got, ok, err := c.ForRead(ctx, "d")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, d, got)
}
