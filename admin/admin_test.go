package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/mock"
	"github.com/ridge/quartz/test"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *meta.Live {
	env := meta.NewEnvironment()
	env.AddField(meta.Field{InternalName: "created", ItemType: meta.TypeDate})
	must.OK1(env.AddIndex(true, "created"))

	person := meta.NewType("example.Person", uuid.New())
	person.AddField(meta.Field{InternalName: "name", ItemType: meta.TypeText})
	must.OK1(person.AddIndex(false, "name"))

	reg, err := meta.NewRegistry(env, person)
	require.NoError(t, err)
	return meta.NewLive(reg)
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	h := Handler(test.Context(t), mock.NewBackend(), testRegistry(t))
	require.Equal(t, http.StatusOK, get(t, h, http.MethodGet, "/health").Code)
}

func TestCatalog(t *testing.T) {
	h := Handler(test.Context(t), mock.NewBackend("RecordString2", "RecordString4"), testRegistry(t))

	w := get(t, h, http.MethodGet, "/catalog")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var kinds []KindInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kinds))
	require.Len(t, kinds, 5)

	location := kinds[0]
	require.Equal(t, "location", location.Kind)
	require.Empty(t, location.WriteTables)

	str := kinds[3]
	require.Equal(t, "string", str.Kind)
	require.Equal(t, "RecordString2", str.ReadTable)
	require.Equal(t, []string{"RecordString2", "RecordString4"}, str.WriteTables)
	require.Equal(t, []GenerationInfo{
		{Table: "RecordString", Version: 1, Keying: "name"},
		{Table: "RecordString2", Version: 2, Keying: "symbol", Exists: true},
		{Table: "RecordString3", Version: 3, Keying: "symbol"},
		{Table: "RecordString4", Version: 4, Keying: "symbol", TypeID: true, Exists: true},
	}, str.Generations)

	uuidKind := kinds[4]
	require.Equal(t, "RecordUuid3", uuidKind.ReadTable)
	require.Equal(t, []string{"RecordUuid3"}, uuidKind.WriteTables)
}

func TestIndexes(t *testing.T) {
	h := Handler(test.Context(t), mock.NewBackend("RecordString4"), testRegistry(t))

	w := get(t, h, http.MethodGet, "/indexes")
	require.Equal(t, http.StatusOK, w.Code)

	var indexes []IndexInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &indexes))
	require.Equal(t, []IndexInfo{
		{Name: "created", Fields: []string{"created"}, CaseSensitive: true, Kind: "number", WriteTables: []string{"RecordNumber3"}},
		{Name: "example.Person/name", Fields: []string{"name"}, Kind: "string", WriteTables: []string{"RecordString4"}},
	}, indexes)
}

func TestSymbols(t *testing.T) {
	ctx := test.Context(t)
	backend := mock.NewBackend()
	id := must.OK1(backend.Symbols().ForWrite(ctx, "example.Person/name"))
	h := Handler(ctx, backend, testRegistry(t))

	w := get(t, h, http.MethodGet, "/symbols/example.Person/name")
	require.Equal(t, http.StatusOK, w.Code)
	var info SymbolInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, SymbolInfo{Name: "example.Person/name", ID: id}, info)

	require.Equal(t, http.StatusNotFound, get(t, h, http.MethodGet, "/symbols/example.Person/title").Code)
	_, ok, err := backend.Symbols().ForRead(ctx, "example.Person/title")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMetrics(t *testing.T) {
	h := Handler(test.Context(t), mock.NewBackend(), testRegistry(t))

	w := get(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "go_goroutines")
}

type panickyBackend struct {
	*mock.Backend
}

func (panickyBackend) RefreshTables(ctx context.Context) error {
	panic("boom")
}

func TestRefresh(t *testing.T) {
	ctx := test.Context(t)

	h := Handler(ctx, mock.NewBackend(), testRegistry(t))
	require.Equal(t, http.StatusNotImplemented, get(t, h, http.MethodPost, "/catalog/refresh").Code)
	require.Equal(t, http.StatusMethodNotAllowed, get(t, h, http.MethodGet, "/catalog/refresh").Code)

	h = Handler(ctx, panickyBackend{Backend: mock.NewBackend()}, testRegistry(t))
	require.Equal(t, http.StatusInternalServerError, get(t, h, http.MethodPost, "/catalog/refresh").Code)
}

func TestServer(t *testing.T) {
	group := test.Group(t)

	l, err := Listen("localhost:0")
	require.NoError(t, err)
	s := NewServer(l, Handler(group.Context(), mock.NewBackend(), testRegistry(t)))
	group.Spawn("server", parallel.Fail, s.Run)

	req := must.OK1(http.NewRequestWithContext(group.Context(), http.MethodGet, "http://"+s.Addr().String()+"/health", nil))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	_, err = io.ReadAll(res.Body)
	require.NoError(t, err)
}

func TestListenUnix(t *testing.T) {
	path := t.TempDir() + "/admin.sock"
	l, err := Listen("unix:" + path)
	require.NoError(t, err)
	require.Equal(t, "unix", l.Addr().Network())
	require.Equal(t, path, l.Addr().String())
	require.NoError(t, l.Close())
}
