// Package admin serves the operational HTTP surface of the indexer: table
// catalog state, symbol lookups, declared indexes and Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ridge/must/v2"
	"github.com/ridge/quartz/catalog"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/symbol"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

// Backend is the database state exposed by the admin surface
type Backend interface {
	catalog.Schema
	Symbols() symbol.Resolver
}

// Refresher is implemented by backends able to reload their table set
type Refresher interface {
	RefreshTables(ctx context.Context) error
}

// GenerationInfo describes one table generation
type GenerationInfo struct {
	Table    string `json:"table"`
	Version  int    `json:"version"`
	Keying   string `json:"keying"`
	TypeID   bool   `json:"typeId"`
	ReadOnly bool   `json:"readOnly"`
	Exists   bool   `json:"exists"`
}

// KindInfo describes the tables of one kind
type KindInfo struct {
	Kind        string           `json:"kind"`
	ReadTable   string           `json:"readTable"`
	WriteTables []string         `json:"writeTables"`
	Generations []GenerationInfo `json:"generations"`
}

// IndexInfo describes one declared index and where it is stored
type IndexInfo struct {
	Name          string   `json:"name"`
	Fields        []string `json:"fields"`
	CaseSensitive bool     `json:"caseSensitive"`
	Kind          string   `json:"kind"`
	WriteTables   []string `json:"writeTables"`
}

// SymbolInfo is the response of a symbol lookup
type SymbolInfo struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

type handler struct {
	backend  Backend
	registry *meta.Live
}

// Handler returns the admin HTTP handler. Panics in handlers are logged and
// answered with 500; responses are compressed when the client allows it.
func Handler(ctx context.Context, backend Backend, registry *meta.Live) http.Handler {
	h := handler{backend: backend, registry: registry}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/catalog", h.catalog).Methods(http.MethodGet)
	r.HandleFunc("/catalog/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/indexes", h.indexes).Methods(http.MethodGet)
	r.HandleFunc("/symbols/{name:.+}", h.symbol).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(must.OK1(zap.NewStdLogAt(tlog.Get(ctx), zap.ErrorLevel))),
		handlers.PrintRecoveryStack(true),
	)
	return Log(recovery(handlers.CompressHandler(r)))
}

func (h handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h handler) catalog(w http.ResponseWriter, r *http.Request) {
	res := []KindInfo{}
	for _, k := range catalog.Kinds() {
		info := KindInfo{Kind: k.String(), WriteTables: tableNames(catalog.WriteTables(h.backend, k))}
		if g := catalog.ReadTable(h.backend, k); g != nil {
			info.ReadTable = g.Name
		}
		for _, g := range catalog.Generations(k) {
			info.Generations = append(info.Generations, GenerationInfo{
				Table:    g.Name,
				Version:  g.Version,
				Keying:   keyingName(g.Keying),
				TypeID:   g.TypeIDColumn != "",
				ReadOnly: g.ReadOnly,
				Exists:   h.backend.HasTable(g.Name),
			})
		}
		res = append(res, info)
	}
	writeJSON(r.Context(), w, http.StatusOK, res)
}

func (h handler) refresh(w http.ResponseWriter, r *http.Request) {
	refresher, ok := h.backend.(Refresher)
	if !ok {
		http.Error(w, "table refresh not supported", http.StatusNotImplemented)
		return
	}
	if err := refresher.RefreshTables(r.Context()); err != nil {
		tlog.Get(r.Context()).Error("Table refresh failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.catalog(w, r)
}

func (h handler) indexes(w http.ResponseWriter, r *http.Request) {
	reg := h.registry.Load()
	res := []IndexInfo{}
	structs := append([]*meta.Struct{reg.Environment()}, reg.Types()...)
	for _, s := range structs {
		for _, ix := range s.Indexes() {
			k := catalog.ForIndex(ix)
			res = append(res, IndexInfo{
				Name:          ix.UniqueName(),
				Fields:        ix.Fields,
				CaseSensitive: ix.CaseSensitive,
				Kind:          k.String(),
				WriteTables:   tableNames(catalog.WriteTables(h.backend, k)),
			})
		}
	}
	writeJSON(r.Context(), w, http.StatusOK, res)
}

func (h handler) symbol(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	id, ok, err := h.backend.Symbols().ForRead(r.Context(), name)
	switch {
	case err != nil:
		tlog.Get(r.Context()).Error("Symbol lookup failed", zap.String("name", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case !ok:
		http.Error(w, "symbol not found", http.StatusNotFound)
	default:
		writeJSON(r.Context(), w, http.StatusOK, SymbolInfo{Name: name, ID: id})
	}
}

func tableNames(gens []*catalog.Generation) []string {
	names := make([]string, 0, len(gens))
	for _, g := range gens {
		names = append(names, g.Name)
	}
	return names
}

func keyingName(k catalog.Keying) string {
	if k == catalog.BySymbol {
		return "symbol"
	}
	return "name"
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		tlog.Get(ctx).Debug("Failed to write response", zap.Error(err))
	}
}
