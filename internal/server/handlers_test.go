package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/embedding"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/storage"
	"github.com/hyperjump/eiga/internal/vector"
)

type testEnv struct {
	srv      *Server
	handler  http.Handler
	store    *storage.SQLiteStorage
	catalogs *catalog.Store
	embedder embedding.Embedder
}

var testMovies = []models.Movie{
	{ID: "1", Title: "Solaris", Overview: "astronauts orbit a strange ocean planet in space", Genres: []string{"Science Fiction"}, PosterPath: "/solaris.jpg"},
	{ID: "2", Title: "Amelie", Overview: "a shy waitress in paris finds romance", Genres: []string{"Romance", "Comedy"}},
	{ID: "3", Title: "Thief", Overview: "a safecracker plans one last heist", Genres: []string{"Crime"}},
}

// newTestEnv builds a server over a SQLite catalog embedded with the mock embedder.
// With load=false the catalog store starts empty.
func newTestEnv(t *testing.T, load bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 64

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	emb := embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	rows := make([][]float32, len(testMovies))
	for i, m := range testMovies {
		rows[i], _ = emb.Embed(ctx, m.Overview)
	}
	if err := store.ReplaceCatalog(ctx, testMovies, rows); err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	catalogs := catalog.NewStore(store)
	if load {
		if _, err := catalogs.Reload(ctx); err != nil {
			t.Fatal(err)
		}
	}
	rec := recommend.NewRecommender(catalogs, emb, &cfg.Recommend, recommend.WithMetrics(m))
	srv := NewServer(rec, catalogs, store, emb, m, cfg, nil)
	return &testEnv{srv: srv, handler: srv.Routes(), store: store, catalogs: catalogs, embedder: emb}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHandleRecommend(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodPost, "/api/v1/recommend", map[string]interface{}{"query": "space planet astronauts", "limit": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.RecommendResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || resp.CatalogSize != 3 {
		t.Fatalf("response = %+v", resp)
	}
	top := resp.Recommendations[0]
	if top.Movie.Title != "Solaris" || top.PosterURL != "https://image.tmdb.org/t/p/w500/solaris.jpg" {
		t.Errorf("top = %+v", top)
	}
	if w.Header().Get("X-Request-ID") != resp.RequestID || resp.RequestID == "" {
		t.Errorf("request id header %q, body %q", w.Header().Get("X-Request-ID"), resp.RequestID)
	}
}

func TestHandleRecommend_DefaultLimit(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/recommend?q=heist", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.RecommendResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("Total = %d, want catalog size 3 (default limit 5 clamped)", resp.Total)
	}
	if resp.Recommendations[0].Movie.Title != "Thief" {
		t.Errorf("top = %s", resp.Recommendations[0].Movie.Title)
	}
}

func TestHandleRecommend_Errors(t *testing.T) {
	env := newTestEnv(t, true)
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"empty query", http.MethodPost, "/api/v1/recommend", map[string]string{"query": "   "}, http.StatusBadRequest},
		{"negative limit", http.MethodPost, "/api/v1/recommend", map[string]interface{}{"query": "x", "limit": -1}, http.StatusBadRequest},
		{"bad limit param", http.MethodGet, "/api/v1/recommend?q=x&limit=abc", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", w.Code)
	}
}

func TestHandleRecommend_EmptyQueryMessage(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodPost, "/api/v1/recommend", map[string]string{"query": ""})
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != models.ErrEmptyQuery.Error() {
		t.Errorf("error = %q", body["error"])
	}
}

func TestHandleRecommend_NotLoaded(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/v1/recommend", map[string]string{"query": "space"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHandleGetMovie(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/movies/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var m models.Movie
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m.Title != "Amelie" || m.Position != 1 {
		t.Errorf("movie = %+v", m)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/movies/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing movie status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/movies/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad position status = %d", w.Code)
	}
}

func TestHandleGetMovie_BeforeCatalogLoad(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/v1/movies/0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var m models.Movie
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Title != "Solaris" || m.PosterPath != "/solaris.jpg" || len(m.Genres) != 1 {
		t.Errorf("movie = %+v", m)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/movies/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing movie status = %d, want 404", w.Code)
	}
}

func TestHandleSimilar(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/movies/0/similar?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.RecommendResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Seed == nil || resp.Seed.Title != "Solaris" || resp.Total != 2 {
		t.Fatalf("response = %+v", resp)
	}
	for _, rec := range resp.Recommendations {
		if rec.Movie.Position == 0 {
			t.Error("seed movie returned as its own recommendation")
		}
	}

	for path, want := range map[string]int{
		"/api/v1/movies/7/similar":          http.StatusNotFound,
		"/api/v1/movies/x/similar":          http.StatusBadRequest,
		"/api/v1/movies/0/similar?limit=-1": http.StatusBadRequest,
	} {
		if w := env.do(t, http.MethodGet, path, nil); w.Code != want {
			t.Errorf("%s status = %d, want %d", path, w.Code, want)
		}
	}
}

func TestHandleSimilarByTitle(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/similar?title=amelie&limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.RecommendResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Seed == nil || resp.Seed.Position != 1 || resp.Total != 1 || resp.Recommendations[0].Movie.Position == 1 {
		t.Errorf("response = %+v", resp)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/similar?title=casablanca", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown title status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/similar", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d", w.Code)
	}
}

func TestHandleTitleSuggestions(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/titles?q=thef", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Suggestions []catalog.TitleSuggestion `json:"suggestions"`
		Total       int                       `json:"total"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Total != 1 || body.Suggestions[0].Title != "Thief" || body.Suggestions[0].Distance != 1 {
		t.Errorf("suggestions = %+v", body)
	}
	w = env.do(t, http.MethodGet, "/api/v1/titles?q=zzzzzzzz", nil)
	if !strings.Contains(w.Body.String(), `"suggestions":[]`) {
		t.Errorf("empty suggestions body = %s", w.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["stored_movies"].(float64) != 3 {
		t.Errorf("stored_movies = %v", resp["stored_movies"])
	}
	cat := resp["catalog"].(map[string]interface{})
	if cat["loaded"] != true || cat["movies"].(float64) != 3 || cat["dimensions"].(float64) != 64 {
		t.Errorf("catalog = %v", cat)
	}
	if resp["disk_usage_bytes"].(float64) <= 0 {
		t.Errorf("disk_usage_bytes = %v", resp["disk_usage_bytes"])
	}
}

func TestHandleReload(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/v1/catalog/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	cat, err := env.catalogs.Current()
	if err != nil || cat.Len() != 3 {
		t.Fatalf("after reload: %v, %v", cat, err)
	}

	// Replace the stored catalog; a second reload picks it up.
	v, _ := env.embedder.Embed(context.Background(), "only one")
	if err := env.store.ReplaceCatalog(context.Background(), testMovies[:1], [][]float32{v}); err != nil {
		t.Fatal(err)
	}
	env.do(t, http.MethodPost, "/api/v1/catalog/reload", nil)
	cat, _ = env.catalogs.Current()
	if cat.Len() != 1 {
		t.Errorf("catalog size after second reload = %d, want 1", cat.Len())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, true)
	if w := env.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	env.do(t, http.MethodPost, "/api/v1/recommend", map[string]string{"query": "paris"})
	w := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `eiga_recommendations_total{status="ok"} 1`) {
		t.Errorf("metrics missing recommendation counter:\n%s", w.Body.String())
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrEmptyQuery, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", models.ErrInvalidLimit), http.StatusBadRequest},
		{catalog.ErrNotLoaded, http.StatusServiceUnavailable},
		{fmt.Errorf("ranking failed: %w", vector.ErrEmptyCatalog), http.StatusServiceUnavailable},
		{storage.ErrMovieNotFound, http.StatusNotFound},
		{&recommend.EmbedError{Err: errors.New("down")}, http.StatusBadGateway},
		{fmt.Errorf("ranking failed: %w", vector.ErrDimensionMismatch), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
