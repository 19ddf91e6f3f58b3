package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiL163/nekostream/internal/domain"
)

type fakeResolver struct {
	mu sync.Mutex

	lastID     string
	lastKind   domain.PoolKind
	lastCount  int
	lastFilter domain.CatalogFilter
	lastTitle  string
	catalogOK  bool
}

func (f *fakeResolver) ResolveTitle(ctx context.Context, id string) domain.TitleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID = id
	if id != "5114" {
		return domain.NotFound()
	}
	return domain.TitleResult{Found: true, Metadata: &domain.Title{ShikimoriID: id, Title: "FMA"}, Translations: []domain.Translation{}}
}

func (f *fakeResolver) ResolvePool(ctx context.Context, kind domain.PoolKind, count int) []domain.Title {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKind, f.lastCount = kind, count
	return []domain.Title{{ShikimoriID: "1"}}
}

func (f *fakeResolver) ResolveVideoSources(ctx context.Context, id string) domain.VideoResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID = id
	return domain.VideoResult{Found: true, Sources: []domain.VideoSource{{Provider: domain.ProviderAniLibria}, {Provider: domain.ProviderKodik}}, Torrents: []domain.Torrent{}}
}

func (f *fakeResolver) KodikSources(ctx context.Context, id string) domain.VideoResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID = id
	return domain.VideoResult{Found: false, Sources: []domain.VideoSource{}, Torrents: []domain.Torrent{}}
}

func (f *fakeResolver) ResolveCalendar(ctx context.Context) []domain.CalendarEntry {
	return []domain.CalendarEntry{}
}

func (f *fakeResolver) Catalog(ctx context.Context, filter domain.CatalogFilter) ([]domain.Title, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if !f.catalogOK {
		return []domain.Title{}, false
	}
	return []domain.Title{{ShikimoriID: "7"}}, true
}

func (f *fakeResolver) SearchTranslations(ctx context.Context, title string) domain.SearchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTitle = title
	return domain.SearchResult{Results: []domain.Translation{{ID: "610"}}, ShikimoriID: "5114"}
}

func newTestServer(res *fakeResolver) http.Handler {
	return New(Options{Resolver: res, CORSOrigins: []string{"http://localhost:3000/"}}).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(&fakeResolver{})

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	root := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", root["status"])
	assert.Equal(t, Version, root["version"])

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestTitleRoute_NotFoundIsStill200(t *testing.T) {
	res := &fakeResolver{}
	h := newTestServer(res)

	rec := do(t, h, http.MethodGet, "/kodik/by-shikimori/999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"found":false,"metadata":null,"translations":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/kodik/by-shikimori/5114", "")
	got := decode[domain.TitleResult](t, rec)
	assert.True(t, got.Found)
	assert.Equal(t, "5114", res.lastID)
}

func TestKodikSearch(t *testing.T) {
	res := &fakeResolver{}
	h := newTestServer(res)

	rec := do(t, h, http.MethodGet, "/kodik/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/kodik/search?title=%D0%B0%D0%BB%D1%85%D0%B8%D0%BC%D0%B8%D0%BA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "алхимик", res.lastTitle)
	got := decode[domain.SearchResult](t, rec)
	assert.Len(t, got.Results, 1)
}

func TestVideoRoutes(t *testing.T) {
	res := &fakeResolver{}
	h := newTestServer(res)

	for _, path := range []string{"/video/all-links/5114", "/anilibria/video-links/5114"} {
		rec := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		got := decode[domain.VideoResult](t, rec)
		assert.True(t, got.Found)
		assert.Len(t, got.Sources, 2)
	}

	rec := do(t, h, http.MethodGet, "/kodik/video-links/5114", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"found":false,"sources":[],"torrents":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/video/all-links/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPoolRoutes(t *testing.T) {
	res := &fakeResolver{}
	h := newTestServer(res)

	rec := do(t, h, http.MethodGet, "/custom/random", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PoolRandom, res.lastKind)
	assert.Equal(t, 0, res.lastCount)

	rec = do(t, h, http.MethodGet, "/custom/popular?limit=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PoolPopular, res.lastKind)
	assert.Equal(t, 7, res.lastCount)

	rec = do(t, h, http.MethodGet, "/custom/random?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogRoute(t *testing.T) {
	res := &fakeResolver{catalogOK: true}
	h := newTestServer(res)

	rec := do(t, h, http.MethodPost, "/shikimori/catalog", `{"limit":5,"status":"ongoing","strict":true,"order":"popularity"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.CatalogFilter{Limit: 5, Status: "ongoing", Strict: true, Order: "popularity"}, res.lastFilter)
	assert.Len(t, decode[[]domain.Title](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/shikimori/catalog", `not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.CatalogFilter{}, res.lastFilter)

	res.catalogOK = false
	rec = do(t, h, http.MethodPost, "/shikimori/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "failed")

	rec = do(t, h, http.MethodGet, "/shikimori/catalog", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeResolver{})

	req := httptest.NewRequest(http.MethodOptions, "/shikimori/catalog", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCalendarRoute(t *testing.T) {
	h := newTestServer(&fakeResolver{})
	rec := do(t, h, http.MethodGet, "/shikimori/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
