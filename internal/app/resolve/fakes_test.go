package resolve

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/kaiL163/nekostream/internal/mirror"
	"github.com/kaiL163/nekostream/internal/normalize"
	"github.com/kaiL163/nekostream/internal/provider/anilibria"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// upstreams 是三个上游家族的假服务，带调用计数与故障开关。
type upstreams struct {
	t *testing.T

	shiki, kodik, libria *httptest.Server

	shikiCalls  atomic.Int32
	posterCalls atomic.Int32
	kodikCalls  atomic.Int32
	libriaCalls atomic.Int32

	shikiDown  atomic.Bool
	gqlDown    atomic.Bool
	kodikDown  atomic.Bool
	kodikEmpty atomic.Bool
	libriaDown atomic.Bool

	mu       sync.Mutex
	lastVars map[string]any
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{t: t}
	u.shiki = httptest.NewServer(http.HandlerFunc(u.serveShikimori))
	u.kodik = httptest.NewServer(http.HandlerFunc(u.serveKodik))
	u.libria = httptest.NewServer(http.HandlerFunc(u.serveAniLibria))
	t.Cleanup(func() {
		u.shiki.Close()
		u.kodik.Close()
		u.libria.Close()
	})
	return u
}

func (u *upstreams) downAll() {
	u.shikiDown.Store(true)
	u.kodikDown.Store(true)
	u.libriaDown.Store(true)
}

func (u *upstreams) calls() int32 {
	return u.shikiCalls.Load() + u.kodikCalls.Load() + u.libriaCalls.Load()
}

func (u *upstreams) vars() map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastVars
}

func (u *upstreams) serveShikimori(w http.ResponseWriter, r *http.Request) {
	u.shikiCalls.Add(1)
	if u.shikiDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/api/calendar" {
		_, _ = w.Write(fixture(u.t, "calendar.json"))
		return
	}
	if u.gqlDown.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	u.lastVars = req.Variables
	u.mu.Unlock()

	ids, _ := req.Variables["ids"].(string)
	var animes []map[string]any
	switch {
	case !strings.Contains(req.Query, "russian"):
		// 只查海报的批量请求：响应字段必须与查询字段一致。
		u.posterCalls.Add(1)
		for _, id := range strings.Split(ids, ",") {
			animes = append(animes, map[string]any{
				"id":     id,
				"poster": map[string]any{"originalUrl": "/uploads/poster/animes/" + id + "/original.jpg"},
			})
		}
	case ids != "":
		for _, id := range strings.Split(ids, ",") {
			if id == "5114" {
				animes = append(animes, anime5114())
			}
		}
	default:
		limit, _ := req.Variables["limit"].(float64)
		page, _ := req.Variables["page"].(float64)
		for i := 1; i <= int(limit); i++ {
			animes = append(animes, listAnime(int(page)*1000+i))
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"animes": animes}})
}

func anime5114() map[string]any {
	return map[string]any{
		"id":            "5114",
		"name":          "Fullmetal Alchemist: Brotherhood",
		"russian":       "Стальной алхимик: Братство",
		"score":         9.09,
		"poster":        map[string]any{"originalUrl": "/uploads/poster/animes/5114/original.jpg"},
		"episodes":      64,
		"episodesAired": 64,
		"status":        "released",
		"kind":          "tv",
		"description":   "[character=11]Эдвард[/character] и Альфонс.",
		"genres":        []any{map[string]any{"name": "Action"}, map[string]any{"name": "Drama"}},
		"airedOn":       map[string]any{"year": 2009},
	}
}

// listAnime 生成列表条目：偶数 id 为“连载中但 0 集已播出”。
func listAnime(n int) map[string]any {
	return map[string]any{
		"id":            strconv.Itoa(n),
		"name":          "Anime " + strconv.Itoa(n),
		"russian":       nil,
		"score":         7.5,
		"poster":        map[string]any{"originalUrl": "/uploads/poster/animes/" + strconv.Itoa(n) + "/original.jpg"},
		"episodes":      12,
		"episodesAired": n % 2,
		"status":        "ongoing",
		"kind":          "tv",
		"description":   nil,
		"genres":        []any{},
		"airedOn":       nil,
	}
}

func (u *upstreams) serveKodik(w http.ResponseWriter, r *http.Request) {
	u.kodikCalls.Add(1)
	if u.kodikDown.Load() {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()
	match := q.Get("shikimori_id") == "5114" || strings.Contains(q.Get("title"), "алхимик")
	switch {
	case u.kodikEmpty.Load() || !match:
		_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
	case q.Get("with_link") == "true":
		_, _ = w.Write(fixture(u.t, "kodik_links.json"))
	default:
		_, _ = w.Write(fixture(u.t, "kodik_search.json"))
	}
}

func (u *upstreams) serveAniLibria(w http.ResponseWriter, r *http.Request) {
	u.libriaCalls.Add(1)
	if u.libriaDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/v1/anime/catalog/releases":
		if strings.Contains(r.URL.Query().Get("f[search]"), "Fullmetal") {
			_, _ = w.Write(fixture(u.t, "anilibria_search.json"))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	case r.URL.Path == "/api/v1/anime/releases/9002":
		_, _ = w.Write(fixture(u.t, "anilibria_release_9002.json"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func hostOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

type serviceOpt func(*Options)

func newTestService(t *testing.T, u *upstreams, clock *fakeClock, opts ...serviceOpt) *Service {
	t.Helper()
	mk := func(f mirror.Family, srv *httptest.Server) *mirror.Set {
		s, err := mirror.New(f, []string{hostOf(t, srv)})
		require.NoError(t, err)
		return s
	}
	log := hclog.NewNullLogger()
	o := Options{
		Shikimori:  shikimori.New(shikimori.Options{Mirrors: mk(mirror.FamilyShikimori, u.shiki), Scheme: "http", Log: log}),
		Kodik:      kodik.New(kodik.Options{Mirrors: mk(mirror.FamilyKodik, u.kodik), Token: "test", Scheme: "http", Log: log}),
		AniLibria:  anilibria.New(anilibria.Options{Mirrors: mk(mirror.FamilyAniLibria, u.libria), Scheme: "http", Log: log}),
		Normalizer: normalize.New("", ""),
		Now:        clock.Now,
		Rand:       rand.New(rand.NewPCG(1, 2)),
		Log:        log,
	}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := New(o)
	require.NoError(t, err)
	return s
}
