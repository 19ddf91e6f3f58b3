// Package server 是解析服务之上的薄 HTTP 适配层。
//
// 约束：
// - 上游失败不会变成 5xx：解析结果本身携带 found/空列表
// - 只做参数解析与 JSON 输出，不含业务规则
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/kaiL163/nekostream/internal/domain"
)

// Version 出现在 GET / 的响应中。
const Version = "3.0.0"

// Resolver 是 HTTP 层依赖的解析能力（由 resolve.Service 实现）。
type Resolver interface {
	ResolveTitle(ctx context.Context, id string) domain.TitleResult
	ResolvePool(ctx context.Context, kind domain.PoolKind, count int) []domain.Title
	ResolveVideoSources(ctx context.Context, id string) domain.VideoResult
	KodikSources(ctx context.Context, id string) domain.VideoResult
	ResolveCalendar(ctx context.Context) []domain.CalendarEntry
	Catalog(ctx context.Context, filter domain.CatalogFilter) ([]domain.Title, bool)
	SearchTranslations(ctx context.Context, title string) domain.SearchResult
}

type Options struct {
	Resolver    Resolver
	CORSOrigins []string
	Log         hclog.Logger
}

type Server struct {
	res     Resolver
	origins map[string]struct{}
	log     hclog.Logger
	router  *mux.Router
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = hclog.NewNullLogger()
	}
	s := &Server{
		res:     opts.Resolver,
		origins: make(map[string]struct{}, len(opts.CORSOrigins)),
		log:     opts.Log,
	}
	for _, o := range opts.CORSOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			s.origins[o] = struct{}{}
		}
	}
	s.router = s.routes()
	return s
}

// Handler 返回带 CORS 与访问日志的根 handler。
// CORS 包在路由之外，这样任意路径的预检请求都能得到应答。
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.router))
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/kodik/search", s.handleKodikSearch).Methods(http.MethodGet)
	r.HandleFunc("/kodik/by-shikimori/{id}", s.handleTitle).Methods(http.MethodGet)
	r.HandleFunc("/kodik/video-links/{id:[0-9]+}", s.handleKodikVideo).Methods(http.MethodGet)

	r.HandleFunc("/video/all-links/{id:[0-9]+}", s.handleAllVideo).Methods(http.MethodGet)
	// 历史路径：与 /video/all-links 相同。
	r.HandleFunc("/anilibria/video-links/{id:[0-9]+}", s.handleAllVideo).Methods(http.MethodGet)

	r.HandleFunc("/shikimori/catalog", s.handleCatalog).Methods(http.MethodPost)
	r.HandleFunc("/shikimori/calendar", s.handleCalendar).Methods(http.MethodGet)

	r.HandleFunc("/custom/random", s.handlePool(domain.PoolRandom)).Methods(http.MethodGet)
	r.HandleFunc("/custom/popular", s.handlePool(domain.PoolPopular)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version, "primary": "kodik"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, s.res.ResolveTitle(r.Context(), id))
}

func (s *Server) handleKodikSearch(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "缺少参数 title")
		return
	}
	writeJSON(w, http.StatusOK, s.res.SearchTranslations(r.Context(), title))
}

func (s *Server) handleKodikVideo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.res.KodikSources(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleAllVideo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.res.ResolveVideoSources(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.res.ResolveCalendar(r.Context()))
}

// handleCatalog 接受 JSON 过滤条件；请求体缺失或无法解析时按无过滤处理。
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var f domain.CatalogFilter
	if r.Body != nil {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&f); err != nil {
			s.log.Debug("catalog 请求体无效，使用默认过滤", "error", err)
			f = domain.CatalogFilter{}
		}
	}
	items, ok := s.res.Catalog(r.Context(), f)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Shikimori domains failed to respond"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handlePool(kind domain.PoolKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit 必须是正整数")
				return
			}
			limit = n
		}
		writeJSON(w, http.StatusOK, s.res.ResolvePool(r.Context(), kind, limit))
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimRight(r.Header.Get("Origin"), "/")
		if _, ok := s.origins[origin]; ok && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("请求完成", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(started))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
