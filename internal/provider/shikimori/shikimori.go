// Package shikimori 实现目录家族（GraphQL + REST 日历）的镜像查询。
package shikimori

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shurcooL/graphql"

	"github.com/kaiL163/nekostream/internal/mirror"
	"github.com/kaiL163/nekostream/internal/provider"
)

const (
	DefaultTimeout         = 2 * time.Second
	DefaultCalendarTimeout = 10 * time.Second
	// UserAgent 是目录 API 要求的应用标识。
	UserAgent = "NekoStream/2.0"
	// MaxLimit 是单次 GraphQL 查询允许的最大条数。
	MaxLimit = 50
)

var family = string(mirror.FamilyShikimori)

// GraphQL 变量类型名必须与服务端 schema 一致（shurcooL/graphql 用 Go 类型名生成变量声明）。
type (
	PositiveInt       int32
	OrderEnum         string
	AnimeStatusString string
	AnimeKindString   string
	SeasonString      string
)

// Poster 对应 poster { originalUrl }。
type Poster struct {
	OriginalURL string `graphql:"originalUrl"`
}

type Genre struct {
	Name string
}

type AiredOn struct {
	Year *int
}

// Anime 是 GraphQL animes 查询返回的单条记录；可空字段使用指针。
type Anime struct {
	ID            string
	Name          string
	Russian       *string
	Score         *float64
	Poster        *Poster
	Episodes      *int
	EpisodesAired *int
	Status        *string
	Kind          *string
	Description   *string
	Genres        []Genre
	AiredOn       *AiredOn
}

type animesByIDsQuery struct {
	Animes []Anime `graphql:"animes(ids: $ids, limit: $limit)"`
}

type animesQuery struct {
	Animes []Anime `graphql:"animes(limit: $limit, page: $page, order: $order, search: $search, status: $status, kind: $kind, genre: $genre, season: $season)"`
}

type posterOnly struct {
	ID     string
	Poster *Poster
}

type postersQuery struct {
	Animes []posterOnly `graphql:"animes(ids: $ids, limit: $limit)"`
}

// Options 构造 Client 所需的依赖。
type Options struct {
	Mirrors         *mirror.Set
	HTTP            *http.Client
	Timeout         time.Duration
	CalendarTimeout time.Duration
	// Scheme 默认 https；测试中可设为 http 以指向 httptest 服务。
	Scheme string
	Log    hclog.Logger
}

// Client 是目录家族的查询执行器。所有方法都不返回 error：失败体现为 Result.ServedBy 为空。
type Client struct {
	exec     provider.Executor
	calendar provider.Executor
	http     *http.Client
	scheme   string
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CalendarTimeout <= 0 {
		opts.CalendarTimeout = DefaultCalendarTimeout
	}
	if opts.HTTP == nil {
		opts.HTTP = http.DefaultClient
	}
	if opts.Log == nil {
		opts.Log = hclog.NewNullLogger()
	}
	return &Client{
		exec:     provider.Executor{Mirrors: opts.Mirrors, Timeout: opts.Timeout, Log: opts.Log},
		calendar: provider.Executor{Mirrors: opts.Mirrors, Timeout: opts.CalendarTimeout, Log: opts.Log},
		http:     opts.HTTP,
		scheme:   opts.Scheme,
	}
}

func (c *Client) Mirrors() *mirror.Set { return c.exec.Mirrors }

func (c *Client) graphqlClient(host string) *graphql.Client {
	return graphql.NewClient(provider.BaseURL(c.scheme, host)+"/api/graphql", c.http)
}

// AnimesByIDs 按 id 批量查询完整记录。空列表也是一个合法回答（id 不存在）。
func (c *Client) AnimesByIDs(ctx context.Context, ids []string, limit int) provider.Result[[]Anime] {
	joined := joinIDs(ids)
	if joined == "" {
		return provider.Result[[]Anime]{}
	}
	vars := map[string]any{
		"ids":   graphql.String(joined),
		"limit": PositiveInt(clampLimit(limit)),
	}
	return provider.Run(ctx, c.exec, func(ctx context.Context, host string) provider.AttemptResult[[]Anime] {
		var q animesByIDsQuery
		if err := c.graphqlClient(host).Query(ctx, &q, vars); err != nil {
			return provider.Hard[[]Anime](&provider.Error{Family: family, Stage: provider.StageFetch, Err: err})
		}
		return provider.OK(q.Animes)
	})
}

// Filter 是目录检索参数；零值字段会以 null 发送（服务端视为不过滤）。
type Filter struct {
	Limit  int
	Page   int
	Order  string
	Search string
	Status string
	Kind   string
	Genre  string
	Season string
}

// Animes 按过滤条件检索目录列表。
func (c *Client) Animes(ctx context.Context, f Filter) provider.Result[[]Anime] {
	page := f.Page
	if page < 1 {
		page = 1
	}
	order := strings.TrimSpace(f.Order)
	if order == "" {
		order = "ranked"
	}
	vars := map[string]any{
		"limit":  PositiveInt(clampLimit(f.Limit)),
		"page":   PositiveInt(page),
		"order":  OrderEnum(order),
		"search": optional[graphql.String](f.Search),
		"status": optional[AnimeStatusString](f.Status),
		"kind":   optional[AnimeKindString](f.Kind),
		"genre":  optional[graphql.String](f.Genre),
		"season": optional[SeasonString](f.Season),
	}
	return provider.Run(ctx, c.exec, func(ctx context.Context, host string) provider.AttemptResult[[]Anime] {
		var q animesQuery
		if err := c.graphqlClient(host).Query(ctx, &q, vars); err != nil {
			return provider.Hard[[]Anime](&provider.Error{Family: family, Stage: provider.StageFetch, Err: err})
		}
		return provider.OK(q.Animes)
	})
}

// Posters 查询一批 id 的原始海报地址（值可能是相对路径）。
func (c *Client) Posters(ctx context.Context, ids []string) provider.Result[map[string]string] {
	joined := joinIDs(ids)
	if joined == "" {
		return provider.Result[map[string]string]{}
	}
	vars := map[string]any{
		"ids":   graphql.String(joined),
		"limit": PositiveInt(MaxLimit),
	}
	return provider.Run(ctx, c.exec, func(ctx context.Context, host string) provider.AttemptResult[map[string]string] {
		var q postersQuery
		if err := c.graphqlClient(host).Query(ctx, &q, vars); err != nil {
			return provider.Hard[map[string]string](&provider.Error{Family: family, Stage: provider.StageFetch, Err: err})
		}
		out := make(map[string]string, len(q.Animes))
		for _, a := range q.Animes {
			if a.Poster != nil && strings.TrimSpace(a.Poster.OriginalURL) != "" {
				out[a.ID] = a.Poster.OriginalURL
			}
		}
		return provider.OK(out)
	})
}

// CalendarItem 是 /api/calendar 的单条记录。
type CalendarItem struct {
	NextEpisode   provider.FlexInt `json:"next_episode"`
	NextEpisodeAt string           `json:"next_episode_at"`
	Duration      provider.FlexInt `json:"duration"`
	Anime         CalendarAnime    `json:"anime"`
}

type CalendarAnime struct {
	ID      provider.FlexString `json:"id"`
	Name    string              `json:"name"`
	Russian string              `json:"russian"`
	Image   struct {
		Original string `json:"original"`
		Preview  string `json:"preview"`
	} `json:"image"`
	URL           string              `json:"url"`
	Kind          string              `json:"kind"`
	Score         provider.FlexString `json:"score"`
	Status        string              `json:"status"`
	Episodes      provider.FlexInt    `json:"episodes"`
	EpisodesAired provider.FlexInt    `json:"episodes_aired"`
}

// Calendar 拉取放送日历。响应必须是 JSON 数组；无法解码的单条记录被跳过。
func (c *Client) Calendar(ctx context.Context) provider.Result[[]CalendarItem] {
	return provider.Run(ctx, c.calendar, func(ctx context.Context, host string) provider.AttemptResult[[]CalendarItem] {
		var raw []json.RawMessage
		if err := provider.GetJSON(ctx, c.http, family, provider.BaseURL(c.scheme, host)+"/api/calendar", &raw); err != nil {
			return provider.Hard[[]CalendarItem](err)
		}
		items, _ := provider.DecodeItems[CalendarItem](raw)
		return provider.OK(items)
	})
}

func optional[T ~string](s string) *T {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v := T(s)
	return &v
}

func joinIDs(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || strings.Contains(id, ",") {
			continue
		}
		out = append(out, id)
	}
	return strings.Join(out, ",")
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
