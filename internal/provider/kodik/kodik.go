// Package kodik 实现搜索家族（/search JSON API）的镜像查询。
package kodik

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kaiL163/nekostream/internal/mirror"
	"github.com/kaiL163/nekostream/internal/provider"
)

const (
	DefaultTimeout = 30 * time.Second
	MaxResults     = 50
)

var family = string(mirror.FamilyKodik)

type Options struct {
	Mirrors *mirror.Set
	HTTP    *http.Client
	// Token 是 API 访问令牌（作为 query 参数 token 发送）。
	Token   string
	Timeout time.Duration
	Scheme  string
	Log     hclog.Logger
}

// Client 是搜索家族的查询执行器。
//
// 约束：
// - 只有“2xx 且至少一条可解码结果”才算成功；2xx 空结果是软失败（换镜像）
// - 单条结果解码失败只跳过该条
type Client struct {
	exec   provider.Executor
	http   *http.Client
	token  string
	scheme string
	log    hclog.Logger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTP == nil {
		opts.HTTP = http.DefaultClient
	}
	if opts.Log == nil {
		opts.Log = hclog.NewNullLogger()
	}
	return &Client{
		exec:   provider.Executor{Mirrors: opts.Mirrors, Timeout: opts.Timeout, Log: opts.Log},
		http:   opts.HTTP,
		token:  strings.TrimSpace(opts.Token),
		scheme: opts.Scheme,
		log:    opts.Log,
	}
}

func (c *Client) Mirrors() *mirror.Set { return c.exec.Mirrors }

type searchResponse struct {
	Error   string            `json:"error"`
	Total   provider.FlexInt  `json:"total"`
	Results []json.RawMessage `json:"results"`
}

// Search 以任意参数调用 /search；token 总是由 Client 注入。
func (c *Client) Search(ctx context.Context, params url.Values) provider.Result[[]Item] {
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("token", c.token)
	query := q.Encode()

	return provider.Run(ctx, c.exec, func(ctx context.Context, host string) provider.AttemptResult[[]Item] {
		var sr searchResponse
		if err := provider.GetJSON(ctx, c.http, family, provider.BaseURL(c.scheme, host)+"/search?"+query, &sr); err != nil {
			return provider.Hard[[]Item](err)
		}
		if msg := strings.TrimSpace(sr.Error); msg != "" {
			return provider.Hard[[]Item](&provider.Error{Family: family, Stage: provider.StageFetch, Err: errors.New(msg)})
		}
		items, skipped := provider.DecodeItems[Item](sr.Results)
		if skipped > 0 {
			c.log.Debug("跳过无法解码的结果", "host", host, "skipped", skipped)
		}
		if len(items) == 0 {
			return provider.Soft[[]Item](&provider.Error{Family: family, Stage: provider.StageEmpty, Err: provider.ErrEmpty})
		}
		return provider.OK(items)
	})
}

// ByShikimoriID 查询某个目录 id 下的全部配音素材（含 material_data）。
func (c *Client) ByShikimoriID(ctx context.Context, id string) provider.Result[[]Item] {
	return c.Search(ctx, url.Values{
		"shikimori_id":       {strings.TrimSpace(id)},
		"with_material_data": {"true"},
		"with_episodes":      {"true"},
		"limit":              {strconv.Itoa(MaxResults)},
	})
}

// ByTitle 按标题全文检索动画素材。
func (c *Client) ByTitle(ctx context.Context, title string) provider.Result[[]Item] {
	return c.Search(ctx, url.Values{
		"title":              {strings.TrimSpace(title)},
		"types":              {"anime,anime-serial"},
		"with_material_data": {"true"},
		"limit":              {strconv.Itoa(MaxResults)},
	})
}

// Links 查询带直链与分集信息的素材列表。
func (c *Client) Links(ctx context.Context, id string) provider.Result[[]Item] {
	return c.Search(ctx, url.Values{
		"shikimori_id":  {strings.TrimSpace(id)},
		"with_link":     {"true"},
		"with_episodes": {"true"},
		"limit":         {strconv.Itoa(MaxResults)},
	})
}
