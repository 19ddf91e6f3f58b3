// Package anilibria 实现次级视频家族（v1 release API）的镜像查询。
package anilibria

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kaiL163/nekostream/internal/mirror"
	"github.com/kaiL163/nekostream/internal/provider"
)

const DefaultTimeout = 30 * time.Second

var family = string(mirror.FamilyAniLibria)

// ValueDesc 对应 {"value": "...", "description": "..."}；也接受纯字符串。
type ValueDesc struct {
	Value       string
	Description string
}

func (v *ValueDesc) UnmarshalJSON(b []byte) error {
	*v = ValueDesc{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		_ = json.Unmarshal(b, &s)
		v.Value = strings.TrimSpace(s)
		return nil
	}
	var w struct {
		Value       provider.FlexString `json:"value"`
		Description provider.FlexString `json:"description"`
	}
	if json.Unmarshal(b, &w) == nil {
		v.Value = w.Value.String()
		v.Description = w.Description.String()
	}
	return nil
}

type Name struct {
	Main    provider.FlexString `json:"main"`
	English provider.FlexString `json:"english"`
}

// Release 是检索结果中的一条发布记录。
type Release struct {
	ID    provider.FlexInt    `json:"id"`
	Year  provider.FlexInt    `json:"year"`
	Type  ValueDesc           `json:"type"`
	Name  Name                `json:"name"`
	Alias provider.FlexString `json:"alias"`
}

type Episode struct {
	Ordinal  provider.FlexInt    `json:"ordinal"`
	Name     provider.FlexString `json:"name"`
	Duration provider.FlexInt    `json:"duration"`
	HLS480   provider.FlexString `json:"hls_480"`
	HLS720   provider.FlexString `json:"hls_720"`
	HLS1080  provider.FlexString `json:"hls_1080"`
}

type Torrent struct {
	Label   provider.FlexString `json:"label"`
	Quality ValueDesc           `json:"quality"`
	Size    provider.FlexInt    `json:"size"`
	Magnet  provider.FlexString `json:"magnet"`
	Seeders provider.FlexInt    `json:"seeders"`
}

// ReleaseDetail 是单个发布的详情（含分集与种子）。
type ReleaseDetail struct {
	Release
	Episodes []Episode
	Torrents []Torrent
}

type detailWire struct {
	Release
	Episodes []json.RawMessage `json:"episodes"`
	Torrents []json.RawMessage `json:"torrents"`
}

type Options struct {
	Mirrors *mirror.Set
	HTTP    *http.Client
	Timeout time.Duration
	Scheme  string
	Log     hclog.Logger
}

type Client struct {
	exec   provider.Executor
	http   *http.Client
	scheme string
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
		scheme: opts.Scheme,
	}
}

func (c *Client) Mirrors() *mirror.Set { return c.exec.Mirrors }

// SearchReleases 按名称检索发布。2xx 空列表是合法回答（该名称无结果），不换镜像。
func (c *Client) SearchReleases(ctx context.Context, query string) provider.Result[[]Release] {
	query = strings.TrimSpace(query)
	if query == "" {
		return provider.Result[[]Release]{}
	}
	qs := url.Values{"f[search]": {query}}.Encode()
	return provider.Run(ctx, c.exec, func(ctx context.Context, host string) provider.AttemptResult[[]Release] {
		var raw json.RawMessage
		u := provider.BaseURL(c.scheme, host) + "/api/v1/anime/catalog/releases?" + qs
		if err := provider.GetJSON(ctx, c.http, family, u, &raw); err != nil {
			return provider.Hard[[]Release](err)
		}
		items, _ := provider.DecodeItems[Release](listItems(raw))
		return provider.OK(items)
	})
}

// Release 拉取发布详情。
func (c *Client) Release(ctx context.Context, id int) provider.Result[ReleaseDetail] {
	if id <= 0 {
		return provider.Result[ReleaseDetail]{}
	}
	path := "/api/v1/anime/releases/" + strconv.Itoa(id)
	return provider.Run(ctx, c.exec, func(ctx context.Context, host string) provider.AttemptResult[ReleaseDetail] {
		var w detailWire
		if err := provider.GetJSON(ctx, c.http, family, provider.BaseURL(c.scheme, host)+path, &w); err != nil {
			return provider.Hard[ReleaseDetail](err)
		}
		eps, _ := provider.DecodeItems[Episode](w.Episodes)
		ts, _ := provider.DecodeItems[Torrent](w.Torrents)
		return provider.OK(ReleaseDetail{Release: w.Release, Episodes: eps, Torrents: ts})
	})
}

// listItems 接受 {"data":[...]} 或顶层数组两种形状。
func listItems(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var arr []json.RawMessage
	if raw[0] == '[' {
		_ = json.Unmarshal(raw, &arr)
		return arr
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) != nil {
		return nil
	}
	_ = json.Unmarshal(env.Data, &arr)
	return arr
}
