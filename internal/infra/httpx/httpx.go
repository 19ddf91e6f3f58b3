package httpx

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// safetyTimeout 只兜底“忘记带 deadline 的 ctx”；单次尝试的超时由调用方的 ctx 控制。
const safetyTimeout = 60 * time.Second

// headerTimeout 是等待响应头的默认上限。
const headerTimeout = 15 * time.Second

// Options 描述一个上游家族的网络策略。
type Options struct {
	ProxyURL string

	// UserAgent 非空时固定使用该 UA（例如需要标识应用的 API）；为空则每请求从 UA 池随机选。
	UserAgent string

	// Accept 非空时作为缺省 Accept 头。
	Accept string

	// DisableKeepAlives=true 时每请求新连接（等价于发送 Connection: close）。
	DisableKeepAlives bool

	// MaxAttempt 是使用该 client 的最长单次尝试超时。
	// client 级兜底与等待响应头的上限都不会小于它，不会提前截断一次尝试。
	MaxAttempt time.Duration
}

// Transport 把“UA 策略 + 缺省请求头 + keep-alive 策略”固化为统一策略。
//
// 约束：
// - 不做重试：镜像切换由 provider 层按域名顺序完成，每个域名只尝试一次
// - 不修改调用方的 request（先 Clone）
type Transport struct {
	Base *http.Transport

	userAgent string
	accept    string

	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		if t.userAgent != "" {
			r.Header.Set("User-Agent", t.userAgent)
		} else {
			r.Header.Set("User-Agent", randomUA())
		}
	}
	if t.accept != "" && r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", t.accept)
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// NewUpstreamClient 构造访问某个上游家族的 HTTP client。
//
// 规则：
// - ProxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - UserAgent 为空：内置 UA 池，每个请求随机 UA
func NewUpstreamClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		DisableKeepAlives:     opts.DisableKeepAlives,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: max(headerTimeout, opts.MaxAttempt),
		MaxIdleConnsPerHost:   8,
	}

	disableKeepAlives := opts.DisableKeepAlives
	if proxyURL := strings.TrimSpace(opts.ProxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 缺少 scheme 或 host")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	tr := &Transport{
		Base:              base,
		userAgent:         strings.TrimSpace(opts.UserAgent),
		accept:            strings.TrimSpace(opts.Accept),
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   max(safetyTimeout, opts.MaxAttempt),
	}, nil
}

// browserUAs 是搜索类接口使用的浏览器 UA；每个请求随机挑一个。
var browserUAs = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

func randomUA() string { return browserUAs[rand.IntN(len(browserUAs))] }
