package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBody 限制单个响应体大小，防止异常上游把内存打满。
const maxBody = 16 << 20

// GetJSON 发送 GET 请求并把 2xx 响应体解码到 v。
//
// 错误分类：
// - 传输失败 / 非 2xx：StageFetch（非 2xx 包含 *StatusError）
// - 响应体不是合法 JSON：StageDecode
func GetJSON(ctx context.Context, c *http.Client, family, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetchErr(family, err)
	}
	return doJSON(c, req, family, v)
}

func doJSON(c *http.Client, req *http.Request, family string, v any) error {
	resp, err := c.Do(req)
	if err != nil {
		// *url.Error 带完整 URL；错误会进日志，先遮住凭据。
		var ue *url.Error
		if errors.As(err, &ue) {
			err = &url.Error{Op: ue.Op, URL: redactURL(req.URL), Err: ue.Err}
		}
		return fetchErr(family, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fetchErr(family, &StatusError{URL: redactURL(req.URL), StatusCode: resp.StatusCode})
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fetchErr(family, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return &Error{Family: family, Stage: StageDecode, Err: fmt.Errorf("%w（body 前缀：%q）", err, prefix(b, 64))}
	}
	return nil
}

// secretParams 是会出现在 query 里的凭据参数。
var secretParams = []string{"token"}

// redactURL 返回可以写进日志的 URL：凭据参数的值替换为 "***"。
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	changed := false
	for _, k := range secretParams {
		if q.Has(k) {
			q.Set(k, "***")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	r := *u
	r.RawQuery = q.Encode()
	return r.String()
}

func prefix(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}

// BaseURL 拼接 scheme://host；scheme 为空时使用 https。
func BaseURL(scheme, host string) string {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + host
}
