package normalize

import (
	"net/url"
	"strings"
)

// DefaultPosterHost 是 servedBy 缺失时补全相对海报路径所用的域名。
const DefaultPosterHost = "shikimori.one"

// KnownPlayerHosts 是播放器链接可能使用的域名（含子域名）。
var KnownPlayerHosts = []string{"kodikapi.com", "kodik.info", "kodik.biz", "kodik.cc", "kodikdb.com"}

// DefaultPlayerHost 是播放器链接被改写到的首选域名。
const DefaultPlayerHost = "kodikapi.com"

// AbsoluteURL 把上游给出的 URL 变为绝对 https URL。
//
// - "" => ""
// - "//host/x" => "https://host/x"
// - "/x" 或 "x" => "https://<host>/x"（host 为空时用 fallback）
// - 已带 scheme 的保持不变
func AbsoluteURL(raw, host, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "") {
		return raw
	}
	h := strings.TrimSpace(host)
	if h == "" {
		h = strings.TrimSpace(fallback)
	}
	if h == "" {
		h = DefaultPosterHost
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return "https://" + h + raw
}

// FixScheme 只处理协议相对链接（"//x" => "https://x"）。
func FixScheme(link string) string {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}

// PlayerHosts 描述播放器链接的域名改写策略。
type PlayerHosts struct {
	Preferred string
	Known     []string
}

// DefaultPlayerHosts 返回内置策略。
func DefaultPlayerHosts() PlayerHosts {
	return PlayerHosts{Preferred: DefaultPlayerHost, Known: append([]string(nil), KnownPlayerHosts...)}
}

// Rewrite 修正协议并把已知播放器域名替换为首选域名；其它链接只修正协议。
func (p PlayerHosts) Rewrite(link string) string {
	link = FixScheme(link)
	if link == "" || strings.TrimSpace(p.Preferred) == "" {
		return link
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	host := strings.ToLower(u.Hostname())
	for _, k := range p.Known {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if host == k || strings.HasSuffix(host, "."+k) {
			u.Host = strings.TrimSpace(p.Preferred)
			return u.String()
		}
	}
	return link
}
