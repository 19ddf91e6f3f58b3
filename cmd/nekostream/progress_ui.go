package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kaiL163/nekostream/internal/app/resolve"
	"github.com/kaiL163/nekostream/internal/config"
)

var _ resolve.Observer = (*progressUI)(nil)

// progressUI 是单次命令在交互终端上的简洁过程输出。
//
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：resolve 层只发事件，CLI 决定如何展示
type progressUI struct {
	w io.Writer

	mu sync.Mutex
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, command string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] nekostream %s\n", time.Now().Format("15:04:05"), command)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", orDash(eff.ConfigPath))
	fmt.Fprintf(p.w, "  shikimori: %s (timeout %s)\n", strings.Join(eff.Shikimori.Mirrors, ", "), eff.Shikimori.Timeout)
	fmt.Fprintf(p.w, "  kodik: %s (timeout %s, token %s)\n", strings.Join(eff.Kodik.Mirrors, ", "), eff.Kodik.Timeout, onOff(eff.KodikToken != ""))
	fmt.Fprintf(p.w, "  anilibria: %s (timeout %s)\n", strings.Join(eff.AniLibria.Mirrors, ", "), eff.AniLibria.Timeout)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  state_dir: %s\n", orDash(eff.Cache.StateDir))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnResolved(ev resolve.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, formatEvent(ev))
}

// formatEvent 输出一行：<op> <key>: <state> [cache] count=<n> (<dur>)
func formatEvent(ev resolve.Event) string {
	var b strings.Builder
	b.WriteString(ev.Op)
	if k := strings.TrimSpace(ev.Key); k != "" {
		b.WriteString(" ")
		b.WriteString(truncate(k, 60))
	}
	b.WriteString(": ")
	b.WriteString(ev.State)
	if ev.FromCache {
		b.WriteString(" cache")
	}
	if ev.Count > 0 {
		fmt.Fprintf(&b, " count=%d", ev.Count)
	}
	fmt.Fprintf(&b, " (%s)", formatShortDuration(ev.Took))
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
