// Package mirror 维护每个上游家族的镜像域名列表与“粘性”首选域名。
package mirror

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Family 标识一组可互换的上游镜像。
type Family string

const (
	FamilyShikimori Family = "shikimori"
	FamilyKodik     Family = "kodik"
	FamilyAniLibria Family = "anilibria"
)

var defaults = map[Family][]string{
	FamilyShikimori: {"shikimori.io", "shikimori.one", "shikimori.me"},
	FamilyKodik:     {"kodikapi.com", "kodik-api.com", "kodikas.biz", "kodiapi.com"},
	FamilyAniLibria: {"aniliberty.top", "anilibria.top"},
}

// Defaults 返回某个家族的内置镜像列表（副本）。
func Defaults(f Family) []string {
	return append([]string(nil), defaults[f]...)
}

// Set 是一个家族的镜像集合。
//
// 约束：
// - candidates 在构造后不可变
// - sticky 始终属于 candidates；只有成功的查询才会改变它
// - 并发成功时“最后写入者胜出”，不做额外协调
type Set struct {
	family     Family
	candidates []string
	index      map[string]struct{}
	sticky     atomic.Pointer[string]
}

// New 以 candidates[0] 作为初始 sticky 构造 Set。
// 域名会被 trim + 小写化并去重；清洗后为空则报错。
func New(family Family, candidates []string) (*Set, error) {
	cleaned := make([]string, 0, len(candidates))
	index := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		h := cleanHost(c)
		if h == "" {
			continue
		}
		if _, dup := index[h]; dup {
			continue
		}
		index[h] = struct{}{}
		cleaned = append(cleaned, h)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("mirror %s：候选域名不能为空", family)
	}
	s := &Set{family: family, candidates: cleaned, index: index}
	first := cleaned[0]
	s.sticky.Store(&first)
	return s, nil
}

func (s *Set) Family() Family { return s.family }

// Candidates 返回候选列表副本。
func (s *Set) Candidates() []string {
	return append([]string(nil), s.candidates...)
}

func (s *Set) Sticky() string {
	return *s.sticky.Load()
}

// Order 返回本次请求的尝试顺序：[sticky] + (candidates − sticky)，其余保持原相对顺序。
func (s *Set) Order() []string {
	sticky := s.Sticky()
	out := make([]string, 0, len(s.candidates))
	out = append(out, sticky)
	for _, c := range s.candidates {
		if c != sticky {
			out = append(out, c)
		}
	}
	return out
}

// MarkSuccess 把 host 设为新的 sticky。
// host 不在候选列表中时忽略并返回 false。
func (s *Set) MarkSuccess(host string) bool {
	h := cleanHost(host)
	if _, ok := s.index[h]; !ok {
		return false
	}
	if s.Sticky() == h {
		return false
	}
	s.sticky.Store(&h)
	return true
}

func cleanHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	return strings.TrimRight(h, "/")
}
