package provider

import (
	"fmt"
	"strings"
)

// Registry 是视频源 provider 的只读注册表。
// 注册顺序就是结果拼接顺序。
type Registry struct {
	ordered []VideoSourceProvider
	byName  map[string]VideoSourceProvider
}

func NewRegistry(providers ...VideoSourceProvider) (Registry, error) {
	byName := make(map[string]VideoSourceProvider, len(providers))
	ordered := make([]VideoSourceProvider, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		byName[name] = p
		ordered = append(ordered, p)
	}
	return Registry{ordered: ordered, byName: byName}, nil
}

func (r Registry) Get(name string) (VideoSourceProvider, bool) {
	if r.byName == nil {
		return nil, false
	}
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// All 按注册顺序返回全部 provider。
func (r Registry) All() []VideoSourceProvider {
	return append([]VideoSourceProvider(nil), r.ordered...)
}
