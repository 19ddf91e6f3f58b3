package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/merge"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
)

// ResolvePool 从轮换池中无放回地随机抽取 count 条。
//
// 规则：
// - 池未过期且条目数 >= count：只读缓存，零上游请求
// - 否则补货一次（并发请求合并为一次）；补货失败时退回过期池
// - count<=0 使用默认值 10，上限为池大小
func (s *Service) ResolvePool(ctx context.Context, kind domain.PoolKind, count int) []domain.Title {
	started := time.Now()
	if kind == "" {
		kind = domain.PoolRandom
	}
	if count <= 0 {
		count = DefaultPoolLimit
	}
	count = clampInt(count, 1, s.poolSize)
	key := string(kind)

	if items, ok := s.pools.Get(key); ok && len(items) >= count {
		out := s.sample(items, count)
		s.emit(Event{Op: "pool", Key: key, State: merge.StateDone.String(), FromCache: true, Count: len(out), Took: time.Since(started)})
		return out
	}

	v, _, _ := s.group.Do("pool:"+key, func() (any, error) {
		// 等待者拿到的是本次补货结果，不再触发第二次拉取。
		if items, ok := s.pools.Get(key); ok && len(items) >= count {
			return items, nil
		}
		return s.refillPool(context.WithoutCancel(ctx), kind), nil
	})
	items := v.([]domain.Title)

	state := merge.StateDone
	if len(items) == 0 {
		state = merge.StateFailed
	}
	out := s.sample(items, count)
	s.emit(Event{Op: "pool", Key: key, State: state.String(), Count: len(out), Took: time.Since(started)})
	return out
}

func (s *Service) refillPool(ctx context.Context, kind domain.PoolKind) []domain.Title {
	f := shikimori.Filter{Limit: s.poolSize}
	switch kind {
	case domain.PoolPopular:
		f.Order = "popularity"
		f.Status = "ongoing"
	default:
		f.Order = "ranked"
		f.Page = s.intn(s.poolPages) + 1
	}

	r := s.shiki.Animes(ctx, f)
	if r.OK() {
		if items := s.norm.CatalogTitles(r.Payload, r.ServedBy); len(items) > 0 {
			s.pools.Set(string(kind), items, s.poolTTL)
			if err := s.snapshotPool(); err != nil {
				s.log.Warn("池快照写入失败", "error", err)
			}
			s.log.Debug("池已补货", "kind", kind, "page", f.Page, "items", len(items), "served_by", r.ServedBy)
			return items
		}
	}

	stale, expiry, ok := s.pools.GetStale(string(kind))
	if ok && len(stale) > 0 {
		s.log.Warn("池补货失败，使用过期数据", "kind", kind, "expired_at", expiry, "items", len(stale))
		return stale
	}
	s.log.Warn("池补货失败且无可用缓存", "kind", kind)
	return nil
}

// Catalog 按过滤条件检索目录；ok=false 表示目录家族全部镜像失败。
//
// Strict 且 status=ongoing 时：拉取 2×limit 条，剔除 0 集已播出的条目后截断到 limit。
func (s *Service) Catalog(ctx context.Context, filter domain.CatalogFilter) ([]domain.Title, bool) {
	started := time.Now()
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultCatalogLimit
	}
	limit = clampInt(limit, 1, shikimori.MaxLimit)
	strict := filter.Strict && strings.EqualFold(strings.TrimSpace(filter.Status), "ongoing")

	fetch := limit
	if strict {
		fetch = clampInt(limit*2, 1, shikimori.MaxLimit)
	}
	r := s.shiki.Animes(ctx, shikimori.Filter{
		Limit:  fetch,
		Page:   filter.Page,
		Order:  filter.Order,
		Search: filter.Search,
		Status: filter.Status,
		Kind:   filter.Kind,
		Genre:  filter.Genre,
		Season: filter.Season,
	})
	if !r.OK() {
		s.emit(Event{Op: "catalog", State: merge.StateFailed.String(), Took: time.Since(started)})
		return []domain.Title{}, false
	}

	items := s.norm.CatalogTitles(r.Payload, r.ServedBy)
	if strict {
		kept := items[:0]
		for _, t := range items {
			if t.EpisodesAired == nil || *t.EpisodesAired == 0 {
				continue
			}
			kept = append(kept, t)
		}
		items = kept
		if len(items) > limit {
			items = items[:limit]
		}
	}
	s.emit(Event{Op: "catalog", State: merge.StateDone.String(), Count: len(items), Took: time.Since(started)})
	return items, true
}

// sample 无放回抽样；不修改输入切片。
func (s *Service) sample(items []domain.Title, n int) []domain.Title {
	if n > len(items) {
		n = len(items)
	}
	s.randMu.Lock()
	perm := s.rand.Perm(len(items))
	s.randMu.Unlock()

	out := make([]domain.Title, 0, n)
	for _, i := range perm[:n] {
		out = append(out, items[i])
	}
	return out
}

func (s *Service) intn(n int) int {
	if n <= 1 {
		return 0
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.IntN(n)
}
