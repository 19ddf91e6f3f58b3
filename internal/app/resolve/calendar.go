package resolve

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/merge"
	"github.com/kaiL163/nekostream/internal/normalize"
)

const calendarKey = "calendar"

// ResolveCalendar 返回放送日历，并用目录 GraphQL 的高清海报替换日历自带的缩略图。
//
// 海报按 batch（默认 50 个 id）并行查询，结果按 id 回填，与到达顺序无关。
// 单个 batch 失败只影响该 batch（保留日历自带图片）。
func (s *Service) ResolveCalendar(ctx context.Context) []domain.CalendarEntry {
	started := time.Now()
	if v, ok := s.calendar.Get(calendarKey); ok {
		s.emit(Event{Op: "calendar", State: listState(len(v)), FromCache: true, Count: len(v), Took: time.Since(started)})
		return v
	}
	v, _, _ := s.group.Do(calendarKey, func() (any, error) {
		if v, ok := s.calendar.Get(calendarKey); ok {
			return v, nil
		}
		return s.fetchCalendar(context.WithoutCancel(ctx)), nil
	})
	out := v.([]domain.CalendarEntry)
	s.emit(Event{Op: "calendar", State: listState(len(out)), Count: len(out), Took: time.Since(started)})
	return out
}

func (s *Service) fetchCalendar(ctx context.Context) []domain.CalendarEntry {
	r := s.shiki.Calendar(ctx)
	if !r.OK() || len(r.Payload) == 0 {
		s.log.Warn("日历拉取失败或为空", "ttl", s.negativeTTL)
		out := []domain.CalendarEntry{}
		s.calendar.Set(calendarKey, out, s.negativeTTL)
		return out
	}

	ids := normalize.CalendarIDs(r.Payload)
	batches := chunk(ids, s.calendarBatch)
	found := make([]map[string]string, len(batches))

	p := pool.New().WithMaxGoroutines(s.calendarWorkers)
	for i, b := range batches {
		p.Go(func() {
			pr := s.shiki.Posters(ctx, b)
			if !pr.OK() {
				return
			}
			// 相对海报路径按返回该 batch 的镜像补全，而不是日历的镜像。
			m := make(map[string]string, len(pr.Payload))
			for id, u := range pr.Payload {
				m[id] = normalize.AbsoluteURL(u, pr.ServedBy, s.norm.FallbackHost)
			}
			found[i] = m
		})
	}
	p.Wait()

	posters := make(map[string]string, len(ids))
	for _, m := range found {
		for id, u := range m {
			posters[id] = u
		}
	}

	out := s.norm.CalendarEntries(r.Payload, posters, r.ServedBy)
	s.calendar.Set(calendarKey, out, s.calendarTTL)
	s.log.Debug("日历已刷新", "entries", len(out), "posters", len(posters), "batches", len(batches))
	return out
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

func listState(n int) string {
	if n > 0 {
		return merge.StateDone.String()
	}
	return merge.StateFailed.String()
}
