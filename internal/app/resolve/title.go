package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/merge"
	"github.com/kaiL163/nekostream/internal/normalize"
	"github.com/kaiL163/nekostream/internal/provider"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
)

// ResolveTitle 返回合并后的标题记录；Found=false 表示所有上游都没有贡献数据。
//
// TTL 内重复调用直接返回缓存值，不产生上游请求。
// 全部失败的结果以短 TTL（negative）缓存。
func (s *Service) ResolveTitle(ctx context.Context, id string) domain.TitleResult {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.NotFound()
	}
	started := time.Now()
	if v, ok := s.titles.Get(id); ok {
		s.emit(Event{Op: "title", Key: id, State: titleState(v).String(), FromCache: true, Took: time.Since(started)})
		return v
	}

	// 同一 id 的并发未命中合并为一次上游解析；解析不随单个调用方取消。
	v, _, _ := s.group.Do("title:"+id, func() (any, error) {
		if v, ok := s.titles.Get(id); ok {
			return titleFetch{res: v, state: titleState(v)}, nil
		}
		return s.fetchTitle(context.WithoutCancel(ctx), id), nil
	})
	tf := v.(titleFetch)
	s.emit(Event{Op: "title", Key: id, State: tf.state.String(), Count: len(tf.res.Translations), Took: time.Since(started)})
	return tf.res
}

// titleFetch 是一次上游解析的结果与其生命周期的终态。
type titleFetch struct {
	res   domain.TitleResult
	state merge.State
}

func (s *Service) fetchTitle(ctx context.Context, id string) titleFetch {
	var run merge.Run
	step := func(next merge.State) {
		if err := run.To(next); err != nil {
			s.log.Error("状态迁移失败", "id", id, "error", err)
		}
	}
	step(merge.StateFetching)

	var (
		catalog provider.Result[[]shikimori.Anime]
		search  provider.Result[[]kodik.Item]
	)
	var wg conc.WaitGroup
	wg.Go(func() { catalog = s.shiki.AnimesByIDs(ctx, []string{id}, 1) })
	wg.Go(func() { search = s.kodik.ByShikimoriID(ctx, id) })
	wg.Wait()

	step(merge.StateMerging)
	f := merge.Fragments{ID: id}
	if catalog.OK() {
		if a, ok := pickAnime(catalog.Payload, id); ok {
			t := s.norm.CatalogTitle(a, catalog.ServedBy)
			f.Catalog = &t
		}
	}
	if search.OK() {
		f.SearchOK = true
		f.Search = s.norm.SearchTitle(search.Payload, search.ServedBy)
		f.Translations = s.norm.Translations(search.Payload)
	}

	res, final := merge.Title(f)
	step(final)

	ttl := s.titleTTL
	if !res.Found {
		ttl = s.negativeTTL
		s.log.Warn("标题解析失败：全部上游无数据", "id", id, "ttl", ttl)
	}
	s.titles.Set(id, res, ttl)
	return titleFetch{res: res, state: run.State()}
}

// SearchTranslations 按标题全文检索配音轨道（不缓存）。
func (s *Service) SearchTranslations(ctx context.Context, title string) domain.SearchResult {
	started := time.Now()
	out := domain.SearchResult{Results: []domain.Translation{}}
	title = strings.TrimSpace(title)
	if title == "" {
		return out
	}
	r := s.kodik.ByTitle(ctx, title)
	state := merge.StateFailed
	if r.OK() {
		state = merge.StateDone
		out.Results = s.norm.Translations(r.Payload)
		out.KinopoiskID = normalize.KinopoiskID(r.Payload)
		out.ShikimoriID = normalize.ShikimoriID(r.Payload)
	}
	s.emit(Event{Op: "search", Key: title, State: state.String(), Count: len(out.Results), Took: time.Since(started)})
	return out
}

// pickAnime 优先返回 id 完全一致的记录。
func pickAnime(list []shikimori.Anime, id string) (shikimori.Anime, bool) {
	for _, a := range list {
		if strings.TrimSpace(a.ID) == id {
			return a, true
		}
	}
	if len(list) > 0 && strings.TrimSpace(list[0].ID) != "" {
		return list[0], true
	}
	return shikimori.Anime{}, false
}

func titleState(r domain.TitleResult) merge.State {
	if r.Found {
		return merge.StateDone
	}
	return merge.StateFailed
}
