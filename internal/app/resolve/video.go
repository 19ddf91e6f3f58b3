package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mozillazg/go-unidecode"
	"github.com/sourcegraph/conc"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/merge"
	"github.com/kaiL163/nekostream/internal/normalize"
	"github.com/kaiL163/nekostream/internal/provider/anilibria"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
)

// ResolveVideoSources 汇总全部视频源 provider 的结果（按注册顺序拼接）。
// Found = 至少有一条视频源。
func (s *Service) ResolveVideoSources(ctx context.Context, id string) domain.VideoResult {
	started := time.Now()
	id = strings.TrimSpace(id)
	if id == "" {
		return merge.VideoSources(nil)
	}
	ref := s.titleRef(ctx, id)

	providers := s.videos.All()
	parts := make([]domain.VideoResult, len(providers))
	var wg conc.WaitGroup
	for i, p := range providers {
		wg.Go(func() { parts[i] = p.VideoSources(ctx, ref) })
	}
	wg.Wait()

	out := merge.VideoSources(parts)
	s.emit(Event{Op: "video", Key: id, State: videoState(out), Count: len(out.Sources), Took: time.Since(started)})
	return out
}

// KodikSources 只查询 Kodik 直链。
func (s *Service) KodikSources(ctx context.Context, id string) domain.VideoResult {
	started := time.Now()
	p, _ := s.videos.Get(domain.ProviderKodik)
	out := merge.VideoSources([]domain.VideoResult{p.VideoSources(ctx, domain.TitleRef{ShikimoriID: strings.TrimSpace(id)})})
	s.emit(Event{Op: "kodik_video", Key: id, State: videoState(out), Count: len(out.Sources), Took: time.Since(started)})
	return out
}

// titleRef 取视频源检索需要的名称/年份/类型：优先用已缓存的标题记录，否则查一次目录。
// 目录不可用时只返回 id（按 id 检索的 provider 仍可工作）。
func (s *Service) titleRef(ctx context.Context, id string) domain.TitleRef {
	if v, ok := s.titles.Get(id); ok && v.Found && v.Metadata != nil && v.Metadata.TitleOrig != "" {
		ref := normalize.RefFromTitle(*v.Metadata)
		ref.ShikimoriID = id
		return ref
	}
	r := s.shiki.AnimesByIDs(ctx, []string{id}, 1)
	if r.OK() {
		if a, ok := pickAnime(r.Payload, id); ok {
			ref := normalize.TitleRef(a)
			ref.ShikimoriID = id
			return ref
		}
	}
	return domain.TitleRef{ShikimoriID: id}
}

func videoState(r domain.VideoResult) string {
	if r.Found {
		return merge.StateDone.String()
	}
	return merge.StateFailed.String()
}

// libriaSource 按名称在 AniLibria 检索发布，再拉取详情。
type libriaSource struct {
	client *anilibria.Client
	log    hclog.Logger
}

func (p *libriaSource) Name() string { return domain.ProviderAniLibria }

func (p *libriaSource) VideoSources(ctx context.Context, ref domain.TitleRef) domain.VideoResult {
	empty := domain.VideoResult{Sources: []domain.VideoSource{}, Torrents: []domain.Torrent{}}
	if ref.Name == "" {
		// 没有原名（目录不可用）时无法可靠匹配。
		return empty
	}

	var (
		rel   anilibria.Release
		found bool
	)
	for _, q := range searchCandidates(ref) {
		r := p.client.SearchReleases(ctx, q)
		if !r.OK() {
			continue
		}
		if rel, found = normalize.MatchRelease(r.Payload, ref.Year, ref.Kind); found {
			break
		}
	}
	if !found {
		p.log.Debug("未找到匹配的发布", "id", ref.ShikimoriID, "name", ref.Name)
		return empty
	}

	d := p.client.Release(ctx, rel.ID.V)
	if !d.OK() {
		return empty
	}
	out := empty
	out.ReleaseID = rel.ID.V
	if src, ok := normalize.ReleaseSource(d.Payload, d.ServedBy); ok {
		out.Sources = append(out.Sources, src)
	}
	out.Torrents = normalize.Torrents(d.Payload)
	out.Found = len(out.Sources) > 0
	return out
}

// searchCandidates 依次返回：原名、本地化名、原名的 ASCII 转写（与原名不同时）。
func searchCandidates(ref domain.TitleRef) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		k := strings.ToLower(q)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, q)
	}
	add(ref.Name)
	add(ref.Russian)
	add(unidecode.Unidecode(ref.Name))
	return out
}

// kodikSource 按目录 id 查询 Kodik 直链。
type kodikSource struct {
	client *kodik.Client
	norm   normalize.Normalizer
}

func (p *kodikSource) Name() string { return domain.ProviderKodik }

func (p *kodikSource) VideoSources(ctx context.Context, ref domain.TitleRef) domain.VideoResult {
	out := domain.VideoResult{Sources: []domain.VideoSource{}, Torrents: []domain.Torrent{}}
	if ref.ShikimoriID == "" {
		return out
	}
	r := p.client.Links(ctx, ref.ShikimoriID)
	if !r.OK() {
		return out
	}
	out.Sources = p.norm.KodikSources(r.Payload)
	out.Found = len(out.Sources) > 0
	return out
}
