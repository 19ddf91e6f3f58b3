package normalize

import (
	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
)

// KodikSources 把 with_link 查询结果转换为视频源列表（按配音轨道去重，首次出现者胜出）。
func (n Normalizer) KodikSources(items []kodik.Item) []domain.VideoSource {
	out := make([]domain.VideoSource, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		key := translationKey(it)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		src := domain.VideoSource{
			Provider:         domain.ProviderKodik,
			TranslationID:    trackID(it),
			TranslationTitle: CleanText(it.Translation.Title),
			Links:            n.links(it.Links),
			HLS:              FixScheme(it.HLS.String()),
			Seasons:          []domain.Season{},
		}
		if player := n.Player.Rewrite(it.Link.String()); player != "" {
			src.Links["player"] = player
		}
		for _, s := range it.Seasons {
			season := domain.Season{Number: s.Number, Episodes: make([]domain.Episode, 0, len(s.Episodes))}
			for _, e := range s.Episodes {
				ep := domain.Episode{Number: e.Number, Links: n.links(e.Links), HLS: FixScheme(e.HLS)}
				if player := n.Player.Rewrite(e.Link); player != "" {
					ep.Links["player"] = player
				}
				season.Episodes = append(season.Episodes, ep)
			}
			src.Seasons = append(src.Seasons, season)
		}
		out = append(out, src)
	}
	return out
}

func (n Normalizer) links(in kodik.LinkSet) map[string]string {
	out := make(map[string]string, len(in))
	for q, u := range in {
		if u = FixScheme(u); u != "" {
			out[q] = u
		}
	}
	return out
}
