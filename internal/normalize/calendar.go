package normalize

import (
	"strings"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
)

// CalendarIDs 返回日历中全部条目的 id（去重，保持顺序）。
func CalendarIDs(items []shikimori.CalendarItem) []string {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.Anime.ID.String())
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// CalendarEntries 注入高清海报（按 id 匹配）并补全所有相对 URL。缺少 id 的条目被丢弃。
func (n Normalizer) CalendarEntries(items []shikimori.CalendarItem, posters map[string]string, servedBy string) []domain.CalendarEntry {
	out := make([]domain.CalendarEntry, 0, len(items))
	for _, it := range items {
		a := it.Anime
		id := strings.TrimSpace(a.ID.String())
		if id == "" {
			continue
		}
		original := a.Image.Original
		if p, ok := posters[id]; ok && strings.TrimSpace(p) != "" {
			original = p
		}
		e := domain.CalendarEntry{
			NextEpisode:   it.NextEpisode.V,
			NextEpisodeAt: strings.TrimSpace(it.NextEpisodeAt),
			Duration:      it.Duration.Ptr(),
			Anime: domain.CalendarAnime{
				ID:      id,
				Name:    CleanText(a.Name),
				Russian: CleanText(a.Russian),
				Image: domain.CalendarImage{
					Original: AbsoluteURL(original, servedBy, n.FallbackHost),
					Preview:  AbsoluteURL(a.Image.Preview, servedBy, n.FallbackHost),
				},
				URL:           AbsoluteURL(a.URL, servedBy, n.FallbackHost),
				Kind:          strings.TrimSpace(a.Kind),
				Score:         a.Score.String(),
				Status:        strings.TrimSpace(a.Status),
				Episodes:      a.Episodes.V,
				EpisodesAired: a.EpisodesAired.V,
			},
		}
		out = append(out, e)
	}
	return out
}
