package normalize

import (
	"strings"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
)

// Normalizer 携带与部署相关的两项策略：相对海报的兜底域名、播放器域名改写。
type Normalizer struct {
	FallbackHost string
	Player       PlayerHosts
}

func New(fallbackHost, preferredPlayer string) Normalizer {
	p := DefaultPlayerHosts()
	if s := strings.TrimSpace(preferredPlayer); s != "" {
		p.Preferred = s
	}
	if strings.TrimSpace(fallbackHost) == "" {
		fallbackHost = DefaultPosterHost
	}
	return Normalizer{FallbackHost: strings.TrimSpace(fallbackHost), Player: p}
}

// CatalogTitle 把一条目录记录转换为 Title 片段。servedBy 用于补全相对海报路径。
func (n Normalizer) CatalogTitle(a shikimori.Anime, servedBy string) domain.Title {
	t := domain.Title{
		ShikimoriID: strings.TrimSpace(a.ID),
		TitleOrig:   CleanText(a.Name),
		Kind:        strings.TrimSpace(deref(a.Kind)),
		Status:      strings.TrimSpace(deref(a.Status)),
		Description: StripMarkup(deref(a.Description)),
		Genres:      genreNames(a.Genres),
	}
	t.Title = CleanText(deref(a.Russian))
	if t.Title == "" {
		t.Title = t.TitleOrig
	}
	if a.AiredOn != nil && a.AiredOn.Year != nil && *a.AiredOn.Year > 0 {
		t.Year = domain.IntPtr(*a.AiredOn.Year)
	}
	if a.Episodes != nil && *a.Episodes >= 0 {
		t.EpisodesTotal = domain.IntPtr(*a.Episodes)
	}
	if a.EpisodesAired != nil && *a.EpisodesAired >= 0 {
		t.EpisodesAired = domain.IntPtr(*a.EpisodesAired)
	}
	if a.Poster != nil {
		t.Poster = AbsoluteURL(a.Poster.OriginalURL, servedBy, n.FallbackHost)
	}
	if a.Score != nil && *a.Score > 0 {
		s := *a.Score
		t.Rating = &s
	}
	return t
}

// CatalogTitles 批量转换；缺少 id 的记录被丢弃。
func (n Normalizer) CatalogTitles(list []shikimori.Anime, servedBy string) []domain.Title {
	out := make([]domain.Title, 0, len(list))
	for _, a := range list {
		if strings.TrimSpace(a.ID) == "" {
			continue
		}
		out = append(out, n.CatalogTitle(a, servedBy))
	}
	return out
}

// TitleRef 从目录记录提取视频源检索所需的标识。
func TitleRef(a shikimori.Anime) domain.TitleRef {
	ref := domain.TitleRef{
		ShikimoriID: strings.TrimSpace(a.ID),
		Name:        CleanText(a.Name),
		Russian:     CleanText(deref(a.Russian)),
		Kind:        strings.TrimSpace(deref(a.Kind)),
	}
	if a.AiredOn != nil && a.AiredOn.Year != nil {
		ref.Year = *a.AiredOn.Year
	}
	return ref
}

// RefFromTitle 从已合并的 Title 构造检索标识（用于命中缓存时避免再查目录）。
func RefFromTitle(t domain.Title) domain.TitleRef {
	ref := domain.TitleRef{ShikimoriID: t.ShikimoriID, Name: t.TitleOrig, Russian: t.Title, Kind: t.Kind}
	if t.Year != nil {
		ref.Year = *t.Year
	}
	if ref.Russian == ref.Name {
		ref.Russian = ""
	}
	return ref
}

// Translations 把搜索结果转换为去重后的配音轨道列表。
//
// 去重 key：translation.id；缺失时用 translation.title；两者都缺失时用链接。首次出现者胜出。
func (n Normalizer) Translations(items []kodik.Item) []domain.Translation {
	out := make([]domain.Translation, 0, len(items))
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
		out = append(out, domain.Translation{
			ID:            trackID(it),
			Title:         CleanText(it.Translation.Title),
			Type:          trackType(it),
			Link:          n.Player.Rewrite(it.Link.String()),
			EpisodesCount: episodeCount(it),
		})
	}
	return out
}

// SearchTitle 从搜索结果的 material_data 提取次级元数据片段；items 为空时返回 nil。
func (n Normalizer) SearchTitle(items []kodik.Item, servedBy string) *domain.Title {
	if len(items) == 0 {
		return nil
	}
	first := items[0]
	for _, it := range items {
		if it.MaterialData != nil {
			first = it
			break
		}
	}

	t := &domain.Title{
		ShikimoriID: first.ShikimoriID.String(),
		KinopoiskID: KinopoiskID(items),
		Title:       CleanText(first.Title),
		TitleOrig:   CleanText(first.TitleOrig),
		Year:        first.Year.Ptr(),
	}
	md := first.MaterialData
	if md == nil {
		return t
	}
	if s := CleanText(firstNonEmpty(md.AnimeTitle, md.Title)); s != "" {
		t.Title = s
	}
	if t.TitleOrig == "" {
		t.TitleOrig = CleanText(md.TitleEn)
	}
	if md.Year.Valid && md.Year.V > 0 {
		t.Year = md.Year.Ptr()
	}
	t.Kind = strings.TrimSpace(md.AnimeKind)
	t.Status = strings.TrimSpace(md.AnimeStatus)
	t.EpisodesTotal = md.EpisodesTotal.Ptr()
	t.EpisodesAired = md.EpisodesAired.Ptr()
	t.Poster = AbsoluteURL(firstNonEmpty(md.PosterURL.String(), md.AnimePosterURL.String()), servedBy, n.FallbackHost)
	t.Description = StripMarkup(firstNonEmpty(md.AnimeDescription, md.Description))
	t.Genres = UniqueStrings(append(append([]string(nil), md.AnimeGenres...), md.Genres...))
	if md.ShikimoriRating.Valid && md.ShikimoriRating.V > 0 {
		t.Rating = md.ShikimoriRating.Ptr()
	}
	return t
}

// KinopoiskID 返回第一条带 kinopoisk_id 的结果的值。
func KinopoiskID(items []kodik.Item) string {
	for _, it := range items {
		if s := it.KinopoiskID.String(); s != "" {
			return s
		}
	}
	return ""
}

// ShikimoriID 返回第一条带 shikimori_id 的结果的值。
func ShikimoriID(items []kodik.Item) string {
	for _, it := range items {
		if s := it.ShikimoriID.String(); s != "" {
			return s
		}
	}
	return ""
}

// trackID 是对外的轨道 id：translation.id，缺失时退回去重用的标题或链接。
func trackID(it kodik.Item) string {
	_, v, _ := strings.Cut(translationKey(it), ":")
	return v
}

// trackType 缺省为 voice。
func trackType(it kodik.Item) string {
	if t := strings.TrimSpace(it.Translation.Type); t != "" {
		return t
	}
	return "voice"
}

func translationKey(it kodik.Item) string {
	if id := it.Translation.ID.String(); id != "" {
		return "id:" + id
	}
	if t := CleanText(it.Translation.Title); t != "" {
		return "title:" + t
	}
	if l := strings.TrimSpace(it.Link.String()); l != "" {
		return "link:" + l
	}
	return ""
}

// episodeCount：episodes_count → last_episode → 1。
func episodeCount(it kodik.Item) int {
	if it.EpisodesCount.Valid && it.EpisodesCount.V > 0 {
		return it.EpisodesCount.V
	}
	if it.LastEpisode.Valid && it.LastEpisode.V > 0 {
		return it.LastEpisode.V
	}
	return 1
}

func genreNames(gs []shikimori.Genre) []string {
	names := make([]string, 0, len(gs))
	for _, g := range gs {
		names = append(names, g.Name)
	}
	return UniqueStrings(names)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
