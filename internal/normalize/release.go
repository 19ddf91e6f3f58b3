package normalize

import (
	"sort"
	"strings"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/provider/anilibria"
)

// AniLibriaTranslationTitle 是次级视频源在结果中展示的配音组名称。
const AniLibriaTranslationTitle = "AniLibria"

// KindClass 把不同上游的类型值归到可比较的类别。
// 空串表示未知。
func KindClass(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "":
		return ""
	case "movie":
		return "movie"
	case "tv", "tv_13", "tv_24", "tv_48":
		return "tv"
	case "ova", "ona", "special", "tv_special", "web":
		return "extra"
	default:
		return k
	}
}

func kindMatches(a, b string) bool {
	ca, cb := KindClass(a), KindClass(b)
	return ca == "" || cb == "" || ca == cb
}

func yearMatches(releaseYear, wantYear int) bool {
	if releaseYear <= 0 || wantYear <= 0 {
		return true
	}
	d := releaseYear - wantYear
	return d >= -1 && d <= 1
}

// MatchRelease 按上游顺序返回第一条“年份 ±1 且类型类别一致”的发布。
// 任一侧年份或类型未知时该条件视为满足。
func MatchRelease(releases []anilibria.Release, year int, kind string) (anilibria.Release, bool) {
	for _, r := range releases {
		if r.ID.V <= 0 {
			continue
		}
		ry := 0
		if r.Year.Valid {
			ry = r.Year.V
		}
		if !yearMatches(ry, year) {
			continue
		}
		if !kindMatches(r.Type.Value, kind) {
			continue
		}
		return r, true
	}
	return anilibria.Release{}, false
}

// ReleaseSource 把发布详情转换为一条视频源；没有可播放分集时返回 false。
// 相对 HLS 路径用 servedBy 补全。
func ReleaseSource(d anilibria.ReleaseDetail, servedBy string) (domain.VideoSource, bool) {
	eps := make([]domain.Episode, 0, len(d.Episodes))
	for i, e := range d.Episodes {
		links := map[string]string{}
		for q, raw := range map[string]string{
			"480":  e.HLS480.String(),
			"720":  e.HLS720.String(),
			"1080": e.HLS1080.String(),
		} {
			if u := AbsoluteURL(raw, servedBy, servedBy); u != "" {
				links[q] = u
			}
		}
		if len(links) == 0 {
			continue
		}
		num := i + 1
		if e.Ordinal.Valid && e.Ordinal.V > 0 {
			num = e.Ordinal.V
		}
		ep := domain.Episode{
			Number:   num,
			Name:     CleanText(e.Name.String()),
			Links:    links,
			HLS:      bestQuality(links),
			Duration: e.Duration.V,
		}
		eps = append(eps, ep)
	}
	if len(eps) == 0 {
		return domain.VideoSource{}, false
	}
	sort.SliceStable(eps, func(i, j int) bool { return eps[i].Number < eps[j].Number })
	return domain.VideoSource{
		Provider:         domain.ProviderAniLibria,
		TranslationID:    domain.ProviderAniLibria,
		TranslationTitle: AniLibriaTranslationTitle,
		Links:            map[string]string{},
		Seasons:          []domain.Season{{Number: 1, Episodes: eps}},
	}, true
}

// Torrents 转换种子列表；没有 magnet 的条目被丢弃。
func Torrents(d anilibria.ReleaseDetail) []domain.Torrent {
	out := make([]domain.Torrent, 0, len(d.Torrents))
	for _, t := range d.Torrents {
		magnet := strings.TrimSpace(t.Magnet.String())
		if magnet == "" {
			continue
		}
		out = append(out, domain.Torrent{
			Label:   CleanText(t.Label.String()),
			Quality: firstNonEmpty(t.Quality.Description, t.Quality.Value),
			Size:    int64(t.Size.V),
			Magnet:  magnet,
			Seeders: t.Seeders.V,
		})
	}
	return out
}

func bestQuality(links map[string]string) string {
	for _, q := range []string{"1080", "720", "480"} {
		if u, ok := links[q]; ok {
			return u
		}
	}
	return ""
}
