package kodik

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/kaiL163/nekostream/internal/provider"
)

// Item 是 /search 返回的一条结果（某个配音组的一个素材）。
type Item struct {
	ID            provider.FlexString `json:"id"`
	Type          string              `json:"type"`
	Link          provider.FlexString `json:"link"`
	Title         string              `json:"title"`
	TitleOrig     string              `json:"title_orig"`
	Year          provider.FlexInt    `json:"year"`
	LastSeason    provider.FlexInt    `json:"last_season"`
	LastEpisode   provider.FlexInt    `json:"last_episode"`
	EpisodesCount provider.FlexInt    `json:"episodes_count"`
	KinopoiskID   provider.FlexString `json:"kinopoisk_id"`
	ShikimoriID   provider.FlexString `json:"shikimori_id"`
	Quality       string              `json:"quality"`
	Translation   Translation         `json:"translation"`
	MaterialData  *MaterialData       `json:"material_data"`

	// 仅 with_link=true 时出现。
	Links   LinkSet             `json:"links"`
	HLS     provider.FlexString `json:"hls"`
	Seasons Seasons             `json:"seasons"`
}

type Translation struct {
	ID    provider.FlexString `json:"id"`
	Title string              `json:"title"`
	Type  string              `json:"type"`
}

// MaterialData 是 with_material_data=true 时附带的元数据（质量参差，只作次级来源）。
type MaterialData struct {
	Title            string               `json:"title"`
	AnimeTitle       string               `json:"anime_title"`
	TitleEn          string               `json:"title_en"`
	PosterURL        provider.FlexString  `json:"poster_url"`
	AnimePosterURL   provider.FlexString  `json:"anime_poster_url"`
	Description      string               `json:"description"`
	AnimeDescription string               `json:"anime_description"`
	Genres           provider.FlexStrings `json:"genres"`
	AnimeGenres      provider.FlexStrings `json:"anime_genres"`
	ShikimoriRating  provider.FlexFloat   `json:"shikimori_rating"`
	AnimeKind        string               `json:"anime_kind"`
	AnimeStatus      string               `json:"anime_status"`
	EpisodesTotal    provider.FlexInt     `json:"episodes_total"`
	EpisodesAired    provider.FlexInt     `json:"episodes_aired"`
	Year             provider.FlexInt     `json:"year"`
}

// LinkSet 是 画质 -> URL 的映射。
// 值可以是字符串，也可以是带 src/url/link 字段的对象或对象数组。
type LinkSet map[string]string

func (l *LinkSet) UnmarshalJSON(b []byte) error {
	*l = nil
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	out := LinkSet{}
	for k, r := range m {
		if u := linkText(r); u != "" {
			out[k] = u
		}
	}
	if len(out) > 0 {
		*l = out
	}
	return nil
}

func linkText(r json.RawMessage) string {
	r = bytes.TrimSpace(r)
	if len(r) == 0 {
		return ""
	}
	switch r[0] {
	case '"':
		var s string
		_ = json.Unmarshal(r, &s)
		return strings.TrimSpace(s)
	case '{':
		var o map[string]json.RawMessage
		if json.Unmarshal(r, &o) != nil {
			return ""
		}
		for _, k := range []string{"src", "Src", "url", "link"} {
			if v, ok := o[k]; ok {
				if s := linkText(v); s != "" {
					return s
				}
			}
		}
	case '[':
		var arr []json.RawMessage
		if json.Unmarshal(r, &arr) != nil {
			return ""
		}
		for _, v := range arr {
			if s := linkText(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Season 是解码后的季信息；上游有时给数组、有时给以季号为 key 的对象。
type Season struct {
	Number   int
	Link     string
	Episodes []Episode
}

type Episode struct {
	Number int
	Link   string
	Links  LinkSet
	HLS    string
}

type Seasons []Season

type seasonWire struct {
	SeasonNumber provider.FlexInt    `json:"season_number"`
	Season       provider.FlexInt    `json:"season"`
	Link         provider.FlexString `json:"link"`
	Episodes     json.RawMessage     `json:"episodes"`
}

type episodeWire struct {
	EpisodeNumber provider.FlexInt    `json:"episode_number"`
	Episode       provider.FlexInt    `json:"episode"`
	Link          provider.FlexString `json:"link"`
	Links         LinkSet             `json:"links"`
	HLS           provider.FlexString `json:"hls"`
}

func (s *Seasons) UnmarshalJSON(b []byte) error {
	*s = nil
	forEachEntry(b, func(key int, r json.RawMessage) {
		var w seasonWire
		if json.Unmarshal(r, &w) != nil {
			return
		}
		n := key
		switch {
		case w.SeasonNumber.Valid:
			n = w.SeasonNumber.V
		case w.Season.Valid:
			n = w.Season.V
		}
		*s = append(*s, Season{Number: n, Link: w.Link.String(), Episodes: decodeEpisodes(w.Episodes)})
	})
	sort.SliceStable(*s, func(i, j int) bool { return (*s)[i].Number < (*s)[j].Number })
	return nil
}

func decodeEpisodes(b json.RawMessage) []Episode {
	var out []Episode
	forEachEntry(b, func(key int, r json.RawMessage) {
		if u := linkText(r); u != "" && bytes.TrimSpace(r)[0] == '"' {
			out = append(out, Episode{Number: key, Link: u})
			return
		}
		var w episodeWire
		if json.Unmarshal(r, &w) != nil {
			return
		}
		n := key
		switch {
		case w.EpisodeNumber.Valid:
			n = w.EpisodeNumber.V
		case w.Episode.Valid:
			n = w.Episode.V
		}
		out = append(out, Episode{Number: n, Link: w.Link.String(), Links: w.Links, HLS: w.HLS.String()})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// forEachEntry 遍历数组（key = 下标+1）或数字 key 对象（key = 数字，非数字 key 跳过）。
func forEachEntry(b []byte, fn func(key int, r json.RawMessage)) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return
	}
	switch b[0] {
	case '[':
		var arr []json.RawMessage
		if json.Unmarshal(b, &arr) != nil {
			return
		}
		for i, r := range arr {
			if len(bytes.TrimSpace(r)) == 0 {
				continue
			}
			fn(i+1, r)
		}
	case '{':
		var m map[string]json.RawMessage
		if json.Unmarshal(b, &m) != nil {
			return
		}
		for k, r := range m {
			n, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil || len(bytes.TrimSpace(r)) == 0 {
				continue
			}
			fn(n, r)
		}
	}
}
