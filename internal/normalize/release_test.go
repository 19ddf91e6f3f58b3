package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiL163/nekostream/internal/provider/anilibria"
)

func releases(t *testing.T, s string) []anilibria.Release {
	t.Helper()
	var out []anilibria.Release
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestMatchRelease(t *testing.T) {
	rs := releases(t, `[
		{"id": 1, "year": 2009, "type": {"value": "MOVIE"}},
		{"id": 2, "year": 2010, "type": {"value": "TV"}},
		{"id": 3, "year": 2012, "type": {"value": "TV"}}
	]`)

	cases := []struct {
		name   string
		year   int
		kind   string
		wantID int
		ok     bool
	}{
		{"tv within one year", 2009, "tv", 2, true},
		{"movie exact", 2009, "movie", 1, true},
		{"unknown kind takes first year match", 2011, "", 2, true},
		{"unknown year takes first kind match", 0, "tv", 2, true},
		{"ova class mismatch", 2009, "ova", 0, false},
		{"too far", 2020, "tv", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, ok := MatchRelease(rs, tc.year, tc.kind)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.wantID, r.ID.V)
			}
		})
	}
}

func TestMatchRelease_ExtraClassAndUnknownReleaseFields(t *testing.T) {
	rs := releases(t, `[
		{"id": 7, "year": null, "type": null},
		{"id": 8, "year": 2015, "type": {"value": "SPECIAL"}}
	]`)
	r, ok := MatchRelease(rs, 2015, "ona")
	require.True(t, ok)
	assert.Equal(t, 7, r.ID.V, "上游未知字段视为匹配，首条胜出")

	r, ok = MatchRelease(rs[1:], 2014, "ona")
	require.True(t, ok)
	assert.Equal(t, 8, r.ID.V)
}

func TestKindClass(t *testing.T) {
	assert.Equal(t, "extra", KindClass("OVA"))
	assert.Equal(t, "extra", KindClass("special"))
	assert.Equal(t, "tv", KindClass(" TV "))
	assert.Equal(t, "", KindClass(""))
	assert.Equal(t, "music", KindClass("music"))
}

func TestReleaseSourceAndTorrents(t *testing.T) {
	var d anilibria.ReleaseDetail
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 9002,
		"name": {"main": "FMA"},
		"episodes": [
			{"ordinal": 2, "hls_720": "/v/2/720.m3u8", "duration": 1400},
			{"ordinal": 1, "name": "Pilot", "hls_480": "https://c/1/480.m3u8", "hls_1080": "https://c/1/1080.m3u8"},
			{"ordinal": 3}
		],
		"torrents": [
			{"label": "FMA [1-64]", "quality": {"value": "1080p", "description": "WEBRip 1080p"}, "size": 100, "magnet": "magnet:?xt=1", "seeders": 4},
			{"label": "без magnet"}
		]
	}`), &d))
	src, ok := ReleaseSource(d, "aniliberty.top")
	require.True(t, ok)
	assert.Equal(t, "anilibria", src.Provider)
	assert.Equal(t, AniLibriaTranslationTitle, src.TranslationTitle)
	require.Len(t, src.Seasons, 1)
	eps := src.Seasons[0].Episodes
	require.Len(t, eps, 2, "没有任何链接的分集应被丢弃")
	assert.Equal(t, 1, eps[0].Number)
	assert.Equal(t, "https://c/1/1080.m3u8", eps[0].HLS)
	assert.Equal(t, "https://aniliberty.top/v/2/720.m3u8", eps[1].Links["720"])

	ts := Torrents(d)
	require.Len(t, ts, 1)
	assert.Equal(t, "WEBRip 1080p", ts[0].Quality)
	assert.EqualValues(t, 100, ts[0].Size)
}

func TestReleaseSource_NoEpisodes(t *testing.T) {
	_, ok := ReleaseSource(anilibria.ReleaseDetail{}, "aniliberty.top")
	assert.False(t, ok)
}
