package anilibria

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiL163/nekostream/internal/mirror"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	search, err := os.ReadFile(filepath.Join("testdata", "search.json"))
	require.NoError(t, err)
	detail, err := os.ReadFile(filepath.Join("testdata", "release_9002.json"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/anime/catalog/releases", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("f[search]") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write(search)
	})
	mux.HandleFunc("/api/v1/anime/releases/9002", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(detail)
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	set, err := mirror.New(mirror.FamilyAniLibria, []string{u.Host})
	require.NoError(t, err)
	return New(Options{Mirrors: set, Scheme: "http", Log: hclog.NewNullLogger()})
}

func TestSearchReleases(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := newTestClient(t, srv)
	res := c.SearchReleases(context.Background(), "Fullmetal Alchemist")
	require.True(t, res.OK())
	require.Len(t, res.Payload, 3)
	assert.Equal(t, "MOVIE", res.Payload[0].Type.Value)
	assert.Equal(t, 2009, res.Payload[1].Year.V)
	assert.False(t, res.Payload[2].Year.Valid)
	assert.Equal(t, "", res.Payload[2].Type.Value)
}

func TestRelease_DetailTolerant(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := newTestClient(t, srv)
	res := c.Release(context.Background(), 9002)
	require.True(t, res.OK())
	d := res.Payload
	assert.Equal(t, 9002, d.ID.V)
	assert.Equal(t, "Стальной алхимик: Братство", d.Name.Main.String())
	require.Len(t, d.Episodes, 2)
	assert.Equal(t, "", d.Episodes[0].HLS1080.String())
	require.Len(t, d.Torrents, 1)
	assert.Equal(t, "1080p", d.Torrents[0].Quality.Description)
	assert.Equal(t, 54000000000, d.Torrents[0].Size.V)
}

func TestRelease_MissingIsFailure(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := newTestClient(t, srv)
	assert.False(t, c.Release(context.Background(), 1).OK())
	assert.False(t, c.Release(context.Background(), 0).OK())
}

func TestListItems_TopLevelArray(t *testing.T) {
	items := listItems([]byte(`[{"id":1},{"id":2}]`))
	assert.Len(t, items, 2)
	assert.Nil(t, listItems([]byte(`"x"`)))
}
