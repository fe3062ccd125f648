// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sitediff

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/sitediff/testutil"
)

func fixtureSitemapSet(t *testing.T, base string, n *Normalizer) URLSet {
	t.Helper()
	want := make(URLSet)
	for _, p := range testutil.SitemapPaths {
		u, err := n.Normalize(base+p, "")
		require.NoError(t, err)
		want.Add(u)
	}
	return want
}

func TestFetchSet(t *testing.T) {
	tests := []struct {
		name        string
		opts        testutil.FixtureOptions
		retries     int
		sitemapHits int
	}{
		{"default location", testutil.FixtureOptions{}, 1, 1},
		{"retry after transient failure", testutil.FixtureOptions{SitemapFailures: 1}, 2, 2},
		{"fallback to sitemap index", testutil.FixtureOptions{SitemapFailures: 5}, 2, 2},
		{"sitemap index at default location", testutil.FixtureOptions{UseIndex: true}, 1, 1},
		{"robots sitemap line", testutil.FixtureOptions{RobotsSitemap: true}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := testutil.NewFixtureServer(tt.opts)
			defer fixture.Close()

			n := NewNormalizer(HostOf(fixture.URL), nil)
			f := NewSitemapFetcher(SitemapConfig{Retries: tt.retries})

			got, err := f.FetchSet(context.Background(), fixture.URL, n)
			require.NoError(t, err)
			assert.Equal(t, fixtureSitemapSet(t, fixture.URL, n), got)
			assert.Equal(t, tt.sitemapHits, fixture.SitemapHits())
		})
	}
}

func TestFetchSetUnavailable(t *testing.T) {
	fixture := testutil.NewFixtureServer(testutil.FixtureOptions{NoSitemap: true})
	defer fixture.Close()

	f := NewSitemapFetcher(SitemapConfig{Retries: 3})
	got, err := f.FetchSet(context.Background(), fixture.URL, NewNormalizer(HostOf(fixture.URL), nil))
	require.ErrorIs(t, err, ErrSitemapUnavailable)
	assert.Empty(t, got)
	assert.Equal(t, 1, fixture.SitemapHits(), "404 is not retried")
}

func TestDiscover(t *testing.T) {
	fixture := testutil.NewFixtureServer(testutil.FixtureOptions{})
	defer fixture.Close()
	f := NewSitemapFetcher(SitemapConfig{})

	locations, fromRobots := f.Discover(context.Background(), fixture.URL+"/some/page")
	assert.Equal(t, []string{fixture.URL + "/sitemap.xml", fixture.URL + "/sitemap_index.xml"}, locations)
	assert.False(t, fromRobots)

	withRobots := testutil.NewFixtureServer(testutil.FixtureOptions{RobotsSitemap: true})
	defer withRobots.Close()
	locations, fromRobots = f.Discover(context.Background(), withRobots.URL)
	assert.Equal(t, []string{withRobots.URL + "/sitemap-pages.xml"}, locations)
	assert.True(t, fromRobots)
}

// newSitemapServer serves fixed bodies by path; paths mapped to an empty
// body answer 500 and unknown paths 404.
func newSitemapServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		switch {
		case !ok:
			http.NotFound(w, r)
		case body == "":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			fmt.Fprint(w, strings.ReplaceAll(body, "BASE", server.URL))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

const (
	testIndexBody  = `<?xml version="1.0" encoding="UTF-8"?><sitemapindex><sitemap><loc>BASE/child.xml</loc></sitemap></sitemapindex>`
	testNestedBody = `<?xml version="1.0" encoding="UTF-8"?><sitemapindex><sitemap><loc>BASE/nested.xml</loc></sitemap></sitemapindex>`
)

func testURLSetBody(paths ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset>`)
	for _, p := range paths {
		b.WriteString("<url><loc>BASE" + p + "</loc></url>")
	}
	b.WriteString("</urlset>")
	return b.String()
}

func TestFetchSetIndexWithoutReadableChildren(t *testing.T) {
	tests := []struct {
		name   string
		bodies map[string]string
		depth  int
	}{
		{
			name:   "only child answers 500",
			bodies: map[string]string{"/sitemap.xml": testIndexBody, "/child.xml": ""},
		},
		{
			name:   "only child missing",
			bodies: map[string]string{"/sitemap.xml": testIndexBody},
		},
		{
			name: "nested deeper than allowed",
			bodies: map[string]string{
				"/sitemap.xml": testNestedBody,
				"/nested.xml":  testIndexBody,
				"/child.xml":   testURLSetBody("/a"),
			},
			depth: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newSitemapServer(t, tt.bodies)
			f := NewSitemapFetcher(SitemapConfig{Retries: 1, MaxIndexDepth: tt.depth})

			got, err := f.FetchSet(context.Background(), server.URL, NewNormalizer(HostOf(server.URL), nil))
			require.ErrorIs(t, err, ErrSitemapUnavailable)
			assert.Empty(t, got)
		})
	}
}

func TestFetchIndexPartialChildren(t *testing.T) {
	server := newSitemapServer(t, map[string]string{
		"/sitemap.xml": `<?xml version="1.0"?><sitemapindex>` +
			`<sitemap><loc>BASE/broken.xml</loc></sitemap>` +
			`<sitemap><loc>BASE/child.xml</loc></sitemap></sitemapindex>`,
		"/broken.xml": "",
		"/child.xml":  testURLSetBody("/a", "/b"),
	})
	f := NewSitemapFetcher(SitemapConfig{Retries: 1})

	locs, err := f.Fetch(context.Background(), server.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/a", server.URL + "/b"}, locs)
}

func TestFetchSetReadsEveryRobotsSitemap(t *testing.T) {
	server := newSitemapServer(t, map[string]string{
		"/robots.txt":       "User-agent: *\nAllow: /\n\nSitemap: BASE/sitemap.xml\nSitemap: BASE/blog-sitemap.xml\n",
		"/sitemap.xml":      testURLSetBody("/", "/about"),
		"/blog-sitemap.xml": testURLSetBody("/blog/first", "/blog/second"),
	})
	n := NewNormalizer(HostOf(server.URL), nil)
	f := NewSitemapFetcher(SitemapConfig{Retries: 1})

	got, err := f.FetchSet(context.Background(), server.URL, n)
	require.NoError(t, err)

	want := make(URLSet)
	for _, p := range []string{"/", "/about", "/blog/first", "/blog/second"} {
		u, err := n.Normalize(server.URL+p, "")
		require.NoError(t, err)
		want.Add(u)
	}
	assert.Equal(t, want, got)
}

func TestFetchLatin1Sitemap(t *testing.T) {
	fixture := testutil.NewFixtureServer(testutil.FixtureOptions{})
	defer fixture.Close()

	locs, err := NewSitemapFetcher(SitemapConfig{}).Fetch(context.Background(), fixture.URL+"/latin1-sitemap.xml")
	require.NoError(t, err)
	require.Len(t, locs, 2)
	for _, loc := range locs {
		assert.True(t, utf8.ValidString(loc), loc)
	}
	assert.True(t, strings.HasPrefix(locs[0], fixture.URL+"/caf"))
}

func TestDecodeSitemap(t *testing.T) {
	plain := []byte(`<?xml version="1.0" encoding="UTF-8"?><urlset><url><loc>https://example.com/</loc></url></urlset>`)

	t.Run("plain", func(t *testing.T) {
		got, err := decodeSitemap(plain)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(plain)
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		got, err := decodeSitemap(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	})

	t.Run("declared encoding left to the parser", func(t *testing.T) {
		body := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><urlset><url><loc>https://example.com/caf\xe9</loc></url></urlset>")
		got, err := decodeSitemap(body)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})
}

func TestFetchNotASitemap(t *testing.T) {
	fixture := testutil.NewFixtureServer(testutil.FixtureOptions{})
	defer fixture.Close()

	_, err := NewSitemapFetcher(SitemapConfig{}).Fetch(context.Background(), fixture.URL+"/missing.xml")
	assert.Error(t, err)
}
