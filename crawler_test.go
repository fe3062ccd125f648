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
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/sitediff/storage"
	"github.com/agentberlin/sitediff/testutil"
)

const testBase = "https://example.com"

var fastReadiness = ReadinessConfig{MaxScrollAttempts: 2, ImageLoadAttempts: 1}

// mockSite registers each path's markup under testBase
func mockSite(pages map[string]string) *MockRenderer {
	r := NewMockRenderer()
	for path, html := range pages {
		r.RegisterHTML(testBase+path, html)
	}
	return r
}

func html(body string) string {
	return "<html><head><title>T</title></head><body>" + body + "</body></html>"
}

func newTestCrawler(t *testing.T, config CrawlerConfig) *Crawler {
	t.Helper()
	if config.Readiness == (ReadinessConfig{}) {
		config.Readiness = fastReadiness
	}
	c, err := NewCrawler(&config)
	require.NoError(t, err)
	return c
}

func urls(paths ...string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = testBase + p
	}
	return out
}

func TestCrawlFixtureSite(t *testing.T) {
	r := mockSite(testutil.Pages)
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)

	want := urls("/", "/products", "/blog", "/offers", "/products/widget", "/products/gadget", "/blog/post-1")
	assert.Equal(t, want, structure.URLs())
	assert.Equal(t, want, r.Loads(), "only content links are loaded")
	assert.Equal(t, TerminationCompleted, structure.Termination)
	assert.Zero(t, structure.Pending)
	assert.Equal(t, "example.com", structure.Domain)
	assert.Equal(t, testBase+"/", structure.Seed)

	home, ok := structure.Get(testBase + "/")
	require.True(t, ok)
	assert.Equal(t, "Home", home.Title)
	assert.Zero(t, home.Depth)
	assert.NotEmpty(t, home.ContentHash)

	byHref := map[string]DiscoveredLink{}
	for _, link := range home.DiscoveredLinks {
		byHref[link.Href] = link
	}
	assert.Equal(t, LinkChrome, byHref["/about"].Class)
	assert.Equal(t, PositionNavigation, byHref["/about"].Position)
	assert.Equal(t, LinkChrome, byHref["/privacy"].Class)
	assert.Equal(t, PositionFooter, byHref["/privacy"].Position)
	assert.Equal(t, LinkContent, byHref["/blog/"].Class)
	assert.Equal(t, testBase+"/blog", byHref["/blog/"].URL)
	assert.Equal(t, ReasonNonNavigable, byHref["mailto:hello@example.com"].Reason)
	assert.Equal(t, ReasonNonNavigable, byHref["#top"].Reason)
	assert.Equal(t, ReasonExternal, byHref["https://elsewhere.example.org/partner"].Reason)
	assert.Equal(t, "button", byHref["/offers"].Source)
	assert.Equal(t, LinkContent, byHref["/offers"].Class)

	widget, _ := structure.Get(testBase + "/products/widget")
	assert.Equal(t, 2, widget.Depth)
	assert.Equal(t, testBase+"/products", widget.ReachedFrom)
	assert.Equal(t, "Widget", widget.LinkText)
}

func TestCrawlBreadthFirst(t *testing.T) {
	r := mockSite(map[string]string{
		"/":  html(`<main><a href="/a">A</a><a href="/b">B</a></main>`),
		"/a": html(`<main><a href="/c">C</a></main>`),
		"/b": html(`<main><a href="/d">D</a><a href="/a">A again</a></main>`),
		"/c": html(`<main></main>`),
		"/d": html(`<main><a href="/">Home</a></main>`),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase, Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/a", "/b", "/c", "/d"), structure.URLs())

	depths := map[string]int{}
	for _, rec := range structure.Records() {
		depths[rec.URL] = rec.Depth
	}
	assert.Equal(t, map[string]int{
		testBase + "/": 0, testBase + "/a": 1, testBase + "/b": 1, testBase + "/c": 2, testBase + "/d": 2,
	}, depths)
}

func TestCrawlMaxPages(t *testing.T) {
	body := "<main>"
	pages := map[string]string{}
	for i := 1; i <= 9; i++ {
		body += fmt.Sprintf(`<a href="/p%d">P%d</a>`, i, i)
		pages[fmt.Sprintf("/p%d", i)] = html("<main></main>")
	}
	pages["/"] = html(body + "</main>")
	r := mockSite(pages)
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{MaxPages: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, structure.Len())
	assert.Equal(t, 7, structure.Pending)
	assert.Equal(t, TerminationPageLimit, structure.Termination)
	assert.Len(t, r.Loads(), 3)
}

func TestCrawlMaxDepth(t *testing.T) {
	r := mockSite(map[string]string{
		"/":  html(`<main><a href="/a">A</a></main>`),
		"/a": html(`<main><a href="/b">B</a></main>`),
		"/b": html(`<main></main>`),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/a"), structure.URLs())
	assert.Equal(t, TerminationCompleted, structure.Termination)
}

func TestCrawlRecordsFailures(t *testing.T) {
	r := mockSite(map[string]string{
		"/":   html(`<main><a href="/missing">M</a><a href="/ok">OK</a></main>`),
		"/ok": html(`<main></main>`),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{MaxConsecutiveFailures: 1})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/missing", "/ok"), structure.URLs())
	assert.Equal(t, 1, structure.Failures())

	missing, _ := structure.Get(testBase + "/missing")
	assert.Equal(t, FetchFailure, missing.FetchStatus)
	assert.Contains(t, missing.Error, "page not found")
	assert.NotNil(t, missing.DiscoveredLinks)
	assert.Empty(t, missing.DiscoveredLinks)
}

func TestCrawlAbortsAfterConsecutiveFailures(t *testing.T) {
	pages := map[string]string{
		"/": html(`<main><a href="/a">A</a><a href="/b">B</a><a href="/c">C</a><a href="/d">D</a></main>`),
	}

	tests := []struct {
		name        string
		threshold   int
		records     int
		termination Termination
		aborted     bool
	}{
		{"threshold one", 1, 3, TerminationAborted, true},
		{"threshold two", 2, 4, TerminationAborted, true},
		{"never abort", 0, 5, TerminationCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCrawler(t, CrawlerConfig{Renderer: mockSite(pages)})
			structure, err := c.Crawl(context.Background(), testBase+"/", Limits{MaxConsecutiveFailures: tt.threshold})
			if tt.aborted {
				require.ErrorIs(t, err, ErrCrawlAborted)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, structure)
			assert.Equal(t, tt.records, structure.Len())
			assert.Equal(t, tt.termination, structure.Termination)
		})
	}
}

func TestCrawlExcludePatterns(t *testing.T) {
	r := mockSite(map[string]string{
		"/":          html(`<main><a href="/private/x">X</a><a href="/public">P</a></main>`),
		"/public":    html(`<main></main>`),
		"/private/x": html(`<main></main>`),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r, ExcludePatterns: []string{testBase + "/private/*"}})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/public"), structure.URLs())

	home, _ := structure.Get(testBase + "/")
	require.Len(t, home.DiscoveredLinks, 2)
	assert.True(t, home.DiscoveredLinks[0].Excluded)
	assert.False(t, home.DiscoveredLinks[1].Excluded)
}

func TestCrawlLinkOrder(t *testing.T) {
	r := mockSite(map[string]string{
		"/": html(`<main><button onclick="window.location.href = '/b'">B</button><a href="/a">A</a>
			<map><area href="/c" alt="C"></map></main>`),
		"/a": html(""),
		"/b": html(""),
		"/c": html(""),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/a", "/c", "/b"), structure.URLs(), "buttons follow anchors and areas")
}

func TestCrawlBaseHref(t *testing.T) {
	r := mockSite(map[string]string{
		"/":          `<html><head><base href="/shop/"></head><body><main><a href="item">I</a></main></body></html>`,
		"/shop/item": html(""),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/shop/item"), structure.URLs())
}

func TestCrawlRedirectMarksFinalURL(t *testing.T) {
	r := mockSite(map[string]string{
		"/": html(`<main><a href="/old">Old</a></main>`),
	})
	r.RegisterPage(testBase+"/old", &MockPage{
		HTML:     html(`<main><a href="/new">New</a></main>`),
		FinalURL: testBase + "/new",
	})
	r.RegisterHTML(testBase+"/new", html(""))
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/old"), structure.URLs())

	old, _ := structure.Get(testBase + "/old")
	assert.Equal(t, testBase+"/new", old.FinalURL)

	home, _ := structure.Get(testBase + "/")
	assert.Empty(t, home.FinalURL, "no redirect, no final URL")

	diff := Reconcile(structure.URLSet(), NewURLSet(urls("/", "/new")...))
	assert.Empty(t, diff.OnlyInSitemap, "the redirect target counts as reached")
	assert.Equal(t, NewURLSet(urls("/", "/new")...), diff.InBoth)
}

func TestCrawlDomainFixes(t *testing.T) {
	rule, err := NewDomainFixRule(`https://staging\.example\.com`, testBase)
	require.NoError(t, err)
	entry, err := NewDomainFixes("example.com", []DomainFixRule{rule})
	require.NoError(t, err)
	other, err := NewDomainFixes("other.org", []DomainFixRule{{Pattern: rule.Pattern, Replacement: "https://other.org"}})
	require.NoError(t, err)

	r := mockSite(map[string]string{
		"/":  html(`<main><a href="https://staging.example.com/x/">X</a></main>`),
		"/x": html(""),
	})
	c := newTestCrawler(t, CrawlerConfig{Renderer: r, DomainFixes: DomainFixRuleSet{entry, other}})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/", "/x"), structure.URLs())
}

func TestCrawlInvalidSeed(t *testing.T) {
	c := newTestCrawler(t, CrawlerConfig{Renderer: NewMockRenderer()})

	for _, seed := range []string{"", "not a url", "ftp://example.com/"} {
		t.Run(seed, func(t *testing.T) {
			structure, err := c.Crawl(context.Background(), seed, Limits{})
			require.ErrorIs(t, err, ErrInvalidSeed)
			require.NotNil(t, structure)
			assert.Zero(t, structure.Len())
		})
	}
}

func TestCrawlCanceled(t *testing.T) {
	r := mockSite(testutil.Pages)
	c := newTestCrawler(t, CrawlerConfig{Renderer: r})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	structure, err := c.Crawl(ctx, testBase+"/", Limits{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TerminationCanceled, structure.Termination)
	assert.Equal(t, 1, structure.Pending)
	assert.Empty(t, r.Loads())
}

func TestCrawlCapturesArtifacts(t *testing.T) {
	r := NewMockRenderer()
	r.RegisterPage(testBase+"/", &MockPage{HTML: html("<main><p>Hi</p></main>"), StickyScroll: 2})
	artifacts := storage.NewInMemoryStorage()
	var seen []string
	c := newTestCrawler(t, CrawlerConfig{
		Renderer:  r,
		Artifacts: artifacts,
		OnPage:    func(rec *PageRecord) { seen = append(seen, rec.URL) },
	})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, urls("/"), seen)

	home, _ := structure.Get(testBase + "/")
	assert.Equal(t, "example.com/screenshots/example.com.png", home.ScreenshotRef)
	assert.Equal(t, "example.com/html/example.com.html", home.HTMLRef)

	png, ok := artifacts.Get(home.ScreenshotRef)
	require.True(t, ok)
	assert.Equal(t, "png:"+testBase+"/@0", string(png), "capture happens at the top of the page")
	require.NotNil(t, home.Readiness)
	assert.Zero(t, home.Readiness.ScrollY)
}

func TestCrawlArtifactsKeepSimilarPathsApart(t *testing.T) {
	r := mockSite(map[string]string{
		"/":    html(`<main><a href="/a/b">Nested</a><a href="/a_b">Underscore</a></main>`),
		"/a/b": html("<main><p>nested page</p></main>"),
		"/a_b": html("<main><p>underscore page</p></main>"),
	})
	artifacts := storage.NewInMemoryStorage()
	c := newTestCrawler(t, CrawlerConfig{Renderer: r, Artifacts: artifacts})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)

	nested, _ := structure.Get(testBase + "/a/b")
	underscore, _ := structure.Get(testBase + "/a_b")
	require.NotEmpty(t, nested.HTMLRef)
	require.NotEmpty(t, underscore.HTMLRef)
	assert.NotEqual(t, nested.HTMLRef, underscore.HTMLRef)
	assert.NotEqual(t, nested.ScreenshotRef, underscore.ScreenshotRef)

	body, ok := artifacts.Get(nested.HTMLRef)
	require.True(t, ok)
	assert.Contains(t, string(body), "nested page")
	body, ok = artifacts.Get(underscore.HTMLRef)
	require.True(t, ok)
	assert.Contains(t, string(body), "underscore page")
}

func TestCrawlScreenshotFailureKeepsPage(t *testing.T) {
	r := NewMockRenderer()
	r.RegisterPage(testBase+"/", &MockPage{HTML: html("<main></main>"), ScreenshotError: assert.AnError})
	artifacts := storage.NewInMemoryStorage()
	c := newTestCrawler(t, CrawlerConfig{Renderer: r, Artifacts: artifacts})

	structure, err := c.Crawl(context.Background(), testBase+"/", Limits{})
	require.NoError(t, err)
	home, _ := structure.Get(testBase + "/")
	assert.Equal(t, FetchOK, home.FetchStatus)
	assert.Empty(t, home.ScreenshotRef)
	assert.NotEmpty(t, home.HTMLRef)
}

func TestNewCrawlerValidation(t *testing.T) {
	_, err := NewCrawler(&CrawlerConfig{})
	assert.Error(t, err)

	_, err = NewCrawler(&CrawlerConfig{Renderer: NewMockRenderer(), ExcludePatterns: []string{"[unclosed"}})
	assert.Error(t, err)
}
