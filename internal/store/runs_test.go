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

package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/sitediff"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := newStoreWithPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleStructure(t *testing.T) *sitediff.SiteStructure {
	t.Helper()
	structure := sitediff.NewSiteStructure("example.com", "https://example.com/")
	structure.Termination = sitediff.TerminationCompleted
	require.NoError(t, structure.Add(&sitediff.PageRecord{
		URL:         "https://example.com/",
		Title:       "Home",
		FetchStatus: sitediff.FetchOK,
		DiscoveredLinks: []sitediff.DiscoveredLink{
			{URL: "https://example.com/products", Class: sitediff.LinkContent},
			{URL: "https://example.com/about", Class: sitediff.LinkChrome},
			{URL: "mailto:a@example.com", Class: sitediff.LinkSkip},
		},
	}))
	require.NoError(t, structure.Add(&sitediff.PageRecord{
		URL:         "https://example.com/products",
		Depth:       1,
		ReachedFrom: "https://example.com/",
		FetchStatus: sitediff.FetchFailure,
		Error:       "timeout",
	}))
	return structure
}

func TestGetOrCreateSite(t *testing.T) {
	s := newTestStore(t)

	first, err := s.GetOrCreateSite("https://example.com/", "example.com")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := s.GetOrCreateSite("https://example.com/start", "example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://example.com/start", second.URL)

	other, err := s.GetOrCreateSite("https://other.com/", "other.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSaveRunAndGetRun(t *testing.T) {
	s := newTestStore(t)
	structure := sampleStructure(t)
	diff := sitediff.Reconcile(structure.URLSet(), sitediff.NewURLSet("https://example.com/", "https://example.com/orphan"))

	run, err := s.SaveRun(RunSummary{
		SeedURL:   "https://example.com/",
		StartedAt: time.Unix(1700000000, 0),
		Duration:  1500 * time.Millisecond,
		OutputDir: "crawl_output/2023-11-14_22-13",
	}, structure, diff)
	require.NoError(t, err)

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PagesCrawled)
	assert.Equal(t, 1, got.PagesFailed)
	assert.Equal(t, "completed", got.Termination)
	assert.Equal(t, int64(1500), got.DurationMs)
	require.NotNil(t, got.Site)
	assert.Equal(t, "example.com", got.Site.Domain)

	require.Len(t, got.Pages, 2)
	assert.Equal(t, "https://example.com/", got.Pages[0].URL)
	assert.Equal(t, 1, got.Pages[0].ContentLinks)
	assert.Equal(t, 1, got.Pages[0].ChromeLinks)
	assert.Equal(t, 1, got.Pages[0].SkippedLinks)
	assert.Equal(t, "failure", got.Pages[1].FetchStatus)
	assert.Equal(t, "timeout", got.Pages[1].Error)
}

func TestGetRunDiff(t *testing.T) {
	s := newTestStore(t)
	structure := sampleStructure(t)
	diff := sitediff.Reconcile(structure.URLSet(), sitediff.NewURLSet("https://example.com/", "https://example.com/orphan"))

	run, err := s.SaveRun(RunSummary{SeedURL: "https://example.com/", StartedAt: time.Now()}, structure, diff)
	require.NoError(t, err)

	got, err := s.GetRunDiff(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/orphan"}, got.OnlyInSitemap.Sorted())
	assert.Equal(t, []string{"https://example.com/products"}, got.OnlyInCrawl.Sorted())
	assert.Equal(t, []string{"https://example.com/"}, got.InBoth.Sorted())
	assert.False(t, got.SitemapUnavailable)
}

func TestGetRunDiffSitemapUnavailable(t *testing.T) {
	s := newTestStore(t)
	structure := sampleStructure(t)
	diff := sitediff.ReconcileUnavailable(structure.URLSet(), errors.New("404 at /sitemap.xml"))

	run, err := s.SaveRun(RunSummary{SeedURL: "https://example.com/", StartedAt: time.Now()}, structure, diff)
	require.NoError(t, err)

	got, err := s.GetRunDiff(run.ID)
	require.NoError(t, err)
	assert.True(t, got.SitemapUnavailable)
	assert.Equal(t, "404 at /sitemap.xml", got.SitemapError)
	assert.Empty(t, got.OnlyInSitemap)
	assert.Empty(t, got.InBoth)
	assert.Len(t, got.OnlyInCrawl, 2)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	structure := sampleStructure(t)

	for i := 0; i < 3; i++ {
		_, err := s.SaveRun(RunSummary{
			SeedURL:   "https://example.com/",
			StartedAt: time.Unix(int64(1700000000+i*60), 0),
		}, structure, nil)
		require.NoError(t, err)
	}
	other := sitediff.NewSiteStructure("other.com", "https://other.com/")
	_, err := s.SaveRun(RunSummary{SeedURL: "https://other.com/", StartedAt: time.Unix(1600000000, 0)}, other, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		domain string
		limit  int
		want   int
	}{
		{"all sites", "", 0, 4},
		{"one domain", "example.com", 0, 3},
		{"limited", "example.com", 2, 2},
		{"unknown domain", "nowhere.com", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(tt.domain, tt.limit)
			require.NoError(t, err)
			assert.Len(t, runs, tt.want)
		})
	}

	runs, err := s.ListRuns("example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000120), runs[0].StartedAt, "newest run first")

	latest, err := s.GetLatestRun("example.com")
	require.NoError(t, err)
	assert.Equal(t, runs[0].ID, latest.ID)
}

func TestSaveRunRecordsError(t *testing.T) {
	s := newTestStore(t)
	structure := sampleStructure(t)
	structure.Termination = sitediff.TerminationAborted

	run, err := s.SaveRun(RunSummary{
		SeedURL:   "https://example.com/",
		StartedAt: time.Now(),
		Err:       sitediff.ErrCrawlAborted,
	}, structure, nil)
	require.NoError(t, err)
	assert.Equal(t, "aborted", run.Termination)
	assert.Equal(t, sitediff.ErrCrawlAborted.Error(), run.Error)
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	structure := sampleStructure(t)
	run, err := s.SaveRun(RunSummary{SeedURL: "https://example.com/", StartedAt: time.Now()}, structure,
		sitediff.Reconcile(structure.URLSet(), sitediff.NewURLSet()))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(run.ID))

	_, err = s.GetRun(run.ID)
	assert.Error(t, err)

	var pages int64
	s.DB().Model(&Page{}).Where("run_id = ?", run.ID).Count(&pages)
	assert.Zero(t, pages)

	assert.Error(t, s.DeleteRun(run.ID), "second delete reports not found")
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, path)
}

func TestNewStoreForTestingMissingDirectory(t *testing.T) {
	_, err := NewStoreForTesting(filepath.Join(t.TempDir(), "missing", "x.db"))
	assert.Error(t, err)
}
