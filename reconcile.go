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
	"encoding/json"
	"sort"
)

// URLSet is a set of normalized URLs
type URLSet map[string]struct{}

// NewURLSet creates a set holding urls
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts u
func (s URLSet) Add(u string) {
	s[u] = struct{}{}
}

// Has reports whether u is in the set
func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Sorted returns the members in lexical order
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Minus returns the members of s that are not in other
func (s URLSet) Minus(other URLSet) URLSet {
	out := make(URLSet)
	for u := range s {
		if !other.Has(u) {
			out.Add(u)
		}
	}
	return out
}

// Intersect returns the members present in both sets
func (s URLSet) Intersect(other URLSet) URLSet {
	out := make(URLSet)
	for u := range s {
		if other.Has(u) {
			out.Add(u)
		}
	}
	return out
}

// DiffReport compares crawled URLs with sitemap URLs
type DiffReport struct {
	OnlyInSitemap URLSet
	OnlyInCrawl   URLSet
	InBoth        URLSet
	// SitemapUnavailable is set when the sitemap could not be fetched. The
	// crawl set is then reported entirely as OnlyInCrawl.
	SitemapUnavailable bool
	// SitemapError describes why the sitemap was unavailable
	SitemapError string
}

// Reconcile computes the three-way diff. Both sets must already be
// normalized with the same domain rules; no normalization happens here.
func Reconcile(crawl, sitemap URLSet) *DiffReport {
	return &DiffReport{
		OnlyInSitemap: sitemap.Minus(crawl),
		OnlyInCrawl:   crawl.Minus(sitemap),
		InBoth:        sitemap.Intersect(crawl),
	}
}

// ReconcileUnavailable builds the report for a crawl whose sitemap could
// not be read.
func ReconcileUnavailable(crawl URLSet, cause error) *DiffReport {
	report := &DiffReport{
		OnlyInSitemap:      make(URLSet),
		OnlyInCrawl:        crawl.Minus(nil),
		InBoth:             make(URLSet),
		SitemapUnavailable: true,
	}
	if cause != nil {
		report.SitemapError = cause.Error()
	}
	return report
}

// diffReportJSON is the serialized form with sorted lists
type diffReportJSON struct {
	OnlyInSitemap      []string `json:"only_in_sitemap"`
	OnlyInCrawl        []string `json:"only_in_crawl"`
	InBoth             []string `json:"in_both"`
	SitemapUnavailable bool     `json:"sitemap_unavailable"`
	SitemapError       string   `json:"sitemap_error,omitempty"`
}

// MarshalJSON writes each set as a sorted list
func (r *DiffReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(diffReportJSON{
		OnlyInSitemap:      r.OnlyInSitemap.Sorted(),
		OnlyInCrawl:        r.OnlyInCrawl.Sorted(),
		InBoth:             r.InBoth.Sorted(),
		SitemapUnavailable: r.SitemapUnavailable,
		SitemapError:       r.SitemapError,
	})
}

// UnmarshalJSON reads the form written by MarshalJSON
func (r *DiffReport) UnmarshalJSON(data []byte) error {
	var raw diffReportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.OnlyInSitemap = NewURLSet(raw.OnlyInSitemap...)
	r.OnlyInCrawl = NewURLSet(raw.OnlyInCrawl...)
	r.InBoth = NewURLSet(raw.InBoth...)
	r.SitemapUnavailable = raw.SitemapUnavailable
	r.SitemapError = raw.SitemapError
	return nil
}
