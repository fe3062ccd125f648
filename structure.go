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
	"fmt"
)

// FetchStatus is the outcome of rendering one page
type FetchStatus string

const (
	FetchOK      FetchStatus = "ok"
	FetchFailure FetchStatus = "failure"
)

// Termination says why a crawl stopped
type Termination string

const (
	// TerminationCompleted means the frontier ran empty
	TerminationCompleted Termination = "completed"
	// TerminationPageLimit means MaxPages records were produced
	TerminationPageLimit Termination = "page_limit"
	// TerminationAborted means consecutive failures exceeded the threshold
	TerminationAborted Termination = "aborted"
	// TerminationCanceled means the context was canceled
	TerminationCanceled Termination = "canceled"
)

// DiscoveredLink is a link found on a page together with its classification
type DiscoveredLink struct {
	// URL is the normalized target, or the raw href for non-navigable links
	URL      string    `json:"url"`
	Href     string    `json:"href"`
	Text     string    `json:"text,omitempty"`
	Class    LinkClass `json:"classification"`
	Reason   string    `json:"reason,omitempty"`
	Position string    `json:"position,omitempty"`
	// Source is the element the link came from: "a", "area" or "button"
	Source   string `json:"source"`
	DOMPath  string `json:"dom_path,omitempty"`
	Excluded bool   `json:"excluded,omitempty"`
}

// PageRecord is everything captured for one visited URL
type PageRecord struct {
	URL             string           `json:"url"`
	FinalURL        string           `json:"final_url,omitempty"`
	Title           string           `json:"title"`
	Depth           int              `json:"depth"`
	ReachedFrom     string           `json:"reached_from,omitempty"`
	LinkText        string           `json:"link_text,omitempty"`
	DiscoveredLinks []DiscoveredLink `json:"discovered_links"`
	HTMLRef         string           `json:"html_ref,omitempty"`
	ScreenshotRef   string           `json:"screenshot_ref,omitempty"`
	FetchStatus     FetchStatus      `json:"fetch_status"`
	Error           string           `json:"error,omitempty"`
	ContentHash     string           `json:"content_hash,omitempty"`
	Readiness       *ReadySignal     `json:"readiness,omitempty"`
}

// SiteStructure maps normalized URLs to page records, preserving the order
// in which pages were visited.
type SiteStructure struct {
	Domain      string
	Seed        string
	Termination Termination
	// Pending is the number of frontier entries left when the crawl stopped
	Pending int

	records map[string]*PageRecord
	order   []string
}

// NewSiteStructure creates an empty structure for domain
func NewSiteStructure(domain, seed string) *SiteStructure {
	return &SiteStructure{
		Domain:  domain,
		Seed:    seed,
		records: make(map[string]*PageRecord),
	}
}

// Add stores a record. Each URL can be added once.
func (s *SiteStructure) Add(r *PageRecord) error {
	if _, exists := s.records[r.URL]; exists {
		return fmt.Errorf("page %s already recorded", r.URL)
	}
	s.records[r.URL] = r
	s.order = append(s.order, r.URL)
	return nil
}

// Has reports whether url has a record
func (s *SiteStructure) Has(url string) bool {
	_, ok := s.records[url]
	return ok
}

// Get returns the record for url
func (s *SiteStructure) Get(url string) (*PageRecord, bool) {
	r, ok := s.records[url]
	return r, ok
}

// Len returns the number of records
func (s *SiteStructure) Len() int {
	return len(s.order)
}

// URLs returns the record keys in visit order
func (s *SiteStructure) URLs() []string {
	return append([]string(nil), s.order...)
}

// Records returns the records in visit order
func (s *SiteStructure) Records() []*PageRecord {
	out := make([]*PageRecord, 0, len(s.order))
	for _, u := range s.order {
		out = append(out, s.records[u])
	}
	return out
}

// URLSet returns the URLs the crawl reached, for reconciliation: every
// record key plus the on-domain targets that rendered pages redirected to.
func (s *SiteStructure) URLSet() URLSet {
	set := NewURLSet(s.order...)
	for _, r := range s.records {
		if r.FinalURL != "" && r.FetchStatus == FetchOK && HostOf(r.FinalURL) == s.Domain {
			set.Add(r.FinalURL)
		}
	}
	return set
}

// Failures returns the number of records with a failed fetch
func (s *SiteStructure) Failures() int {
	n := 0
	for _, r := range s.records {
		if r.FetchStatus == FetchFailure {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the structure as an ordered list of page records
func (s *SiteStructure) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Records())
}
