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
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/agentberlin/sitediff/storage"
)

// windowLocationPattern extracts the target of onclick="window.location='...'"
var windowLocationPattern = regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*['"](.*?)['"]`)

// Limits bound a crawl
type Limits struct {
	// MaxPages caps the number of page records. 0 means unlimited.
	MaxPages int
	// MaxDepth caps the link distance from the seed. 0 means unlimited.
	MaxDepth int
	// MaxConsecutiveFailures aborts the crawl when more pages than this fail
	// in a row. 0 means never abort.
	MaxConsecutiveFailures int
}

// CrawlerConfig configures a Crawler
type CrawlerConfig struct {
	Renderer  Renderer
	Readiness ReadinessConfig
	// DomainFixes holds every configured fix entry; the ones matching the
	// crawl's domain are selected per crawl.
	DomainFixes DomainFixRuleSet
	// ExcludePatterns are globs of URLs that are recorded but never enqueued
	ExcludePatterns []string
	// LoaderSelector names a spinner element to wait for before settling
	LoaderSelector string
	// LoaderTimeout bounds the spinner wait
	LoaderTimeout time.Duration
	// Artifacts receives screenshots and HTML snapshots. Nil disables capture.
	Artifacts storage.Storage
	Logger    logrus.FieldLogger
	// OnPage is called after each page record is stored
	OnPage func(*PageRecord)
}

// Crawler visits a site breadth-first, following content links only.
// A Crawler holds no per-crawl state; every call to Crawl uses a new session.
type Crawler struct {
	renderer  Renderer
	detector  *ReadinessDetector
	fixes     DomainFixRuleSet
	excludes  []glob.Glob
	loaderSel string
	loaderTTL time.Duration
	artifacts storage.Storage
	logger    logrus.FieldLogger
	onPage    func(*PageRecord)
}

// NewCrawler validates the config and creates a Crawler
func NewCrawler(config *CrawlerConfig) (*Crawler, error) {
	if config.Renderer == nil {
		return nil, errors.New("crawler requires a renderer")
	}

	excludes := make([]glob.Glob, 0, len(config.ExcludePatterns))
	for _, pattern := range config.ExcludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	logger := config.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &Crawler{
		renderer:  config.Renderer,
		detector:  NewReadinessDetector(config.Readiness),
		fixes:     config.DomainFixes,
		excludes:  excludes,
		loaderSel: config.LoaderSelector,
		loaderTTL: config.LoaderTimeout,
		artifacts: config.Artifacts,
		logger:    logger,
		onPage:    config.OnPage,
	}, nil
}

// NormalizerFor returns the normalizer a crawl of domain uses
func (c *Crawler) NormalizerFor(domain string) *Normalizer {
	return NewNormalizer(domain, c.fixes.RulesFor(domain))
}

// session is the mutable state of one crawl. It is owned by the crawl loop.
type session struct {
	normalizer *Normalizer
	frontier   *Frontier
	structure  *SiteStructure
	failures   int
}

// Crawl visits seed and every page reachable from it through content links
// on the same host, in breadth-first order. The returned structure is never
// nil. On abort the error wraps ErrCrawlAborted and the structure holds the
// pages visited so far.
func (c *Crawler) Crawl(ctx context.Context, seed string, limits Limits) (*SiteStructure, error) {
	domain := HostOf(strings.TrimSpace(seed))
	if domain == "" {
		return NewSiteStructure("", seed), fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	s := &session{
		normalizer: c.NormalizerFor(domain),
		frontier:   NewFrontier(),
	}
	seedURL, err := s.normalizer.Normalize(seed, "")
	if err != nil {
		return NewSiteStructure(domain, seed), fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if !s.normalizer.IsSameDomain(seedURL) {
		return NewSiteStructure(domain, seedURL), fmt.Errorf("%w: fix rules move %s off %s", ErrInvalidSeed, seed, domain)
	}
	s.structure = NewSiteStructure(domain, seedURL)
	s.frontier.Push(FrontierEntry{URL: seedURL})

	log := c.logger.WithField("domain", domain)
	log.WithField("seed", seedURL).Info("Starting crawl")

	termination := TerminationCompleted
	for s.frontier.Len() > 0 {
		if limits.MaxPages > 0 && s.structure.Len() >= limits.MaxPages {
			termination = TerminationPageLimit
			break
		}
		if ctx.Err() != nil {
			termination = TerminationCanceled
			break
		}

		entry, _ := s.frontier.Pop()
		if s.structure.Has(entry.URL) {
			continue
		}

		record := c.visit(ctx, s, entry, limits)
		if err := s.structure.Add(record); err != nil {
			return s.finish(termination), err
		}
		if c.onPage != nil {
			c.onPage(record)
		}

		if record.FetchStatus == FetchOK {
			s.failures = 0
			continue
		}
		s.failures++
		if limits.MaxConsecutiveFailures > 0 && s.failures > limits.MaxConsecutiveFailures {
			log.WithFields(logrus.Fields{
				"failures": s.failures,
				"last_url": record.URL,
			}).Error("Too many consecutive render failures, aborting crawl")
			return s.finish(TerminationAborted), fmt.Errorf("%w: %d consecutive render failures, last %s: %s",
				ErrCrawlAborted, s.failures, record.URL, record.Error)
		}
	}

	structure := s.finish(termination)
	log.WithFields(logrus.Fields{
		"pages":       structure.Len(),
		"failures":    structure.Failures(),
		"pending":     structure.Pending,
		"termination": termination,
	}).Info("Crawl finished")

	if termination == TerminationCanceled {
		return structure, ctx.Err()
	}
	return structure, nil
}

func (s *session) finish(t Termination) *SiteStructure {
	s.structure.Termination = t
	s.structure.Pending = s.frontier.Len()
	return s.structure
}

// visit renders one page and builds its record. Failures are recorded on
// the record, never returned.
func (c *Crawler) visit(ctx context.Context, s *session, entry FrontierEntry, limits Limits) *PageRecord {
	record := &PageRecord{
		URL:         entry.URL,
		Depth:       entry.Depth,
		ReachedFrom: entry.Parent,
		LinkText:    entry.LinkText,
		FetchStatus: FetchOK,
	}
	log := c.logger.WithFields(logrus.Fields{"url": entry.URL, "depth": entry.Depth})
	log.Info("Crawling page")

	page, err := c.renderer.Load(ctx, entry.URL)
	if err != nil {
		return failRecord(log, record, err)
	}
	defer page.Close()

	if finalURL, err := s.normalizer.Normalize(page.URL(), ""); err == nil && finalURL != entry.URL {
		record.FinalURL = finalURL
		if s.normalizer.IsSameDomain(finalURL) {
			s.frontier.MarkVisited(finalURL)
		}
		log.WithField("final_url", finalURL).Debug("Page redirected")
	}

	if c.loaderSel != "" {
		gone, err := page.WaitGone(ctx, c.loaderSel, c.loaderTTL)
		if err != nil {
			log.WithError(err).Debug("Loader wait failed")
		} else if !gone {
			log.WithField("selector", c.loaderSel).Warn("Loader still visible after timeout")
		}
	}

	signal, err := c.detector.Settle(ctx, page)
	switch {
	case errors.Is(err, ErrScrollReset):
		log.WithError(err).Warn("Could not scroll back to top before capture")
	case err != nil:
		return failRecord(log, record, err)
	}
	record.Readiness = &signal
	if signal.Outcome == Exhausted {
		log.WithField("attempts", signal.Iterations).Warn("Page kept growing, capture may be incomplete")
	}
	if !signal.ImagesLoaded {
		log.Warn("Some images did not finish loading")
	}

	html, err := page.Content(ctx)
	if err != nil {
		return failRecord(log, record, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return failRecord(log, record, fmt.Errorf("failed to parse HTML: %w", err))
	}

	c.capture(ctx, s, page, record, html)

	record.Title = pageTitle(doc)
	record.ContentHash = ContentHash(doc)

	base := page.URL()
	if href := baseHref(doc); href != "" {
		if resolved, err := urlParser.ParseRef(base, href); err == nil {
			base = resolved.Href(true)
		}
	}
	record.DiscoveredLinks = extractLinks(doc, PageContext{BaseURL: base, Normalizer: s.normalizer})

	c.expand(s, record, limits)
	return record
}

func failRecord(log logrus.FieldLogger, record *PageRecord, err error) *PageRecord {
	renderErr := &RenderError{URL: record.URL, Err: err}
	log.WithError(err).Warn("Failed to render page")
	record.FetchStatus = FetchFailure
	record.Error = renderErr.Error()
	record.DiscoveredLinks = []DiscoveredLink{}
	return record
}

// capture stores the screenshot and HTML snapshot. Storage problems are
// logged and leave the corresponding reference empty.
func (c *Crawler) capture(ctx context.Context, s *session, page Page, record *PageRecord, html string) {
	if c.artifacts == nil {
		return
	}
	domain := s.normalizer.Domain()
	slug := storage.PageSlug(record.URL)
	log := c.logger.WithField("url", record.URL)

	if png, err := page.Screenshot(ctx); err != nil {
		log.WithError(err).Warn("Failed to take screenshot")
	} else if ref, err := c.artifacts.Save(domain, storage.KindScreenshot, slug, png); err != nil {
		log.WithError(err).Warn("Failed to save screenshot")
	} else {
		record.ScreenshotRef = ref
	}

	if ref, err := c.artifacts.Save(domain, storage.KindHTML, slug, []byte(html)); err != nil {
		log.WithError(err).Warn("Failed to save HTML")
	} else {
		record.HTMLRef = ref
	}
}

// expand pushes the page's content links onto the frontier in document order
func (c *Crawler) expand(s *session, record *PageRecord, limits Limits) {
	nextDepth := record.Depth + 1
	if limits.MaxDepth > 0 && nextDepth > limits.MaxDepth {
		return
	}
	for i := range record.DiscoveredLinks {
		link := &record.DiscoveredLinks[i]
		if link.Class != LinkContent {
			continue
		}
		if c.isExcluded(link.URL) {
			link.Excluded = true
			continue
		}
		s.frontier.Push(FrontierEntry{
			URL:      link.URL,
			Depth:    nextDepth,
			Parent:   record.URL,
			LinkText: link.Text,
		})
	}
}

func (c *Crawler) isExcluded(url string) bool {
	for _, g := range c.excludes {
		if g.Match(url) {
			return true
		}
	}
	return false
}

// extractLinks classifies anchors and image-map areas in document order,
// followed by the targets of window.location buttons.
func extractLinks(doc *goquery.Document, pc PageContext) []DiscoveredLink {
	links := []DiscoveredLink{}

	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		links = append(links, newDiscoveredLink(href, goquery.NodeName(sel), sel, pc))
	})

	if len(doc.Nodes) == 0 {
		return links
	}
	for _, node := range htmlquery.Find(doc.Nodes[0], "//button[contains(@onclick, 'window.location')]") {
		match := windowLocationPattern.FindStringSubmatch(htmlquery.SelectAttr(node, "onclick"))
		if match == nil {
			continue
		}
		links = append(links, newDiscoveredLink(match[1], "button", doc.FindNodes(node), pc))
	}
	return links
}

func newDiscoveredLink(href, source string, sel *goquery.Selection, pc PageContext) DiscoveredLink {
	class := ClassifyHref(href, sel, pc)
	link := DiscoveredLink{
		URL:      class.URL,
		Href:     href,
		Text:     linkText(sel),
		Class:    class.Class,
		Reason:   class.Reason,
		Position: class.Position,
		Source:   source,
	}
	if link.URL == "" {
		link.URL = strings.TrimSpace(href)
	}
	if class.Class != LinkSkip {
		link.DOMPath = buildDOMPath(sel)
	}
	return link
}
