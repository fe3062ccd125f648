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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/saintfish/chardet"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

// maxSitemapBytes caps a single sitemap download
const maxSitemapBytes = 50 << 20

// errNotFound marks responses that are not worth retrying
var errNotFound = errors.New("not found")

// SitemapConfig configures a SitemapFetcher
type SitemapConfig struct {
	Client *http.Client
	// Retries is the number of attempts per sitemap URL
	Retries int
	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
	UserAgent  string
	// MaxIndexDepth bounds how deep sitemap indexes are followed
	MaxIndexDepth int
	Logger        logrus.FieldLogger
}

// SitemapFetcher downloads and flattens sitemaps
type SitemapFetcher struct {
	client     *http.Client
	retries    int
	retryDelay time.Duration
	userAgent  string
	maxDepth   int
	logger     logrus.FieldLogger
}

// NewSitemapFetcher creates a fetcher, filling in defaults for zero values
func NewSitemapFetcher(config SitemapConfig) *SitemapFetcher {
	f := &SitemapFetcher{
		client:     config.Client,
		retries:    config.Retries,
		retryDelay: config.RetryDelay,
		userAgent:  config.UserAgent,
		maxDepth:   config.MaxIndexDepth,
		logger:     config.Logger,
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 30 * time.Second}
	}
	if f.retries < 1 {
		f.retries = 1
	}
	if f.maxDepth < 1 {
		f.maxDepth = 3
	}
	if f.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		f.logger = l
	}
	return f
}

// Discover returns the sitemap locations for the site at siteURL:
// the Sitemap lines of robots.txt when present, otherwise the default
// /sitemap.xml and /sitemap_index.xml locations. fromRobots reports
// which of the two it returned.
func (f *SitemapFetcher) Discover(ctx context.Context, siteURL string) (locations []string, fromRobots bool) {
	root, err := urlParser.ParseRef(siteURL, "/")
	if err != nil {
		return nil, false
	}
	base := strings.TrimSuffix(root.Href(true), "/")

	body, status, err := f.get(ctx, base+"/robots.txt")
	if err == nil {
		if robots, err := robotstxt.FromStatusAndBytes(status, body); err == nil && len(robots.Sitemaps) > 0 {
			return robots.Sitemaps, true
		}
	}
	return []string{base + "/sitemap.xml", base + "/sitemap_index.xml"}, false
}

// FetchSet discovers the site's sitemaps and returns every <loc> normalized
// with n. Robots-declared sitemaps are all read; default locations stop at
// the first that works. When nothing could be read the error wraps
// ErrSitemapUnavailable.
func (f *SitemapFetcher) FetchSet(ctx context.Context, siteURL string, n *Normalizer) (URLSet, error) {
	candidates, fromRobots := f.Discover(ctx, siteURL)

	set := make(URLSet)
	var errs []error
	found := false
	for _, candidate := range candidates {
		locs, err := f.Fetch(ctx, candidate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = true
		for _, loc := range locs {
			normalized, err := n.Normalize(loc, candidate)
			if err != nil {
				f.logger.WithError(err).WithField("loc", loc).Debug("Skipping sitemap entry")
				continue
			}
			set.Add(normalized)
		}
		if !fromRobots {
			break
		}
	}

	if !found {
		if len(errs) == 0 {
			errs = append(errs, fmt.Errorf("no sitemap location for %s", siteURL))
		}
		return set, fmt.Errorf("%w: %w", ErrSitemapUnavailable, errors.Join(errs...))
	}
	return set, nil
}

// Fetch downloads sitemapURL and returns its <loc> values, following
// sitemap indexes up to the configured depth.
func (f *SitemapFetcher) Fetch(ctx context.Context, sitemapURL string) ([]string, error) {
	seen := map[string]bool{}
	return f.fetch(ctx, sitemapURL, 0, seen)
}

func (f *SitemapFetcher) fetch(ctx context.Context, sitemapURL string, depth int, seen map[string]bool) ([]string, error) {
	if seen[sitemapURL] {
		return nil, nil
	}
	seen[sitemapURL] = true

	body, err := f.download(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", sitemapURL, err)
	}

	if index := xmlquery.Find(doc, "//*[local-name()='sitemapindex']/*[local-name()='sitemap']/*[local-name()='loc']"); len(index) > 0 {
		if depth+1 > f.maxDepth {
			return nil, fmt.Errorf("sitemap index %s nested deeper than %d levels", sitemapURL, f.maxDepth)
		}
		// An index counts as read when at least one child was.
		var locs []string
		var errs []error
		read := 0
		for _, node := range index {
			child := strings.TrimSpace(node.InnerText())
			childLocs, err := f.fetch(ctx, child, depth+1, seen)
			if err != nil {
				f.logger.WithError(err).WithField("sitemap", child).Warn("Failed to fetch child sitemap")
				errs = append(errs, err)
				continue
			}
			read++
			locs = append(locs, childLocs...)
		}
		if read == 0 {
			return nil, fmt.Errorf("no child of sitemap index %s could be read: %w", sitemapURL, errors.Join(errs...))
		}
		return locs, nil
	}

	nodes := xmlquery.Find(doc, "//*[local-name()='urlset']/*[local-name()='url']/*[local-name()='loc']")
	if len(nodes) == 0 && xmlquery.FindOne(doc, "//*[local-name()='urlset']") == nil {
		return nil, fmt.Errorf("%s is not a sitemap", sitemapURL)
	}
	locs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// download fetches url with retries and returns a UTF-8 (or self-declared
// encoding) body, gunzipping .gz sitemaps.
func (f *SitemapFetcher) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retries; attempt++ {
		body, status, err := f.get(ctx, url)
		if err == nil && status == http.StatusOK {
			return decodeSitemap(body)
		}
		if err == nil {
			err = fmt.Errorf("HTTP %d", status)
			if status == http.StatusNotFound || status == http.StatusGone {
				return nil, fmt.Errorf("sitemap %s: %w: %w", url, errNotFound, err)
			}
		}
		lastErr = fmt.Errorf("sitemap %s: %w", url, err)
		f.logger.WithFields(logrus.Fields{
			"sitemap": url,
			"attempt": attempt,
			"of":      f.retries,
		}).WithError(err).Warn("Error fetching sitemap")

		if attempt < f.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}
	}
	return nil, lastErr
}

func (f *SitemapFetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// decodeSitemap gunzips compressed sitemaps and converts bodies without an
// encoding declaration to UTF-8 using charset detection.
func decodeSitemap(body []byte) ([]byte, error) {
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip sitemap: %w", err)
		}
		defer zr.Close()
		if body, err = io.ReadAll(io.LimitReader(zr, maxSitemapBytes)); err != nil {
			return nil, fmt.Errorf("failed to read gzip sitemap: %w", err)
		}
	}

	if utf8.Valid(body) || declaresEncoding(body) {
		return body, nil
	}

	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil {
		return body, nil
	}
	r, err := charset.NewReaderLabel(result.Charset, bytes.NewReader(body))
	if err != nil {
		return body, nil
	}
	return io.ReadAll(r)
}

func declaresEncoding(body []byte) bool {
	head := body
	if len(head) > 200 {
		head = head[:200]
	}
	return bytes.HasPrefix(bytes.TrimSpace(head), []byte("<?xml")) && bytes.Contains(head, []byte("encoding="))
}
