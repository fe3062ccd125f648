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

// Package app runs the per-site pipeline shared by the CLI and the MCP
// server: crawl, fetch the sitemap, reconcile, write outputs and record the
// run in the history store.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentberlin/sitediff"
	"github.com/agentberlin/sitediff/internal/config"
	"github.com/agentberlin/sitediff/internal/logging"
	"github.com/agentberlin/sitediff/internal/store"
	"github.com/agentberlin/sitediff/storage"
)

// RendererFactory opens a renderer for one site. The caller closes it.
type RendererFactory func(logger logrus.FieldLogger) (sitediff.Renderer, error)

// ChromeRendererFactory returns a factory that starts Chrome with the
// browser settings of s.
func ChromeRendererFactory(s *config.Settings) RendererFactory {
	return func(logger logrus.FieldLogger) (sitediff.Renderer, error) {
		execPath, _ := FindChrome()
		return sitediff.NewChromedpRenderer(sitediff.ChromedpConfig{
			Headless:       s.Headless,
			NetworkTimeout: s.NetworkTimeout(),
			ViewportWidth:  s.ViewportWidth,
			ViewportHeight: s.ViewportHeight,
			UserAgent:      s.UserAgent,
			ExecPath:       execPath,
			Logger:         logger,
		})
	}
}

// Options configures an App
type Options struct {
	Settings *config.Settings
	// Store records finished runs. Nil disables history.
	Store   *store.Store
	Emitter EventEmitter
	Logger  logrus.FieldLogger
	// NewRenderer defaults to ChromeRendererFactory(Settings)
	NewRenderer RendererFactory
	// HTTPClient is used for sitemaps and robots.txt
	HTTPClient *http.Client
}

// App represents the core application logic
type App struct {
	settings    *config.Settings
	fixes       sitediff.DomainFixRuleSet
	store       *store.Store
	emitter     EventEmitter
	logger      logrus.FieldLogger
	newRenderer RendererFactory
	sitemaps    *sitediff.SitemapFetcher
}

// NewApp creates a new App instance with dependencies injected
func NewApp(opts Options) (*App, error) {
	settings := opts.Settings
	if settings == nil {
		settings = config.Defaults()
	}
	fixes, err := settings.CompileDomainFixes()
	if err != nil {
		return nil, err
	}

	emitter := opts.Emitter
	if emitter == nil {
		emitter = &NoOpEmitter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	newRenderer := opts.NewRenderer
	if newRenderer == nil {
		newRenderer = ChromeRendererFactory(settings)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: settings.NetworkTimeout()}
	}

	return &App{
		settings:    settings,
		fixes:       fixes,
		store:       opts.Store,
		emitter:     emitter,
		logger:      logger,
		newRenderer: newRenderer,
		sitemaps: sitediff.NewSitemapFetcher(sitediff.SitemapConfig{
			Client:     client,
			Retries:    settings.SitemapRequestRetries,
			RetryDelay: settings.SitemapRetryDelay(),
			UserAgent:  settings.UserAgent,
			Logger:     logger,
		}),
	}, nil
}

// Settings returns the settings the app runs with
func (a *App) Settings() *config.Settings {
	return a.settings
}

// SiteResult is the outcome of one site
type SiteResult struct {
	Seed      string                  `json:"seed"`
	Domain    string                  `json:"domain"`
	Structure *sitediff.SiteStructure `json:"-"`
	Diff      *sitediff.DiffReport    `json:"diff,omitempty"`
	// StructureRef and DiffRef locate the written JSON outputs
	StructureRef string `json:"structure_ref,omitempty"`
	DiffRef      string `json:"diff_ref,omitempty"`
	// RunID is the history id, 0 when no store is configured
	RunID uint `json:"run_id,omitempty"`
	// SitemapErr is set when the sitemap was unavailable. The diff is still
	// produced and the site does not count as failed.
	SitemapErr error `json:"-"`
	// CrawlErr is set when the site could not be crawled to a result
	CrawlErr error `json:"-"`
}

// Failed reports whether the site should make the process exit non-zero
func (r *SiteResult) Failed() bool {
	return r.CrawlErr != nil
}

// RunAll processes seeds one after another. A failing site does not stop
// the remaining ones; ctx cancellation does.
func (a *App) RunAll(ctx context.Context, seeds []string, artifacts storage.Storage, outputDir string) []*SiteResult {
	results := make([]*SiteResult, 0, len(seeds))
	for i, seed := range seeds {
		if ctx.Err() != nil {
			a.logger.WithField("remaining", len(seeds)-i).Warn("Run canceled, skipping remaining sites")
			break
		}
		results = append(results, a.RunSite(ctx, seed, artifacts, outputDir))
	}
	return results
}

// RunSite crawls one site and reconciles it with its sitemap. The outputs
// are written through artifacts; outputDir is recorded in the run history.
func (a *App) RunSite(ctx context.Context, seed string, artifacts storage.Storage, outputDir string) *SiteResult {
	started := time.Now()
	result := &SiteResult{Seed: seed, Domain: sitediff.HostOf(seed)}
	log := a.logger.WithFields(logrus.Fields{"seed": seed, "domain": result.Domain})

	if result.Domain == "" {
		result.CrawlErr = fmt.Errorf("%w: %q", sitediff.ErrInvalidSeed, seed)
		log.WithError(result.CrawlErr).Error("Skipping site")
		return result
	}
	a.emitter.Emit(EventSiteStarted, SiteStartedEvent{Seed: seed, Domain: result.Domain})

	renderer, err := a.newRenderer(log)
	if err != nil {
		result.CrawlErr = fmt.Errorf("failed to start renderer: %w", err)
		log.WithError(result.CrawlErr).Error("Skipping site")
		return result
	}
	defer renderer.Close()

	pages := 0
	crawler, err := sitediff.NewCrawler(&sitediff.CrawlerConfig{
		Renderer:        renderer,
		Readiness:       a.settings.Readiness(),
		DomainFixes:     a.fixes,
		ExcludePatterns: a.settings.ExcludePatterns,
		LoaderSelector:  a.settings.LoaderSelector,
		LoaderTimeout:   a.settings.NetworkTimeout(),
		Artifacts:       artifacts,
		Logger:          log,
		OnPage: func(r *sitediff.PageRecord) {
			pages++
			a.emitter.Emit(EventPageCrawled, PageCrawledEvent{
				Domain:      result.Domain,
				URL:         r.URL,
				Depth:       r.Depth,
				FetchStatus: string(r.FetchStatus),
				Count:       pages,
			})
		},
	})
	if err != nil {
		result.CrawlErr = err
		return result
	}

	structure, crawlErr := crawler.Crawl(ctx, seed, a.settings.Limits())
	result.Structure = structure
	if errors.Is(crawlErr, sitediff.ErrInvalidSeed) {
		result.CrawlErr = crawlErr
		log.WithError(crawlErr).Error("Skipping site")
		return result
	}
	result.CrawlErr = crawlErr

	sitemapURLs, sitemapErr := a.sitemaps.FetchSet(ctx, structure.Seed, crawler.NormalizerFor(result.Domain))
	if sitemapErr != nil {
		result.SitemapErr = sitemapErr
		result.Diff = sitediff.ReconcileUnavailable(structure.URLSet(), sitemapErr)
		log.WithError(sitemapErr).Error("Sitemap unavailable, reporting every crawled URL as only in crawl")
	} else {
		result.Diff = sitediff.Reconcile(structure.URLSet(), sitemapURLs)
	}

	a.writeOutputs(log, result, artifacts)
	a.recordRun(log, result, started, outputDir)

	log.WithFields(logrus.Fields{
		"pages":           structure.Len(),
		"termination":     structure.Termination,
		"only_in_sitemap": len(result.Diff.OnlyInSitemap),
		"only_in_crawl":   len(result.Diff.OnlyInCrawl),
		"in_both":         len(result.Diff.InBoth),
	}).Info("Site finished")
	a.emitter.Emit(EventSiteCompleted, result)
	return result
}

func (a *App) writeOutputs(log logrus.FieldLogger, result *SiteResult, artifacts storage.Storage) {
	if artifacts == nil {
		return
	}
	folder := storage.DomainFolder(result.Domain)

	ref, err := artifacts.WriteJSON(result.Domain, "site_structure_"+folder, result.Structure)
	if err != nil {
		log.WithError(err).Error("Failed to write site structure")
	} else {
		result.StructureRef = ref
		log.WithField("path", ref).Info("Site structure written")
	}

	ref, err = artifacts.WriteJSON(result.Domain, "sitemap_diff_"+folder, result.Diff)
	if err != nil {
		log.WithError(err).Error("Failed to write sitemap diff")
	} else {
		result.DiffRef = ref
		log.WithField("path", ref).Info("Sitemap diff written")
	}
}

// recordRun saves the run to the history store. History is best effort.
func (a *App) recordRun(log logrus.FieldLogger, result *SiteResult, started time.Time, outputDir string) {
	if a.store == nil {
		return
	}
	run, err := a.store.SaveRun(store.RunSummary{
		SeedURL:   result.Seed,
		StartedAt: started,
		Duration:  time.Since(started),
		OutputDir: outputDir,
		Err:       result.CrawlErr,
	}, result.Structure, result.Diff)
	if err != nil {
		log.WithError(err).Warn("Failed to record run history")
		return
	}
	result.RunID = run.ID
}

// ListRuns returns recorded runs newest first
func (a *App) ListRuns(domain string, limit int) ([]store.Run, error) {
	if a.store == nil {
		return nil, errors.New("run history is not configured")
	}
	return a.store.ListRuns(domain, limit)
}

// GetRunDiff returns the stored diff of a run
func (a *App) GetRunDiff(runID uint) (*sitediff.DiffReport, error) {
	if a.store == nil {
		return nil, errors.New("run history is not configured")
	}
	return a.store.GetRunDiff(runID)
}

// GetLatestRun returns the most recent recorded run of domain
func (a *App) GetLatestRun(domain string) (*store.Run, error) {
	if a.store == nil {
		return nil, errors.New("run history is not configured")
	}
	return a.store.GetLatestRun(domain)
}

// WithMaxPages returns a copy of the app whose crawls stop after n pages
func (a *App) WithMaxPages(n int) *App {
	settings := *a.settings
	settings.MaxPages = n
	clone := *a
	clone.settings = &settings
	return &clone
}
