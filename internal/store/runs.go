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
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agentberlin/sitediff"
)

// RunSummary describes a finished run for SaveRun. Pages and the diff come
// from the crawl result itself.
type RunSummary struct {
	SeedURL   string
	StartedAt time.Time
	Duration  time.Duration
	OutputDir string
	// Err is the crawl error, if any
	Err error
}

// GetOrCreateSite gets an existing site by domain or creates a new one.
// The stored seed URL is updated to url.
func (s *Store) GetOrCreateSite(url, domain string) (*Site, error) {
	var site Site

	result := s.db.Where("domain = ?", domain).First(&site)
	if result.Error == nil {
		if site.URL != url {
			site.URL = url
			if err := s.db.Save(&site).Error; err != nil {
				return nil, fmt.Errorf("failed to update site: %v", err)
			}
		}
		return &site, nil
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query site: %v", result.Error)
	}

	site = Site{URL: url, Domain: domain}
	if err := s.db.Create(&site).Error; err != nil {
		return nil, fmt.Errorf("failed to create site: %v", err)
	}
	return &site, nil
}

// SaveRun stores a run with its pages and diff in one transaction
func (s *Store) SaveRun(summary RunSummary, structure *sitediff.SiteStructure, diff *sitediff.DiffReport) (*Run, error) {
	if structure == nil {
		return nil, errors.New("cannot save a run without a site structure")
	}

	site, err := s.GetOrCreateSite(summary.SeedURL, structure.Domain)
	if err != nil {
		return nil, err
	}

	run := Run{
		SiteID:       site.ID,
		StartedAt:    summary.StartedAt.Unix(),
		DurationMs:   summary.Duration.Milliseconds(),
		PagesCrawled: structure.Len(),
		PagesFailed:  structure.Failures(),
		Termination:  string(structure.Termination),
		OutputDir:    summary.OutputDir,
	}
	if summary.Err != nil {
		run.Error = summary.Err.Error()
	}
	if diff != nil {
		run.SitemapUnavailable = diff.SitemapUnavailable
		run.SitemapError = diff.SitemapError
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("failed to create run: %v", err)
		}

		pages := pageRows(run.ID, structure)
		if len(pages) > 0 {
			if err := tx.CreateInBatches(pages, 200).Error; err != nil {
				return fmt.Errorf("failed to save pages: %v", err)
			}
		}

		entries := diffRows(run.ID, diff)
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, 500).Error; err != nil {
				return fmt.Errorf("failed to save diff: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func pageRows(runID uint, structure *sitediff.SiteStructure) []Page {
	records := structure.Records()
	pages := make([]Page, 0, len(records))
	for i, r := range records {
		p := Page{
			RunID:          runID,
			Position:       i,
			URL:            r.URL,
			Title:          r.Title,
			Depth:          r.Depth,
			ReachedFrom:    r.ReachedFrom,
			FetchStatus:    string(r.FetchStatus),
			Error:          r.Error,
			ScreenshotPath: r.ScreenshotRef,
			HTMLPath:       r.HTMLRef,
			ContentHash:    r.ContentHash,
		}
		for _, link := range r.DiscoveredLinks {
			switch link.Class {
			case sitediff.LinkContent:
				p.ContentLinks++
			case sitediff.LinkChrome:
				p.ChromeLinks++
			default:
				p.SkippedLinks++
			}
		}
		pages = append(pages, p)
	}
	return pages
}

func diffRows(runID uint, diff *sitediff.DiffReport) []DiffEntry {
	if diff == nil {
		return nil
	}
	var entries []DiffEntry
	add := func(set sitediff.URLSet, category string) {
		for _, u := range set.Sorted() {
			entries = append(entries, DiffEntry{RunID: runID, URL: u, Category: category})
		}
	}
	add(diff.OnlyInSitemap, CategoryOnlyInSitemap)
	add(diff.OnlyInCrawl, CategoryOnlyInCrawl)
	add(diff.InBoth, CategoryInBoth)
	return entries
}

// ListRuns returns runs newest first. An empty domain lists every site.
// limit <= 0 means no limit.
func (s *Store) ListRuns(domain string, limit int) ([]Run, error) {
	var runs []Run
	query := s.db.Preload("Site").Order("runs.started_at DESC, runs.id DESC")
	if domain != "" {
		query = query.Joins("JOIN sites ON sites.id = runs.site_id").Where("sites.domain = ?", domain)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to get runs: %v", err)
	}
	return runs, nil
}

// GetRun returns a run with its site and pages in visit order
func (s *Store) GetRun(id uint) (*Run, error) {
	var run Run
	result := s.db.Preload("Site").
		Preload("Pages", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&run, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %d not found", id)
		}
		return nil, fmt.Errorf("failed to get run: %v", result.Error)
	}
	return &run, nil
}

// GetLatestRun returns the most recent run of domain
func (s *Store) GetLatestRun(domain string) (*Run, error) {
	runs, err := s.ListRuns(domain, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs for %s", domain)
	}
	return s.GetRun(runs[0].ID)
}

// GetRunDiff rebuilds the diff report stored for a run
func (s *Store) GetRunDiff(id uint) (*sitediff.DiffReport, error) {
	var run Run
	if err := s.db.First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %d not found", id)
		}
		return nil, fmt.Errorf("failed to get run: %v", err)
	}

	var entries []DiffEntry
	if err := s.db.Where("run_id = ?", id).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get diff entries: %v", err)
	}

	report := &sitediff.DiffReport{
		OnlyInSitemap:      sitediff.NewURLSet(),
		OnlyInCrawl:        sitediff.NewURLSet(),
		InBoth:             sitediff.NewURLSet(),
		SitemapUnavailable: run.SitemapUnavailable,
		SitemapError:       run.SitemapError,
	}
	for _, e := range entries {
		switch e.Category {
		case CategoryOnlyInSitemap:
			report.OnlyInSitemap.Add(e.URL)
		case CategoryOnlyInCrawl:
			report.OnlyInCrawl.Add(e.URL)
		case CategoryInBoth:
			report.InBoth.Add(e.URL)
		}
	}
	return report, nil
}

// DeleteRun removes a run with its pages and diff entries
func (s *Store) DeleteRun(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&Page{}).Error; err != nil {
			return fmt.Errorf("failed to delete pages: %v", err)
		}
		if err := tx.Where("run_id = ?", id).Delete(&DiffEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete diff entries: %v", err)
		}
		result := tx.Delete(&Run{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete run: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("run %d not found", id)
		}
		return nil
	})
}
