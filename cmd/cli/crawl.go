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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentberlin/sitediff/internal/app"
	"github.com/agentberlin/sitediff/internal/config"
	"github.com/agentberlin/sitediff/internal/logging"
	"github.com/agentberlin/sitediff/internal/store"
	"github.com/agentberlin/sitediff/storage"
)

func runCrawl(cmd *cobra.Command, flags *rootFlags) error {
	// argument and settings problems are reported before anything is created
	seeds, err := config.ResolveTargets(flags.url, flags.sitesFile)
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(flags.settingsFile)
	if err != nil {
		return err
	}
	applyOverrides(cmd, flags, settings)

	if err := app.CheckSystemHealth(); err != nil {
		return err
	}

	started := time.Now()
	runDir := storage.RunDir(settings.OutputDir, started)
	logger, closeLog, err := logging.New(logging.Options{
		Level:   settings.LogLevel,
		Console: cmd.ErrOrStderr(),
		File:    filepath.Join(runDir, logging.LogFileName(started.Format(storage.RunTimestampLayout))),
	})
	if err != nil {
		return err
	}
	defer closeLog()

	artifacts, err := storage.NewFileStorage(runDir)
	if err != nil {
		return err
	}

	st := openHistory(logger, flags, settings)
	if st != nil {
		defer st.Close()
	}

	coreApp, err := app.NewApp(app.Options{
		Settings: settings,
		Store:    st,
		Emitter:  &progressEmitter{out: cmd.OutOrStdout()},
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{"sites": len(seeds), "output": runDir}).Info("Starting run")
	results := coreApp.RunAll(ctx, seeds, artifacts, runDir)
	printSummary(cmd.OutOrStdout(), results)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sites failed", failed, len(seeds))
	}
	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return nil
}

// applyOverrides copies explicitly set flags over the settings file values
func applyOverrides(cmd *cobra.Command, flags *rootFlags, settings *config.Settings) {
	if cmd.Flags().Changed("max-pages") {
		settings.MaxPages = flags.maxPages
	}
	if cmd.Flags().Changed("headless") {
		settings.Headless = flags.headless
	}
	if flags.dbPath != "" {
		settings.DatabasePath = flags.dbPath
	}
}

// openHistory opens the run history. A database that cannot be opened
// disables history for this run instead of failing it.
func openHistory(logger logrus.FieldLogger, flags *rootFlags, settings *config.Settings) *store.Store {
	if flags.noHistory {
		return nil
	}
	st, err := store.NewStore(settings.DatabasePath)
	if err != nil {
		logger.WithError(err).Warn("Run history disabled")
		return nil
	}
	return st
}

// progressEmitter prints one line per crawled page
type progressEmitter struct {
	out io.Writer
}

func (e *progressEmitter) Emit(eventType app.EventType, data interface{}) {
	switch ev := data.(type) {
	case app.SiteStartedEvent:
		fmt.Fprintf(e.out, "Crawling %s\n", ev.Seed)
	case app.PageCrawledEvent:
		status := ""
		if ev.FetchStatus != "ok" {
			status = " (" + ev.FetchStatus + ")"
		}
		fmt.Fprintf(e.out, "  [%d] %s%s\n", ev.Count, ev.URL, status)
	}
}

func printSummary(w io.Writer, results []*app.SiteResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-30s %-8s %-12s %-10s %-10s %-10s\n", "Domain", "Pages", "Termination", "Sitemap", "Crawl", "Both")
	fmt.Fprintln(w, "-------------------------------------------------------------------------------------")
	for _, r := range results {
		if r.Structure == nil || r.Diff == nil {
			fmt.Fprintf(w, "%-30s failed: %v\n", truncate(r.Seed, 30), r.CrawlErr)
			continue
		}
		sitemap := fmt.Sprintf("%d", len(r.Diff.OnlyInSitemap))
		if r.Diff.SitemapUnavailable {
			sitemap = "n/a"
		}
		fmt.Fprintf(w, "%-30s %-8d %-12s %-10s %-10d %-10d\n",
			truncate(r.Domain, 30), r.Structure.Len(), r.Structure.Termination,
			sitemap, len(r.Diff.OnlyInCrawl), len(r.Diff.InBoth))
		if r.CrawlErr != nil {
			fmt.Fprintf(w, "  error: %v\n", r.CrawlErr)
		}
		if r.SitemapErr != nil {
			fmt.Fprintf(w, "  sitemap unavailable: %v\n", r.SitemapErr)
		}
		if r.DiffRef != "" {
			fmt.Fprintf(w, "  diff: %s\n", r.DiffRef)
		}
	}
}
