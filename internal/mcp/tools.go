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

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentberlin/sitediff/storage"
)

func (s *MCPServer) registerTools() {
	s.registerCrawlSiteTool()
	s.registerListRunsTool()
	s.registerGetSitemapDiffTool()
}

// CrawlSiteArgs defines the input schema for crawl_site tool
type CrawlSiteArgs struct {
	URL      string `json:"url" jsonschema:"seed URL of the site to crawl"`
	MaxPages int    `json:"maxPages,omitempty" jsonschema:"stop after this many pages, 0 keeps the configured limit"`
}

// CrawlSiteResult defines the output of crawl_site tool
type CrawlSiteResult struct {
	Success            bool   `json:"success"`
	Domain             string `json:"domain,omitempty"`
	RunID              uint   `json:"runId,omitempty"`
	Pages              int    `json:"pages"`
	FailedPages        int    `json:"failedPages"`
	Termination        string `json:"termination,omitempty"`
	OnlyInSitemap      int    `json:"onlyInSitemap"`
	OnlyInCrawl        int    `json:"onlyInCrawl"`
	InBoth             int    `json:"inBoth"`
	SitemapUnavailable bool   `json:"sitemapUnavailable"`
	StructurePath      string `json:"structurePath,omitempty"`
	DiffPath           string `json:"diffPath,omitempty"`
	Message            string `json:"message"`
}

func (s *MCPServer) registerCrawlSiteTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "crawl_site",
		Description: "Crawls a site through its content links, compares the result with its sitemap and returns the diff summary",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CrawlSiteArgs) (*mcp.CallToolResult, any, error) {
		s.logger.WithField("url", args.URL).Info("Tool called: crawl_site")

		runner := s.app
		if args.MaxPages > 0 {
			runner = runner.WithMaxPages(args.MaxPages)
		}

		runDir := storage.RunDir(s.outputDir, time.Now())
		artifacts, err := storage.NewFileStorage(runDir)
		if err != nil {
			return toolResult(CrawlSiteResult{Message: err.Error()}, true)
		}

		result := runner.RunSite(ctx, args.URL, artifacts, runDir)
		out := CrawlSiteResult{
			Success:       !result.Failed(),
			Domain:        result.Domain,
			RunID:         result.RunID,
			StructurePath: result.StructureRef,
			DiffPath:      result.DiffRef,
			Message:       "Crawl finished",
		}
		if result.Structure != nil {
			out.Pages = result.Structure.Len()
			out.FailedPages = result.Structure.Failures()
			out.Termination = string(result.Structure.Termination)
		}
		if result.Diff != nil {
			out.OnlyInSitemap = len(result.Diff.OnlyInSitemap)
			out.OnlyInCrawl = len(result.Diff.OnlyInCrawl)
			out.InBoth = len(result.Diff.InBoth)
			out.SitemapUnavailable = result.Diff.SitemapUnavailable
		}
		if result.CrawlErr != nil {
			out.Message = fmt.Sprintf("Crawl failed: %v", result.CrawlErr)
		} else if result.SitemapErr != nil {
			out.Message = fmt.Sprintf("Crawl finished, sitemap unavailable: %v", result.SitemapErr)
		}
		return toolResult(out, result.Failed())
	})
}

// ListRunsArgs defines the input schema for list_runs tool
type ListRunsArgs struct {
	Domain string `json:"domain,omitempty" jsonschema:"only list runs of this domain"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of runs, newest first"`
}

// RunInfo is one entry of list_runs
type RunInfo struct {
	ID                 uint   `json:"id"`
	Domain             string `json:"domain"`
	StartedAt          string `json:"startedAt"`
	DurationMs         int64  `json:"durationMs"`
	Pages              int    `json:"pages"`
	FailedPages        int    `json:"failedPages"`
	Termination        string `json:"termination"`
	SitemapUnavailable bool   `json:"sitemapUnavailable"`
	OutputDir          string `json:"outputDir,omitempty"`
	Error              string `json:"error,omitempty"`
}

// ListRunsResult defines the output of list_runs tool
type ListRunsResult struct {
	Runs []RunInfo `json:"runs"`
}

func (s *MCPServer) registerListRunsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_runs",
		Description: "Lists recorded crawl runs, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListRunsArgs) (*mcp.CallToolResult, any, error) {
		runs, err := s.app.ListRuns(args.Domain, args.Limit)
		if err != nil {
			return errorResult(err)
		}

		out := ListRunsResult{Runs: make([]RunInfo, 0, len(runs))}
		for _, r := range runs {
			info := RunInfo{
				ID:                 r.ID,
				StartedAt:          time.Unix(r.StartedAt, 0).UTC().Format(time.RFC3339),
				DurationMs:         r.DurationMs,
				Pages:              r.PagesCrawled,
				FailedPages:        r.PagesFailed,
				Termination:        r.Termination,
				SitemapUnavailable: r.SitemapUnavailable,
				OutputDir:          r.OutputDir,
				Error:              r.Error,
			}
			if r.Site != nil {
				info.Domain = r.Site.Domain
			}
			out.Runs = append(out.Runs, info)
		}
		return toolResult(out, false)
	})
}

// GetSitemapDiffArgs defines the input schema for get_sitemap_diff tool
type GetSitemapDiffArgs struct {
	RunID  uint   `json:"runId,omitempty" jsonschema:"run to read, takes precedence over domain"`
	Domain string `json:"domain,omitempty" jsonschema:"read the latest run of this domain"`
}

func (s *MCPServer) registerGetSitemapDiffTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_sitemap_diff",
		Description: "Returns the sitemap diff of a run: URLs only in the sitemap, only in the crawl, and in both",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetSitemapDiffArgs) (*mcp.CallToolResult, any, error) {
		runID := args.RunID
		if runID == 0 {
			if args.Domain == "" {
				return errorResult(fmt.Errorf("either runId or domain is required"))
			}
			run, err := s.app.GetLatestRun(args.Domain)
			if err != nil {
				return errorResult(err)
			}
			runID = run.ID
		}

		diff, err := s.app.GetRunDiff(runID)
		if err != nil {
			return errorResult(err)
		}
		return toolResult(diff, false)
	})
}

// toolResult returns v as JSON text content
func toolResult(v any, isError bool) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil, nil
}

func errorResult(err error) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}, nil, nil
}
