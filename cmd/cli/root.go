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
	"github.com/spf13/cobra"
)

// rootFlags holds the flags of the crawl (root) command
type rootFlags struct {
	url          string
	sitesFile    string
	settingsFile string
	maxPages     int
	headless     bool
	noHistory    bool
	dbPath       string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "sitediff",
		Short: "Crawl sites and compare what is reachable with what the sitemap declares",
		Long: `sitediff renders every page reachable through a site's content links,
skipping navigation, header and footer links, and saves a screenshot and the
HTML of each page. The crawled URLs are then compared with the site's sitemap.

Outputs are written to <output_dir>/<timestamp>/<domain>/.`,
		Example: `  # Crawl one site
  sitediff --url https://example.com

  # Crawl every site of a list with custom settings
  sitediff --config sites.json --settings-file settings.yaml

  # Stop after 50 pages
  sitediff --url https://example.com --max-pages 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, &flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.url, "url", "u", "", "Seed URL of a single site")
	f.StringVarP(&flags.sitesFile, "config", "c", "", "JSON file listing sites: {\"urls\": [...]}")
	f.StringVarP(&flags.settingsFile, "settings-file", "s", "", "YAML settings file")
	f.IntVar(&flags.maxPages, "max-pages", 0, "Stop each crawl after this many pages (overrides settings)")
	f.BoolVar(&flags.headless, "headless", false, "Run the browser headless (overrides settings)")
	f.BoolVar(&flags.noHistory, "no-history", false, "Do not record the run in the history database")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "History database path (default ~/.sitediff/history.db)")

	cmd.AddCommand(newRunsCmd(&flags))
	cmd.AddCommand(newMCPCmd(&flags))
	return cmd
}
