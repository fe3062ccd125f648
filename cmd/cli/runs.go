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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentberlin/sitediff/internal/store"
)

func newRunsCmd(root *rootFlags) *cobra.Command {
	var (
		domain     string
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Example: `  sitediff runs
  sitediff runs --domain example.com --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStore(root.dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %v", err)
			}
			defer st.Close()

			runs, err := st.ListRuns(domain, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "Only list runs of this domain")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.AddCommand(newRunsDeleteCmd(root))
	return cmd
}

func newRunsDeleteCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete a recorded run with its pages and diff",
		Example: `  sitediff runs delete 42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			st, err := store.NewStore(root.dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %v", err)
			}
			defer st.Close()

			if err := st.DeleteRun(uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %d\n", id)
			return nil
		},
	}
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}

	fmt.Fprintf(w, "%-6s %-30s %-17s %-10s %-7s %-12s %-8s\n", "ID", "Domain", "Date", "Duration", "Pages", "Termination", "Sitemap")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------------")
	for _, r := range runs {
		domain := ""
		if r.Site != nil {
			domain = r.Site.Domain
		}
		sitemap := "ok"
		if r.SitemapUnavailable {
			sitemap = "n/a"
		}
		fmt.Fprintf(w, "%-6d %-30s %-17s %-10s %-7d %-12s %-8s\n",
			r.ID, truncate(domain, 30), time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04"),
			formatDuration(r.DurationMs), r.PagesCrawled, r.Termination, sitemap)
	}
}

// truncate truncates a string to the specified length
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// formatDuration formats a duration in milliseconds to a human-readable string
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes, seconds := seconds/60, seconds%60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
