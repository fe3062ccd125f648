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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentberlin/sitediff/internal/app"
	"github.com/agentberlin/sitediff/internal/config"
	"github.com/agentberlin/sitediff/internal/logging"
	"github.com/agentberlin/sitediff/internal/mcp"
	"github.com/agentberlin/sitediff/internal/store"
)

func newMCPCmd(root *rootFlags) *cobra.Command {
	var (
		settingsFile string
		httpAddr     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve crawl_site, list_runs and get_sitemap_diff over MCP",
		Long: `Starts an MCP server. By default it speaks over stdin/stdout; logs go to
stderr. With --http the streamable HTTP transport is served instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(settingsFile)
			if err != nil {
				return err
			}
			if root.dbPath != "" {
				settings.DatabasePath = root.dbPath
			}

			// stdout belongs to the stdio transport
			logger, closeLog, err := logging.New(logging.Options{Level: settings.LogLevel, Console: os.Stderr})
			if err != nil {
				return err
			}
			defer closeLog()

			st, err := store.NewStore(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			coreApp, err := app.NewApp(app.Options{Settings: settings, Store: st, Logger: logger})
			if err != nil {
				return err
			}
			server, err := mcp.NewMCPServer(coreApp, settings.OutputDir, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if httpAddr == "" {
				return server.RunStdio(ctx)
			}
			httpServer := server.RunHTTP(httpAddr)
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVarP(&settingsFile, "settings-file", "s", "", "YAML settings file")
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve streamable HTTP on this address instead of stdio")
	return cmd
}
