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

// sitediff-testserver serves the fixture website used by the tests, for
// trying the crawler against a real browser.
//
// Usage:
//
//	sitediff-testserver [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentberlin/sitediff/testutil"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		host string
		port int
		opts testutil.FixtureOptions
	)
	cmd := &cobra.Command{
		Use:           "sitediff-testserver",
		Short:         "Serve the sitediff fixture website",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(fmt.Sprintf("%s:%d", host, port), opts)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host to bind the server to")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to run the server on")
	cmd.Flags().BoolVar(&opts.RobotsSitemap, "robots-sitemap", false, "Announce the sitemap in robots.txt")
	cmd.Flags().BoolVar(&opts.NoSitemap, "no-sitemap", false, "Serve no sitemap at all")
	cmd.Flags().BoolVar(&opts.UseIndex, "sitemap-index", false, "Serve /sitemap.xml as a sitemap index")
	cmd.Flags().Int32Var(&opts.SitemapFailures, "sitemap-failures", 0, "Number of 503 responses before the sitemap is served")
	return cmd
}

func serve(addr string, opts testutil.FixtureOptions) error {
	log := logrus.New()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      testutil.FixtureHandler(opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Starting fixture server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info("Shutting down fixture server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
