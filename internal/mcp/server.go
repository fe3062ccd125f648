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

// Package mcp exposes crawls and the run history as MCP tools.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/agentberlin/sitediff/internal/app"
	"github.com/agentberlin/sitediff/internal/logging"
)

const (
	ServerName    = "sitediff"
	ServerVersion = "1.0.0"
)

// MCPServer wraps the core app and exposes it via MCP protocol
type MCPServer struct {
	server    *mcp.Server
	app       *app.App
	outputDir string
	logger    logrus.FieldLogger
}

// NewMCPServer creates a new MCP server. Crawls started through it write
// their outputs below outputDir. A nil logger discards output; stdio
// servers must never log to stdout.
func NewMCPServer(a *app.App, outputDir string, logger logrus.FieldLogger) (*MCPServer, error) {
	if a == nil {
		return nil, errors.New("mcp server requires an app")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		}, nil),
		app:       a,
		outputDir: outputDir,
		logger:    logger,
	}
	s.registerTools()

	logger.Debug("MCP server initialized")
	return s, nil
}

// GetServer returns the internal MCP server instance
func (s *MCPServer) GetServer() *mcp.Server {
	return s.server
}

// RunStdio serves over stdin/stdout until the client disconnects or ctx ends
func (s *MCPServer) RunStdio(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server with HTTP transport using StreamableHTTPHandler
func (s *MCPServer) RunHTTP(addr string) *http.Server {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("MCP HTTP server stopped")
		}
	}()

	s.logger.WithField("addr", addr).Info("MCP HTTP server started")
	return httpServer
}
