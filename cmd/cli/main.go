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

// sitediff CLI
//
// Crawls a site breadth-first through its content links with a real
// browser, captures screenshots and HTML of every page, and compares the
// crawled URLs with the site's sitemap.
//
// Usage:
//
//	sitediff --url <url> [flags]
//	sitediff --config <sites.json> [flags]
//
// Commands:
//
//	runs      List recorded runs
//	mcp       Serve crawls and run history over MCP
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
