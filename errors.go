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

package sitediff

import (
	"errors"
	"fmt"
)

var (
	// ErrCrawlAborted is returned by Crawl when consecutive render failures
	// exceed the configured threshold. The partial structure is returned with it.
	ErrCrawlAborted = errors.New("crawl aborted")
	// ErrSitemapUnavailable is returned when no sitemap could be fetched or parsed
	ErrSitemapUnavailable = errors.New("sitemap unavailable")
	// ErrInvalidSeed is returned when the seed URL cannot be normalized
	ErrInvalidSeed = errors.New("invalid seed URL")
	// ErrUnsupportedScheme is returned by the normalizer for non-http(s) URLs
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrScrollReset is returned when the page refuses to scroll back to the top
	ErrScrollReset = errors.New("scroll position could not be reset to top")
	// ErrPageNotFound is returned by MockRenderer for unregistered URLs
	ErrPageNotFound = errors.New("page not found")
)

// RenderError records a failure to load or capture a single page.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
