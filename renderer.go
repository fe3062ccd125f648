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
	"context"
	"time"
)

// Renderer loads pages in a browser-like engine. Calls are blocking and a
// crawl issues at most one at a time.
type Renderer interface {
	// Load navigates to url and returns a handle to the rendered page.
	Load(ctx context.Context, url string) (Page, error)
	// Close releases the browser.
	Close() error
}

// Viewport is the part of a page the readiness detector drives.
type Viewport interface {
	// ScrollHeight returns document.body.scrollHeight.
	ScrollHeight(ctx context.Context) (int64, error)
	// NodeCount returns the number of elements in the document.
	NodeCount(ctx context.Context) (int64, error)
	// ScrollTo scrolls the window to vertical offset y.
	ScrollTo(ctx context.Context, y int64) error
	// ScrollPosition returns window.scrollY.
	ScrollPosition(ctx context.Context) (int64, error)
	// ImagesLoaded reports whether every <img> has finished loading.
	ImagesLoaded(ctx context.Context) (bool, error)
	// Quiesce waits d for network and DOM activity to settle. Browser
	// implementations also wait, up to another d, for in-flight requests.
	Quiesce(ctx context.Context, d time.Duration) error
}

// Page is a rendered page handle.
type Page interface {
	Viewport

	// URL returns the final URL after redirects.
	URL() string
	// WaitGone waits until no element matches selector or timeout elapses.
	// It returns false on timeout.
	WaitGone(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// Screenshot captures a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Content returns the serialized DOM.
	Content(ctx context.Context) (string, error)
	// Close releases per-page resources.
	Close() error
}
