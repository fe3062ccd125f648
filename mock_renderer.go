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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MockPage describes a fixture page served by MockRenderer
type MockPage struct {
	// HTML is returned by Content
	HTML string
	// FinalURL simulates a redirect. Defaults to the requested URL.
	FinalURL string
	// Heights[i] is the scroll height after i scrolls to the bottom.
	// The last value repeats. Defaults to a constant 1000.
	Heights []int64
	// Nodes works like Heights for the element count. Defaults to the
	// number of elements in HTML.
	Nodes []int64
	// PendingImageChecks is how many ImagesLoaded calls report false
	PendingImageChecks int
	// StickyScroll is how many scroll-to-top requests the page ignores
	StickyScroll int
	// LoadError fails Load
	LoadError error
	// ContentError fails Content
	ContentError error
	// ScreenshotError fails Screenshot
	ScreenshotError error
	// Loader makes WaitGone report a timeout when set
	Loader bool
}

// MockRenderer implements Renderer for tests without a browser.
// Pages are registered per URL and every Load is recorded.
type MockRenderer struct {
	pages  map[string]*MockPage
	loads  []string
	closed bool
	mutex  sync.Mutex
}

// NewMockRenderer creates an empty MockRenderer
func NewMockRenderer() *MockRenderer {
	return &MockRenderer{pages: make(map[string]*MockPage)}
}

// RegisterPage registers a fixture page for an exact URL
func (m *MockRenderer) RegisterPage(url string, page *MockPage) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pages[url] = page
}

// RegisterHTML registers a static page with the given markup
func (m *MockRenderer) RegisterHTML(url, html string) {
	m.RegisterPage(url, &MockPage{HTML: html})
}

// Loads returns the URLs passed to Load, in call order
func (m *MockRenderer) Loads() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.loads...)
}

// Closed reports whether Close was called
func (m *MockRenderer) Closed() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.closed
}

// Load implements Renderer
func (m *MockRenderer) Load(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	m.loads = append(m.loads, url)
	page, ok := m.pages[url]
	m.mutex.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, url)
	}
	if page.LoadError != nil {
		return nil, page.LoadError
	}

	finalURL := page.FinalURL
	if finalURL == "" {
		finalURL = url
	}
	return &mockPageHandle{
		page:          page,
		url:           finalURL,
		pendingImages: page.PendingImageChecks,
		sticky:        page.StickyScroll,
	}, nil
}

// Close implements Renderer
func (m *MockRenderer) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

type mockPageHandle struct {
	page          *MockPage
	url           string
	scrolls       int
	y             int64
	pendingImages int
	sticky        int
	waited        time.Duration
}

func (h *mockPageHandle) URL() string { return h.url }

func (h *mockPageHandle) ScrollHeight(ctx context.Context) (int64, error) {
	return pick(h.page.Heights, h.scrolls, 1000), ctx.Err()
}

func (h *mockPageHandle) NodeCount(ctx context.Context) (int64, error) {
	if len(h.page.Nodes) > 0 {
		return pick(h.page.Nodes, h.scrolls, 0), ctx.Err()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(h.page.HTML))
	if err != nil {
		return 0, err
	}
	return int64(doc.Find("*").Length()), ctx.Err()
}

func (h *mockPageHandle) ScrollTo(ctx context.Context, y int64) error {
	if y > 0 {
		h.scrolls++
		h.y = y
		return ctx.Err()
	}
	if h.sticky > 0 {
		h.sticky--
		return ctx.Err()
	}
	h.y = 0
	return ctx.Err()
}

func (h *mockPageHandle) ScrollPosition(ctx context.Context) (int64, error) {
	return h.y, ctx.Err()
}

func (h *mockPageHandle) ImagesLoaded(ctx context.Context) (bool, error) {
	if h.pendingImages > 0 {
		h.pendingImages--
		return false, ctx.Err()
	}
	return true, ctx.Err()
}

func (h *mockPageHandle) Quiesce(ctx context.Context, d time.Duration) error {
	h.waited += d
	return ctx.Err()
}

func (h *mockPageHandle) WaitGone(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	return !h.page.Loader, ctx.Err()
}

func (h *mockPageHandle) Screenshot(ctx context.Context) ([]byte, error) {
	if h.page.ScreenshotError != nil {
		return nil, h.page.ScreenshotError
	}
	return []byte(fmt.Sprintf("png:%s@%d", h.url, h.y)), ctx.Err()
}

func (h *mockPageHandle) Content(ctx context.Context) (string, error) {
	if h.page.ContentError != nil {
		return "", h.page.ContentError
	}
	return h.page.HTML, ctx.Err()
}

func (h *mockPageHandle) Close() error { return nil }

func pick(values []int64, i int, fallback int64) int64 {
	if len(values) == 0 {
		return fallback
	}
	if i >= len(values) {
		return values[len(values)-1]
	}
	return values[i]
}
