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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// networkIdleWindow is how long the network must stay quiet to count as idle
const networkIdleWindow = 500 * time.Millisecond

// ChromedpConfig configures the Chrome-backed renderer
type ChromedpConfig struct {
	Headless bool
	// NetworkTimeout bounds every navigation and browser call
	NetworkTimeout time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	// ExecPath overrides the Chrome binary lookup
	ExecPath string
	Logger   logrus.FieldLogger
}

// ChromedpRenderer renders pages in a single Chrome instance, one tab per page.
type ChromedpRenderer struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	config        ChromedpConfig
}

// NewChromedpRenderer starts Chrome and returns a renderer for it
func NewChromedpRenderer(config ChromedpConfig) (*ChromedpRenderer, error) {
	if config.NetworkTimeout <= 0 {
		config.NetworkTimeout = 30 * time.Second
	}
	if config.ViewportWidth <= 0 || config.ViewportHeight <= 0 {
		config.ViewportWidth, config.ViewportHeight = 1920, 1080
	}
	if config.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		config.Logger = l
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	)
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	r := &ChromedpRenderer{config: config}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.browserCtx, r.browserCancel = chromedp.NewContext(r.allocCtx, chromedp.WithLogf(config.Logger.Debugf))

	// start the browser so launch failures surface here rather than on the first page
	if err := chromedp.Run(r.browserCtx); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return r, nil
}

// Load implements Renderer. It opens a tab, navigates to url and waits for
// the body to be ready.
func (r *ChromedpRenderer) Load(ctx context.Context, url string) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	p := &chromedpPage{
		tabCtx:  tabCtx,
		cancel:  tabCancel,
		timeout: r.config.NetworkTimeout,
		tracker: newNetworkTracker(),
	}
	// create the tab on its own context; a first Run under a timeout
	// context would tie the tab's lifetime to that timeout
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	chromedp.ListenTarget(tabCtx, p.tracker.handle)

	var finalURL string
	err := p.run(ctx,
		network.Enable(),
		chromedp.EmulateViewport(int64(r.config.ViewportWidth), int64(r.config.ViewportHeight)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("chromedp navigation failed: %w", err)
	}
	p.url = finalURL
	return p, nil
}

// Close shuts down the browser
func (r *ChromedpRenderer) Close() error {
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

type chromedpPage struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	url     string
	timeout time.Duration
	tracker *networkTracker
}

// run executes actions in the tab, bounded by the network timeout and by ctx
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tabCtx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) evalInt(ctx context.Context, expr string) (int64, error) {
	var v float64
	if err := p.run(ctx, chromedp.Evaluate(expr, &v)); err != nil {
		return 0, err
	}
	return int64(v), nil
}

func (p *chromedpPage) URL() string { return p.url }

func (p *chromedpPage) ScrollHeight(ctx context.Context) (int64, error) {
	return p.evalInt(ctx, `Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)`)
}

func (p *chromedpPage) NodeCount(ctx context.Context) (int64, error) {
	return p.evalInt(ctx, `document.getElementsByTagName('*').length`)
}

func (p *chromedpPage) ScrollTo(ctx context.Context, y int64) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollTo({top: %d, behavior: 'instant'})`, y), nil))
}

func (p *chromedpPage) ScrollPosition(ctx context.Context) (int64, error) {
	return p.evalInt(ctx, `window.scrollY`)
}

func (p *chromedpPage) ImagesLoaded(ctx context.Context) (bool, error) {
	var loaded bool
	err := p.run(ctx, chromedp.Evaluate(`Array.from(document.images).every(img => img.complete)`, &loaded))
	return loaded, err
}

// Quiesce sleeps d, then waits up to another d for in-flight requests to finish.
func (p *chromedpPage) Quiesce(ctx context.Context, d time.Duration) error {
	if err := sleepCtx(ctx, d); err != nil {
		return err
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if p.tracker.idleFor(networkIdleWindow) {
			return nil
		}
		if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func (p *chromedpPage) WaitGone(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(waitCtx, chromedp.WaitNotPresent(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return err == nil, err
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 selects PNG
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("chromedp screenshot failed: %w", err)
	}
	return buf, nil
}

func (p *chromedpPage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp content failed: %w", err)
	}
	return html, nil
}

func (p *chromedpPage) Close() error {
	p.cancel()
	return nil
}

// networkTracker counts in-flight requests of a tab
type networkTracker struct {
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	mu           sync.Mutex
}

func newNetworkTracker() *networkTracker {
	return &networkTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

func (t *networkTracker) handle(ev interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[ev.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, ev.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, ev.RequestID)
	default:
		return
	}
	t.lastActivity = time.Now()
}

func (t *networkTracker) idleFor(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && time.Since(t.lastActivity) >= d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
