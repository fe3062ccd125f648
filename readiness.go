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
	"time"
)

// ReadyOutcome says how the scroll loop ended.
type ReadyOutcome string

const (
	// Converged means a scroll produced no growth in height or node count
	Converged ReadyOutcome = "converged"
	// Exhausted means the attempt limit was reached while the page still grew
	Exhausted ReadyOutcome = "exhausted"
)

// scrollResetAttempts bounds the retries of the final scroll-to-top.
const scrollResetAttempts = 3

// ReadinessConfig controls the scroll/settle loop
type ReadinessConfig struct {
	// ScrollWait is the pause after each scroll to the bottom
	ScrollWait time.Duration
	// MaxScrollAttempts caps the number of scroll iterations
	MaxScrollAttempts int
	// ImageLoadAttempts is the number of image-completion checks after scrolling
	ImageLoadAttempts int
	// ImageLoadDelay is the pause between image checks
	ImageLoadDelay time.Duration
}

// DefaultReadinessConfig returns the defaults used by the CLI.
func DefaultReadinessConfig() ReadinessConfig {
	return ReadinessConfig{
		ScrollWait:        2 * time.Second,
		MaxScrollAttempts: 10,
		ImageLoadAttempts: 3,
		ImageLoadDelay:    2 * time.Second,
	}
}

// ReadySignal describes the state of a page after Settle.
type ReadySignal struct {
	Outcome      ReadyOutcome `json:"outcome"`
	Iterations   int          `json:"iterations"`
	FinalHeight  int64        `json:"final_height"`
	ImagesLoaded bool         `json:"images_loaded"`
	// ScrollY is the scroll position handed to capture. It is 0 whenever Settle returns nil.
	ScrollY int64 `json:"scroll_y"`
}

// ReadinessDetector scrolls a page until lazy-loaded content stops appearing.
type ReadinessDetector struct {
	config ReadinessConfig
}

// NewReadinessDetector creates a detector. A non-positive attempt limit is raised to 1.
func NewReadinessDetector(config ReadinessConfig) *ReadinessDetector {
	if config.MaxScrollAttempts < 1 {
		config.MaxScrollAttempts = 1
	}
	return &ReadinessDetector{config: config}
}

type pageSize struct {
	height int64
	nodes  int64
}

func (s pageSize) grewFrom(prev pageSize) bool {
	return s.height > prev.height || s.nodes > prev.nodes
}

func measure(ctx context.Context, v Viewport) (pageSize, error) {
	height, err := v.ScrollHeight(ctx)
	if err != nil {
		return pageSize{}, fmt.Errorf("failed to read scroll height: %w", err)
	}
	nodes, err := v.NodeCount(ctx)
	if err != nil {
		return pageSize{}, fmt.Errorf("failed to count nodes: %w", err)
	}
	return pageSize{height: height, nodes: nodes}, nil
}

// Settle repeatedly scrolls v to the bottom and waits, comparing page
// height and node count with the previous measurement. The loop ends at the
// first iteration that shows no growth (Converged) or after
// MaxScrollAttempts iterations (Exhausted). Both outcomes are successful.
// Afterwards it polls image completion and scrolls back to the top.
func (d *ReadinessDetector) Settle(ctx context.Context, v Viewport) (ReadySignal, error) {
	var signal ReadySignal

	prev, err := measure(ctx, v)
	if err != nil {
		return signal, err
	}

	signal.Outcome = Exhausted
	for i := 1; i <= d.config.MaxScrollAttempts; i++ {
		signal.Iterations = i
		if err := v.ScrollTo(ctx, prev.height); err != nil {
			return signal, fmt.Errorf("failed to scroll to bottom: %w", err)
		}
		if err := v.Quiesce(ctx, d.config.ScrollWait); err != nil {
			return signal, err
		}
		cur, err := measure(ctx, v)
		if err != nil {
			return signal, err
		}
		if !cur.grewFrom(prev) {
			signal.Outcome = Converged
			prev = cur
			break
		}
		prev = cur
	}
	signal.FinalHeight = prev.height

	signal.ImagesLoaded, err = d.awaitImages(ctx, v)
	if err != nil {
		return signal, err
	}

	signal.ScrollY, err = resetScroll(ctx, v)
	return signal, err
}

func (d *ReadinessDetector) awaitImages(ctx context.Context, v Viewport) (bool, error) {
	for attempt := 0; attempt < d.config.ImageLoadAttempts; attempt++ {
		loaded, err := v.ImagesLoaded(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check images: %w", err)
		}
		if loaded {
			return true, nil
		}
		if err := v.Quiesce(ctx, d.config.ImageLoadDelay); err != nil {
			return false, err
		}
	}
	return d.config.ImageLoadAttempts == 0, nil
}

// resetScroll scrolls to the top so fixed headers sit in the same place in
// every screenshot. Pages that restore scroll from script get retried.
func resetScroll(ctx context.Context, v Viewport) (int64, error) {
	var y int64
	for attempt := 0; attempt < scrollResetAttempts; attempt++ {
		if err := v.ScrollTo(ctx, 0); err != nil {
			return y, fmt.Errorf("failed to scroll to top: %w", err)
		}
		pos, err := v.ScrollPosition(ctx)
		if err != nil {
			return y, fmt.Errorf("failed to read scroll position: %w", err)
		}
		y = pos
		if y == 0 {
			return 0, nil
		}
	}
	return y, fmt.Errorf("%w: scrollY=%d", ErrScrollReset, y)
}
