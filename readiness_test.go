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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadMock(t *testing.T, page *MockPage) Page {
	t.Helper()
	r := NewMockRenderer()
	r.RegisterPage("https://example.com/", page)
	p, err := r.Load(context.Background(), "https://example.com/")
	require.NoError(t, err)
	return p
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name         string
		page         *MockPage
		config       ReadinessConfig
		outcome      ReadyOutcome
		iterations   int
		finalHeight  int64
		imagesLoaded bool
	}{
		{
			name:        "static page converges after one scroll",
			page:        &MockPage{HTML: "<p>x</p>"},
			config:      ReadinessConfig{MaxScrollAttempts: 10, ImageLoadAttempts: 1},
			outcome:     Converged,
			iterations:  1,
			finalHeight: 1000,
		},
		{
			name:        "lazy page converges once growth stops",
			page:        &MockPage{HTML: "<p>x</p>", Heights: []int64{1000, 2000, 2000}, Nodes: []int64{10, 20, 20}},
			config:      ReadinessConfig{MaxScrollAttempts: 15, ImageLoadAttempts: 1},
			outcome:     Converged,
			iterations:  2,
			finalHeight: 2000,
		},
		{
			name:        "node growth alone keeps scrolling",
			page:        &MockPage{HTML: "<p>x</p>", Heights: []int64{1000}, Nodes: []int64{10, 12, 12}},
			config:      ReadinessConfig{MaxScrollAttempts: 15, ImageLoadAttempts: 1},
			outcome:     Converged,
			iterations:  2,
			finalHeight: 1000,
		},
		{
			name:        "endless page exhausts attempts",
			page:        &MockPage{HTML: "<p>x</p>", Heights: []int64{1000, 2000, 3000, 4000, 5000}},
			config:      ReadinessConfig{MaxScrollAttempts: 3, ImageLoadAttempts: 1},
			outcome:     Exhausted,
			iterations:  3,
			finalHeight: 4000,
		},
		{
			name:        "zero attempts raised to one",
			page:        &MockPage{HTML: "<p>x</p>", Heights: []int64{1000, 2000, 3000}},
			config:      ReadinessConfig{ImageLoadAttempts: 1},
			outcome:     Exhausted,
			iterations:  1,
			finalHeight: 2000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loadMock(t, tt.page)
			signal, err := NewReadinessDetector(tt.config).Settle(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, signal.Outcome)
			assert.Equal(t, tt.iterations, signal.Iterations)
			assert.Equal(t, tt.finalHeight, signal.FinalHeight)
			assert.True(t, signal.ImagesLoaded)
			assert.Zero(t, signal.ScrollY)
		})
	}
}

func TestSettleImages(t *testing.T) {
	t.Run("loaded within attempts", func(t *testing.T) {
		p := loadMock(t, &MockPage{HTML: "<img>", PendingImageChecks: 2})
		signal, err := NewReadinessDetector(ReadinessConfig{MaxScrollAttempts: 1, ImageLoadAttempts: 3}).Settle(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, signal.ImagesLoaded)
	})

	t.Run("still pending is not an error", func(t *testing.T) {
		p := loadMock(t, &MockPage{HTML: "<img>", PendingImageChecks: 5})
		signal, err := NewReadinessDetector(ReadinessConfig{MaxScrollAttempts: 1, ImageLoadAttempts: 3}).Settle(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, signal.ImagesLoaded)
	})
}

func TestSettleScrollReset(t *testing.T) {
	t.Run("sticky page reset within retries", func(t *testing.T) {
		p := loadMock(t, &MockPage{HTML: "<p>x</p>", StickyScroll: 2})
		signal, err := NewReadinessDetector(ReadinessConfig{MaxScrollAttempts: 2, ImageLoadAttempts: 1}).Settle(context.Background(), p)
		require.NoError(t, err)
		assert.Zero(t, signal.ScrollY)
		y, err := p.ScrollPosition(context.Background())
		require.NoError(t, err)
		assert.Zero(t, y)
	})

	t.Run("page that never returns to top", func(t *testing.T) {
		p := loadMock(t, &MockPage{HTML: "<p>x</p>", StickyScroll: 5})
		signal, err := NewReadinessDetector(ReadinessConfig{MaxScrollAttempts: 2, ImageLoadAttempts: 1}).Settle(context.Background(), p)
		require.ErrorIs(t, err, ErrScrollReset)
		assert.NotZero(t, signal.ScrollY)
	})
}

func TestSettleCanceled(t *testing.T) {
	p := loadMock(t, &MockPage{HTML: "<p>x</p>"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReadinessDetector(DefaultReadinessConfig()).Settle(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}
