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

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "run", LogFileName("2025-03-09_14-05"))

	logger, closeLog, err := New(Options{Console: &console, File: file})
	require.NoError(t, err)

	logger.WithField("url", "https://example.com/").Info("Crawling page")
	logger.Debug("hidden at info level")
	require.NoError(t, closeLog())

	assert.Contains(t, console.String(), "Crawling page")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `url="https://example.com/"`)
	assert.Equal(t, "web_crawl_log_2025-03-09_14-05.txt", filepath.Base(file))
}

func TestNewLevels(t *testing.T) {
	var console bytes.Buffer
	logger, closeLog, err := New(Options{Level: "debug", Console: &console})
	require.NoError(t, err)
	defer closeLog()

	logger.Debug("visible")
	assert.Contains(t, console.String(), "visible")

	_, _, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("dropped") })
}
