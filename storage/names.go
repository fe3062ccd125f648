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

package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/kennygrant/sanitize"
)

// RunTimestampLayout names run directories and log files
const RunTimestampLayout = "2006-01-02_15-04"

// maxSlugLength keeps page file names well below common filesystem limits
const maxSlugLength = 120

var slugReplacer = strings.NewReplacer("/", "_", "?", "_", "&", "_", ":", "_", "=", "_")

// PageSlug turns a page URL into a file name stem:
// "https://example.com/blog/post-1" becomes "example.com_blog_post-1".
// When the readable form cannot tell two URLs of a domain apart (query
// strings, underscores, escapes, non-ASCII, overlong paths) it is
// truncated if needed and suffixed with a hash of the full URL.
func PageSlug(pageURL string) string {
	s := pageURL
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimRight(s, "/")
	lossy := false
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		lossy = !isPlainPath(s[i:])
	}

	s = slugReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '.' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return '-'
	}, sanitize.Accents(s))
	s = strings.Trim(s, "-_.")
	if s == "" {
		s = "index"
	}
	if len(s) > maxSlugLength {
		s, lossy = s[:maxSlugLength], true
	}
	if lossy {
		s = fmt.Sprintf("%s_%016x", s, xxhash.Sum64String(pageURL))
	}
	return s
}

// isPlainPath reports whether the slug of path maps back to exactly one
// path: only "/" is rewritten and nothing is trimmed from the end.
func isPlainPath(path string) bool {
	for _, r := range path {
		if r != '/' && r != '.' && r != '-' && (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return !strings.HasSuffix(path, ".") && !strings.HasSuffix(path, "-")
}

// DomainFolder returns a directory-safe name for a domain (ports keep their digits).
func DomainFolder(domain string) string {
	name := sanitize.Name(strings.ReplaceAll(strings.ToLower(domain), ":", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}

// RunDir returns <outputDir>/<timestamp> for a run started at t
func RunDir(outputDir string, t time.Time) string {
	return filepath.Join(outputDir, t.Format(RunTimestampLayout))
}
