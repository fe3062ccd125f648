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
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// Patterns for dynamic text that would otherwise change the hash on every render
var dynamicTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d+\s+(?:second|minute|hour|day|week|month|year)s?\s+ago`),
	regexp.MustCompile(`(?i)(?:just\s+now|moments?\s+ago)`),
}

// ContentHash returns an xxhash of the page's main text. Scripts, styles
// and chrome regions are dropped and timestamps are blanked so that two
// renders of the same page hash equally.
func ContentHash(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template, nav, header, footer").Remove()

	text := normalizeWhitespace(body.Text())
	for _, re := range dynamicTextPatterns {
		text = re.ReplaceAllString(text, "")
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalizeWhitespace(text)))
}
