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
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkText returns the visible text of a link element, falling back to
// aria-label, title and image alt text for icon-only links.
func linkText(sel *goquery.Selection) string {
	if text := normalizeWhitespace(sel.Text()); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "title"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return normalizeWhitespace(v)
		}
	}
	if alt, ok := sel.Find("img[alt]").First().Attr("alt"); ok {
		return normalizeWhitespace(alt)
	}
	return ""
}

// pageTitle returns the document title, or the first h1 when the title is empty.
func pageTitle(doc *goquery.Document) string {
	if title := normalizeWhitespace(doc.Find("head > title").First().Text()); title != "" {
		return title
	}
	if title := normalizeWhitespace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return normalizeWhitespace(doc.Find("h1").First().Text())
}

// baseHref returns the document's <base href>, if any.
func baseHref(doc *goquery.Document) string {
	href, _ := doc.Find("head base[href]").First().Attr("href")
	return strings.TrimSpace(href)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
