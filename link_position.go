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

// LinkClass is the result of classifying a link.
type LinkClass string

const (
	// LinkContent links are part of the main page content and expand the frontier
	LinkContent LinkClass = "content"
	// LinkChrome links live in navigation, header or footer regions and are only recorded
	LinkChrome LinkClass = "chrome"
	// LinkSkip links are non-navigable or point off the target domain
	LinkSkip LinkClass = "skip"
)

// Skip reasons recorded on discovered links.
const (
	ReasonNonNavigable = "non_navigable"
	ReasonExternal     = "external"
)

// Positions describe the region the deciding ancestor belongs to.
const (
	PositionNavigation = "navigation"
	PositionHeader     = "header"
	PositionFooter     = "footer"
	PositionContent    = "content"
	PositionBody       = "body"
)

// chromeTokens are class/id tokens that mark an element as page chrome.
var chromeTokens = map[string]string{
	"nav":         PositionNavigation,
	"navbar":      PositionNavigation,
	"navigation":  PositionNavigation,
	"menu":        PositionNavigation,
	"megamenu":    PositionNavigation,
	"mainmenu":    PositionNavigation,
	"breadcrumb":  PositionNavigation,
	"breadcrumbs": PositionNavigation,
	"header":      PositionHeader,
	"masthead":    PositionHeader,
	"topbar":      PositionHeader,
	"footer":      PositionFooter,
}

// Classification is the classifier's verdict for one link.
type Classification struct {
	Class LinkClass
	// URL is the normalized target. Empty for non-navigable links.
	URL string
	// Reason is set for skipped links.
	Reason string
	// Position is the region of the nearest classified ancestor.
	Position string
}

// PageContext carries what the classifier needs to know about the page an
// anchor was found on.
type PageContext struct {
	// BaseURL resolves relative hrefs. It is the final URL of the page or its <base href>.
	BaseURL    string
	Normalizer *Normalizer
}

// ClassifyHref classifies a link target found inside the element sel.
// Rules are evaluated in order and the first match wins:
// non-navigable hrefs, off-domain targets, chrome ancestry, then content.
func ClassifyHref(href string, sel *goquery.Selection, pc PageContext) Classification {
	if !isNavigableHref(href) {
		return Classification{Class: LinkSkip, Reason: ReasonNonNavigable}
	}

	normalized, err := pc.Normalizer.Normalize(href, pc.BaseURL)
	if err != nil {
		return Classification{Class: LinkSkip, Reason: ReasonNonNavigable}
	}
	if !pc.Normalizer.IsSameDomain(normalized) {
		return Classification{Class: LinkSkip, URL: normalized, Reason: ReasonExternal}
	}

	position := classifyLinkPosition(sel)
	class := LinkContent
	switch position {
	case PositionNavigation, PositionHeader, PositionFooter:
		class = LinkChrome
	}
	return Classification{Class: class, URL: normalized, Position: position}
}

// Classify classifies an anchor element by its href attribute.
func Classify(anchor *goquery.Selection, pc PageContext) Classification {
	href, _ := anchor.Attr("href")
	return ClassifyHref(href, anchor, pc)
}

func isNavigableHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// classifyLinkPosition walks the ancestors of sel nearest-first and returns
// the position of the first one recognized as a content or chrome region.
// Content regions are recognized by tag and role only; chrome regions also
// by class and id tokens.
func classifyLinkPosition(sel *goquery.Selection) string {
	current := sel.Parent()
	for current.Length() > 0 {
		nodeName := goquery.NodeName(current)
		if nodeName == "body" || nodeName == "html" {
			break
		}
		role, _ := current.Attr("role")
		role = strings.ToLower(role)

		if nodeName == "main" || nodeName == "article" || role == "main" || role == "article" {
			return PositionContent
		}

		switch {
		case nodeName == "nav" || role == "navigation" || role == "menubar":
			return PositionNavigation
		case nodeName == "header" || role == "banner":
			return PositionHeader
		case nodeName == "footer" || role == "contentinfo":
			return PositionFooter
		}

		if position := positionFromTokens(current); position != "" {
			return position
		}

		current = current.Parent()
	}
	return PositionBody
}

// positionFromTokens matches whole class and id tokens so that
// "site-footer" counts as footer but "canvas" does not count as nav.
func positionFromTokens(sel *goquery.Selection) string {
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")

	for _, field := range strings.Fields(class + " " + id) {
		field = strings.ToLower(field)
		if position, ok := chromeTokens[field]; ok {
			return position
		}
		for _, token := range strings.FieldsFunc(field, isTokenSeparator) {
			if position, ok := chromeTokens[token]; ok {
				return position
			}
		}
	}
	return ""
}

func isTokenSeparator(r rune) bool {
	return r == '-' || r == '_' || r == ':'
}

// buildDOMPath returns a short descriptor path like
// "body > main#content > ul.list > li", used in debug logging.
func buildDOMPath(sel *goquery.Selection) string {
	var parts []string
	for current := sel; current.Length() > 0; current = current.Parent() {
		nodeName := goquery.NodeName(current)
		if nodeName == "html" {
			break
		}
		descriptor := nodeName
		if role, ok := current.Attr("role"); ok && role != "" {
			descriptor += `[role="` + role + `"]`
		}
		if id, ok := current.Attr("id"); ok && id != "" {
			descriptor += "#" + id
		}
		if class, ok := current.Attr("class"); ok {
			if classes := strings.Fields(class); len(classes) > 0 {
				descriptor += "." + classes[0]
			}
		}
		parts = append([]string{descriptor}, parts...)
	}
	return strings.Join(parts, " > ")
}
