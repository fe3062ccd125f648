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
	"strings"

	"github.com/gobwas/glob"
	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// backrefPattern matches \1 style group references in replacement strings.
var backrefPattern = regexp.MustCompile(`\\(\d+)`)

// DomainFixRule is a single regex substitution applied to URL strings.
type DomainFixRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewDomainFixRule compiles a fix rule. Replacements may reference groups
// either as $1 or as \1.
func NewDomainFixRule(pattern, replacement string) (DomainFixRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return DomainFixRule{}, fmt.Errorf("invalid fix rule regex %q: %w", pattern, err)
	}
	return DomainFixRule{
		Pattern:     re,
		Replacement: backrefPattern.ReplaceAllString(replacement, "$${$1}"),
	}, nil
}

// Apply runs the substitution on s. A rule that does not match returns s unchanged.
func (r DomainFixRule) Apply(s string) string {
	return r.Pattern.ReplaceAllString(s, r.Replacement)
}

// DomainFixes groups the ordered rules configured for domains matching a glob.
type DomainFixes struct {
	MatchDomain string
	Rules       []DomainFixRule

	matcher glob.Glob
}

// NewDomainFixes compiles the domain glob. Exact domain names are valid globs.
func NewDomainFixes(matchDomain string, rules []DomainFixRule) (DomainFixes, error) {
	g, err := glob.Compile(strings.ToLower(matchDomain), '.')
	if err != nil {
		return DomainFixes{}, fmt.Errorf("invalid match_domain %q: %w", matchDomain, err)
	}
	return DomainFixes{MatchDomain: matchDomain, Rules: rules, matcher: g}, nil
}

// Matches reports whether the entry applies to domain.
func (d DomainFixes) Matches(domain string) bool {
	if d.matcher == nil {
		return strings.EqualFold(d.MatchDomain, domain)
	}
	return d.matcher.Match(strings.ToLower(domain))
}

// DomainFixRuleSet is the full list of configured fix entries, in file order.
type DomainFixRuleSet []DomainFixes

// RulesFor returns the rules of every entry matching domain, concatenated in order.
func (s DomainFixRuleSet) RulesFor(domain string) []DomainFixRule {
	var rules []DomainFixRule
	for _, entry := range s {
		if entry.Matches(domain) {
			rules = append(rules, entry.Rules...)
		}
	}
	return rules
}

// Normalizer canonicalizes URLs for a single target domain.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	domain string
	rules  []DomainFixRule
}

// NewNormalizer creates a normalizer for domain using the given ordered rules.
func NewNormalizer(domain string, rules []DomainFixRule) *Normalizer {
	return &Normalizer{domain: strings.ToLower(domain), rules: rules}
}

// Domain returns the target domain (host, including a non-default port).
func (n *Normalizer) Domain() string {
	return n.domain
}

// ApplyFixes runs every rule sequentially over s, each rule's output
// feeding the next.
func (n *Normalizer) ApplyFixes(s string) string {
	for _, rule := range n.rules {
		s = rule.Apply(s)
	}
	return s
}

// Normalize resolves raw against base (which may be empty for absolute
// URLs), applies the fix rules, lowercases scheme and host, strips the
// fragment and removes trailing slashes from every path except the root.
func (n *Normalizer) Normalize(raw, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty URL", ErrUnsupportedScheme)
	}

	var resolved *whatwgUrl.Url
	var err error
	if base == "" {
		resolved, err = urlParser.Parse(raw)
	} else {
		resolved, err = urlParser.ParseRef(base, raw)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", raw, err)
	}

	fixed := n.ApplyFixes(resolved.Href(true))

	u, err := urlParser.Parse(fixed)
	if err != nil {
		return "", fmt.Errorf("failed to parse fixed URL %q: %w", fixed, err)
	}
	return canonical(u)
}

// HostOf returns the lowercased host of an absolute URL, or "" when it
// cannot be parsed.
func HostOf(rawURL string) string {
	u, err := urlParser.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host())
}

// IsSameDomain reports whether the normalized URL belongs to the target domain.
func (n *Normalizer) IsSameDomain(normalized string) bool {
	return HostOf(normalized) == n.domain
}

func canonical(u *whatwgUrl.Url) (string, error) {
	scheme := strings.ToLower(u.Scheme())
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	if u.Host() == "" {
		return "", fmt.Errorf("%w: missing host", ErrUnsupportedScheme)
	}

	path := u.Pathname()
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	if path == "" {
		path = "/"
	}

	return scheme + "://" + strings.ToLower(u.Host()) + path + u.Search(), nil
}
