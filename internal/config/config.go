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

// Package config loads crawl settings (YAML) and site lists (JSON).
package config

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"

	"github.com/agentberlin/sitediff"
)

// FixRule is one regex substitution as written in the settings file
type FixRule struct {
	Regex       string `yaml:"regex"`
	Replacement string `yaml:"replacement"`
}

// DomainFix groups the rules for domains matching MatchDomain
type DomainFix struct {
	MatchDomain string    `yaml:"match_domain"`
	FixRules    []FixRule `yaml:"fix_rules"`
}

// Settings holds every tunable of a run. Fields absent from the file keep their defaults.
type Settings struct {
	Headless               bool        `yaml:"headless"`
	ScrollWaitSeconds      float64     `yaml:"scroll_wait_seconds"`
	MaxScrollAttempts      int         `yaml:"max_scroll_attempts"`
	ImageLoadAttempts      int         `yaml:"image_load_attempts"`
	ImageLoadAttemptDelay  float64     `yaml:"image_load_attempt_delay"`
	NetworkTimeoutSeconds  float64     `yaml:"network_timeout_seconds"`
	SitemapRequestRetries  int         `yaml:"sitemap_request_retries"`
	SitemapRequestDelay    float64     `yaml:"sitemap_request_delay"`
	MaxPages               int         `yaml:"max_pages"`
	MaxDepth               int         `yaml:"max_depth"`
	MaxConsecutiveFailures int         `yaml:"max_consecutive_failures"`
	LoaderSelector         string      `yaml:"loader_selector"`
	ViewportWidth          int         `yaml:"viewport_width"`
	ViewportHeight         int         `yaml:"viewport_height"`
	UserAgent              string      `yaml:"user_agent"`
	OutputDir              string      `yaml:"output_dir"`
	DatabasePath           string      `yaml:"database_path"`
	ExcludePatterns        []string    `yaml:"exclude_patterns"`
	DomainFixes            []DomainFix `yaml:"domain_fixes"`
	LogLevel               string      `yaml:"log_level"`
}

// Defaults returns the settings used when no settings file is given
func Defaults() *Settings {
	return &Settings{
		Headless:               false,
		ScrollWaitSeconds:      2,
		MaxScrollAttempts:      10,
		ImageLoadAttempts:      3,
		ImageLoadAttemptDelay:  2,
		NetworkTimeoutSeconds:  30,
		SitemapRequestRetries:  3,
		SitemapRequestDelay:    3,
		MaxConsecutiveFailures: 5,
		LoaderSelector:         "#loaderImage",
		ViewportWidth:          1920,
		ViewportHeight:         1080,
		OutputDir:              "crawl_output",
		LogLevel:               "info",
	}
}

// Validate checks ranges and compiles every pattern so that bad settings
// are reported before crawling.
func (s *Settings) Validate() error {
	type check struct {
		field string
		value float64
	}
	nonNegative := []check{
		{"scroll_wait_seconds", s.ScrollWaitSeconds},
		{"image_load_attempts", float64(s.ImageLoadAttempts)},
		{"image_load_attempt_delay", s.ImageLoadAttemptDelay},
		{"sitemap_request_delay", s.SitemapRequestDelay},
		{"max_pages", float64(s.MaxPages)},
		{"max_depth", float64(s.MaxDepth)},
		{"max_consecutive_failures", float64(s.MaxConsecutiveFailures)},
	}
	for _, c := range nonNegative {
		if c.value < 0 {
			return &ConfigError{Field: c.field, Err: fmt.Errorf("%w: must be non-negative", ErrInvalidValue)}
		}
	}
	positive := []check{
		{"max_scroll_attempts", float64(s.MaxScrollAttempts)},
		{"network_timeout_seconds", s.NetworkTimeoutSeconds},
		{"sitemap_request_retries", float64(s.SitemapRequestRetries)},
	}
	for _, c := range positive {
		if c.value <= 0 {
			return &ConfigError{Field: c.field, Err: fmt.Errorf("%w: must be positive", ErrInvalidValue)}
		}
	}

	for _, pattern := range s.ExcludePatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return &ConfigError{Field: "exclude_patterns", Err: fmt.Errorf("%w: %q: %v", ErrInvalidValue, pattern, err)}
		}
	}
	_, err := s.CompileDomainFixes()
	return err
}

// CompileDomainFixes compiles the domain_fixes section
func (s *Settings) CompileDomainFixes() (sitediff.DomainFixRuleSet, error) {
	set := make(sitediff.DomainFixRuleSet, 0, len(s.DomainFixes))
	for i, fix := range s.DomainFixes {
		rules := make([]sitediff.DomainFixRule, 0, len(fix.FixRules))
		for j, r := range fix.FixRules {
			rule, err := sitediff.NewDomainFixRule(r.Regex, r.Replacement)
			if err != nil {
				return nil, &ConfigError{
					Field: fmt.Sprintf("domain_fixes[%d].fix_rules[%d].regex", i, j),
					Err:   fmt.Errorf("%w: %v", ErrInvalidRegex, err),
				}
			}
			rules = append(rules, rule)
		}
		entry, err := sitediff.NewDomainFixes(fix.MatchDomain, rules)
		if err != nil {
			return nil, &ConfigError{
				Field: fmt.Sprintf("domain_fixes[%d].match_domain", i),
				Err:   fmt.Errorf("%w: %v", ErrInvalidValue, err),
			}
		}
		set = append(set, entry)
	}
	return set, nil
}

// Limits returns the crawl bounds
func (s *Settings) Limits() sitediff.Limits {
	return sitediff.Limits{
		MaxPages:               s.MaxPages,
		MaxDepth:               s.MaxDepth,
		MaxConsecutiveFailures: s.MaxConsecutiveFailures,
	}
}

// Readiness returns the scroll/settle parameters
func (s *Settings) Readiness() sitediff.ReadinessConfig {
	return sitediff.ReadinessConfig{
		ScrollWait:        seconds(s.ScrollWaitSeconds),
		MaxScrollAttempts: s.MaxScrollAttempts,
		ImageLoadAttempts: s.ImageLoadAttempts,
		ImageLoadDelay:    seconds(s.ImageLoadAttemptDelay),
	}
}

// NetworkTimeout returns the per-call browser and HTTP timeout
func (s *Settings) NetworkTimeout() time.Duration {
	return seconds(s.NetworkTimeoutSeconds)
}

// SitemapRetryDelay returns the pause between sitemap attempts
func (s *Settings) SitemapRetryDelay() time.Duration {
	return seconds(s.SitemapRequestDelay)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
