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

package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration and command-line problems.
// All of them are fatal and reported before any crawling starts.
var (
	// ErrNoURLs is returned when a site list contains no URLs
	ErrNoURLs = errors.New("No URLs found in config file.")
	// ErrURLOrConfig is returned when neither --url nor --config is given
	ErrURLOrConfig = errors.New("You must specify either --url or --config")
	// ErrURLAndConfig is returned when both --url and --config are given
	ErrURLAndConfig = errors.New("You must specify either --url or --config (not both)")
	// ErrInvalidRegex is returned for a domain fix rule that does not compile
	ErrInvalidRegex = errors.New("invalid regex")
	// ErrInvalidValue is returned for out-of-range numeric settings
	ErrInvalidValue = errors.New("invalid value")
)

// ConfigError wraps a configuration failure with where it happened
type ConfigError struct {
	// Source is the file or flag the value came from
	Source string
	// Field names the offending setting, if known
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
