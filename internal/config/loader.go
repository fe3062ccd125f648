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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when a settings or site list file does not exist
var ErrConfigNotFound = errors.New("configuration file not found")

// SiteList is the --config file format: {"urls": [...]}
type SiteList struct {
	URLs []string `yaml:"urls"`
}

// LoadSettings reads a YAML settings file over the defaults.
// An empty path returns the defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := Defaults()
	if path == "" {
		return settings, nil
	}

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := decodeStrict(data, settings); err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	if err := settings.Validate(); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Source == "" {
			cfgErr.Source = path
		}
		return nil, err
	}
	return settings, nil
}

// LoadSites reads a site list. JSON is read with the YAML decoder, which
// accepts it as a subset.
func LoadSites(path string) ([]string, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var list SiteList
	if err := decodeStrict(data, &list); err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}

	urls := make([]string, 0, len(list.URLs))
	for _, u := range list.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, &ConfigError{Source: path, Err: ErrNoURLs}
	}
	return urls, nil
}

// ResolveTargets applies the --url / --config rule: exactly one must be set.
func ResolveTargets(url, sitesPath string) ([]string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "" && sitesPath == "":
		return nil, &ConfigError{Err: ErrURLOrConfig}
	case url != "" && sitesPath != "":
		return nil, &ConfigError{Err: ErrURLAndConfig}
	case url != "":
		return []string{url}, nil
	}
	return LoadSites(sitesPath)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigError{Source: path, Err: ErrConfigNotFound}
		}
		return nil, &ConfigError{Source: path, Err: err}
	}
	return data, nil
}

// decodeStrict rejects unknown keys. An empty document leaves v unchanged.
func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed file: %w", err)
	}
	return nil
}
