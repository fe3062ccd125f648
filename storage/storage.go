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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Kind is a category of per-page artifact
type Kind string

const (
	KindScreenshot Kind = "screenshots"
	KindHTML       Kind = "html"
)

// Ext returns the file extension used for the kind
func (k Kind) Ext() string {
	switch k {
	case KindScreenshot:
		return ".png"
	case KindHTML:
		return ".html"
	}
	return ".bin"
}

// Storage persists the artifacts of a crawl run.
// The default Storage of the CLI is FileStorage; tests use InMemoryStorage.
type Storage interface {
	// Save stores a per-page artifact and returns a reference to it
	Save(domain string, kind Kind, name string, data []byte) (string, error)
	// WriteJSON stores v as indented JSON under the domain directory
	WriteJSON(domain string, name string, v any) (string, error)
}

// FileStorage writes artifacts below a run directory:
//
//	<root>/<domain>/screenshots/<name>.png
//	<root>/<domain>/html/<name>.html
//	<root>/<domain>/<name>.json
type FileStorage struct {
	root string
}

// NewFileStorage creates the run directory root if needed
func NewFileStorage(root string) (*FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileStorage{root: root}, nil
}

// Root returns the run directory
func (s *FileStorage) Root() string {
	return s.root
}

// DomainDir returns the directory holding a domain's outputs
func (s *FileStorage) DomainDir(domain string) string {
	return filepath.Join(s.root, DomainFolder(domain))
}

// Save implements Storage.Save()
func (s *FileStorage) Save(domain string, kind Kind, name string, data []byte) (string, error) {
	dir := filepath.Join(s.DomainDir(domain), string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", kind, err)
	}
	path := filepath.Join(dir, name+kind.Ext())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WriteJSON implements Storage.WriteJSON()
func (s *FileStorage) WriteJSON(domain string, name string, v any) (string, error) {
	dir := s.DomainDir(domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create domain directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// InMemoryStorage keeps artifacts in memory without persisting data on the disk.
// References have the same shape as FileStorage paths relative to the run root.
type InMemoryStorage struct {
	files map[string][]byte
	lock  sync.RWMutex
}

// NewInMemoryStorage creates an empty InMemoryStorage
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{files: make(map[string][]byte)}
}

// Save implements Storage.Save()
func (s *InMemoryStorage) Save(domain string, kind Kind, name string, data []byte) (string, error) {
	ref := filepath.ToSlash(filepath.Join(DomainFolder(domain), string(kind), name+kind.Ext()))
	s.lock.Lock()
	s.files[ref] = append([]byte(nil), data...)
	s.lock.Unlock()
	return ref, nil
}

// WriteJSON implements Storage.WriteJSON()
func (s *InMemoryStorage) WriteJSON(domain string, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	ref := filepath.ToSlash(filepath.Join(DomainFolder(domain), name+".json"))
	s.lock.Lock()
	s.files[ref] = data
	s.lock.Unlock()
	return ref, nil
}

// Get returns the stored bytes for ref
func (s *InMemoryStorage) Get(ref string) ([]byte, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	data, ok := s.files[ref]
	return data, ok
}

// Refs returns all stored references, sorted
func (s *InMemoryStorage) Refs() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	refs := make([]string, 0, len(s.files))
	for ref := range s.files {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
