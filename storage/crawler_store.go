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
	"sync"

	"github.com/cespare/xxhash/v2"
)

// CrawlerStore is the visited set of a single crawl session.
// URLs are tracked by the 64-bit xxhash of their normalized form.
type CrawlerStore struct {
	// visited tracks which URL hashes have been marked
	visited map[uint64]bool
	// mu protects visited
	mu sync.Mutex
}

// NewCrawlerStore creates a new CrawlerStore instance
func NewCrawlerStore() *CrawlerStore {
	return &CrawlerStore{
		visited: make(map[uint64]bool),
	}
}

// URLHash returns the key used for a normalized URL
func URLHash(url string) uint64 {
	return xxhash.Sum64String(url)
}

// VisitIfNotVisited checks whether url has been marked and marks it.
// Returns true if it was already visited, false if newly marked.
func (s *CrawlerStore) VisitIfNotVisited(url string) bool {
	hash := URLHash(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visited[hash] {
		return true
	}
	s.visited[hash] = true
	return false
}
