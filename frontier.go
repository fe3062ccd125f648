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

import "github.com/agentberlin/sitediff/storage"

// FrontierEntry is a URL waiting to be visited
type FrontierEntry struct {
	URL      string
	Depth    int
	Parent   string
	LinkText string
}

// Frontier is a FIFO queue of pending URLs paired with a visited set.
// URLs are marked visited when pushed, so each URL is queued at most once
// no matter how many pages link to it.
type Frontier struct {
	queue   []FrontierEntry
	head    int
	visited *storage.CrawlerStore
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{visited: storage.NewCrawlerStore()}
}

// Push enqueues e unless its URL was already visited or queued.
// It reports whether the entry was added.
func (f *Frontier) Push(e FrontierEntry) bool {
	if f.visited.VisitIfNotVisited(e.URL) {
		return false
	}
	f.queue = append(f.queue, e)
	return true
}

// MarkVisited marks url without queueing it, e.g. the target of a redirect.
func (f *Frontier) MarkVisited(url string) {
	f.visited.VisitIfNotVisited(url)
}

// Pop removes and returns the earliest pushed entry
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if f.head >= len(f.queue) {
		return FrontierEntry{}, false
	}
	e := f.queue[f.head]
	f.queue[f.head] = FrontierEntry{}
	f.head++

	// compact once the consumed prefix dominates the slice
	if f.head > 64 && f.head*2 > len(f.queue) {
		f.queue = append([]FrontierEntry(nil), f.queue[f.head:]...)
		f.head = 0
	}
	return e, true
}

// Len returns the number of pending entries
func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}
