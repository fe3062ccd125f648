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

package store

// Diff categories stored on DiffEntry.Category
const (
	CategoryOnlyInSitemap = "only_in_sitemap"
	CategoryOnlyInCrawl   = "only_in_crawl"
	CategoryInBoth        = "in_both"
)

// Site is a crawled domain. Runs of the same domain share one Site.
type Site struct {
	ID        uint   `gorm:"primaryKey"`
	URL       string `gorm:"not null"`             // Seed URL of the most recent run
	Domain    string `gorm:"uniqueIndex;not null"` // Host, including a non-default port
	Runs      []Run  `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
	CreatedAt int64  `gorm:"autoCreateTime"`
	UpdatedAt int64  `gorm:"autoUpdateTime"`
}

// Run is one crawl-and-reconcile of a site
type Run struct {
	ID                 uint        `gorm:"primaryKey"`
	SiteID             uint        `gorm:"index;not null"`
	StartedAt          int64       `gorm:"index;not null"` // Unix seconds
	DurationMs         int64       `gorm:"default:0"`
	PagesCrawled       int         `gorm:"default:0"`
	PagesFailed        int         `gorm:"default:0"`
	Termination        string      `gorm:"type:text"` // completed, page_limit, aborted, canceled
	SitemapUnavailable bool        `gorm:"default:false"`
	SitemapError       string      `gorm:"type:text"`
	OutputDir          string      `gorm:"type:text"`
	Error              string      `gorm:"type:text"`
	Site               *Site       `gorm:"foreignKey:SiteID"`
	Pages              []Page      `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	DiffEntries        []DiffEntry `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt          int64       `gorm:"autoCreateTime"`
}

// Page is a stored page record. Position preserves visit order.
type Page struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          uint   `gorm:"index;not null"`
	Position       int    `gorm:"not null"`
	URL            string `gorm:"not null"`
	Title          string `gorm:"type:text"`
	Depth          int    `gorm:"default:0"`
	ReachedFrom    string `gorm:"type:text"`
	FetchStatus    string `gorm:"not null"`
	Error          string `gorm:"type:text"`
	ScreenshotPath string `gorm:"type:text"`
	HTMLPath       string `gorm:"type:text"`
	ContentHash    string `gorm:"type:text"`
	ContentLinks   int    `gorm:"default:0"`
	ChromeLinks    int    `gorm:"default:0"`
	SkippedLinks   int    `gorm:"default:0"`
}

// DiffEntry is one URL of a run's sitemap diff
type DiffEntry struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    uint   `gorm:"index;not null"`
	URL      string `gorm:"not null"`
	Category string `gorm:"index;not null"`
}
