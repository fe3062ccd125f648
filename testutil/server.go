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

// Package testutil provides a fixture website for sitediff tests and the
// test server command: pages with navigation chrome, lazy-loaded content,
// robots.txt and sitemaps in several shapes.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// FixtureOptions changes how the fixture site serves its sitemaps
type FixtureOptions struct {
	// RobotsSitemap adds a Sitemap line pointing at /sitemap-pages.xml to robots.txt
	RobotsSitemap bool
	// NoSitemap makes every sitemap location return 404
	NoSitemap bool
	// SitemapFailures is the number of 503 responses /sitemap.xml returns before succeeding
	SitemapFailures int32
	// UseIndex serves /sitemap.xml as a sitemap index
	UseIndex bool
}

// Fixture is a running fixture site
type Fixture struct {
	*httptest.Server
	sitemapHits atomic.Int32
}

// SitemapHits returns the number of requests made to /sitemap.xml
func (f *Fixture) SitemapHits() int {
	return int(f.sitemapHits.Load())
}

// NewFixtureServer starts the fixture site
func NewFixtureServer(opts FixtureOptions) *Fixture {
	f := &Fixture{}
	f.Server = httptest.NewServer(f.handler(opts))
	return f
}

// FixtureHandler returns the fixture site as a handler, for serving on a fixed port
func FixtureHandler(opts FixtureOptions) http.Handler {
	return (&Fixture{}).handler(opts)
}

// Pages of the fixture site keyed by path
var Pages = map[string]string{
	"/": page("Home", `
<main>
  <h1>Welcome</h1>
  <ul>
    <li><a href="/products">Products</a></li>
    <li><a href="/blog/">Blog</a></li>
    <li><a href="mailto:hello@example.com">Mail us</a></li>
    <li><a href="tel:+15550100">Call us</a></li>
    <li><a href="javascript:void(0)">Nothing</a></li>
    <li><a href="#top">Top</a></li>
    <li><a href="https://elsewhere.example.org/partner">Partner</a></li>
  </ul>
  <button onclick="window.location='/offers'">Offers</button>
</main>`),
	"/products": page("Products", `
<main>
  <a href="/products/widget">Widget</a>
  <a href="/products/gadget#specs">Gadget</a>
  <a href="/">Home again</a>
</main>`),
	"/blog":            page("Blog", `<main><a href="/blog/post-1">First post</a></main>`),
	"/offers":          page("Offers", `<main><p>No offers today.</p></main>`),
	"/products/widget": page("Widget", `<main><p>A widget.</p><a href="/products">Back</a></main>`),
	"/products/gadget": page("Gadget", `<main><p>A gadget.</p></main>`),
	"/blog/post-1":     page("First post", `<article><p>Hello.</p></article>`),
	"/about":           page("About", `<main><p>About us.</p></main>`),
	"/contact":         page("Contact", `<main><p>Contact us.</p></main>`),
	"/privacy":         page("Privacy", `<main><p>Privacy policy.</p></main>`),
	"/lazy":            lazyPage,
}

func page(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<header class="site-header">
  <nav><a href="/">Home</a> <a href="/about">About</a> <a href="/contact">Contact</a></nav>
</header>
%s
<footer><a href="/privacy">Privacy</a></footer>
</body>
</html>`, title, body)
}

// lazyPage appends a block with a link on each of its first two scrolls
var lazyPage = `<!DOCTYPE html>
<html>
<head><title>Lazy</title></head>
<body>
<main id="list" style="min-height: 3000px"><p>Start</p></main>
<script>
var added = 0;
window.addEventListener('scroll', function () {
  if (added >= 2) { return; }
  added++;
  var div = document.createElement('div');
  div.style.height = '3000px';
  div.innerHTML = '<a href="/lazy/item-' + added + '">Item ' + added + '</a>';
  document.getElementById('list').appendChild(div);
});
</script>
</body>
</html>`

// SitemapPaths are the paths listed in the fixture sitemap. /orphan is not
// linked from any page.
var SitemapPaths = []string{"/", "/products", "/blog", "/about", "/orphan"}

func (f *Fixture) handler(opts FixtureOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if len(path) > 1 && path[len(path)-1] == '/' {
			path = path[:len(path)-1]
		}
		body, ok := Pages[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	})

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		if opts.RobotsSitemap {
			fmt.Fprintf(w, "Sitemap: http://%s/sitemap-pages.xml\n", r.Host)
		}
	})

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		hit := f.sitemapHits.Add(1)
		switch {
		case opts.NoSitemap:
			http.NotFound(w, r)
		case hit <= opts.SitemapFailures:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		case opts.UseIndex:
			writeXML(w, sitemapIndex(r.Host))
		default:
			writeXML(w, urlset(r.Host))
		}
	})

	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		if opts.NoSitemap {
			http.NotFound(w, r)
			return
		}
		writeXML(w, sitemapIndex(r.Host))
	})

	mux.HandleFunc("/sitemap-pages.xml", func(w http.ResponseWriter, r *http.Request) {
		if opts.NoSitemap {
			http.NotFound(w, r)
			return
		}
		writeXML(w, urlset(r.Host))
	})

	// ISO-8859-1 body without an encoding declaration
	mux.HandleFunc("/latin1-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		body := fmt.Sprintf("<urlset xmlns=\"http://www.sitemaps.org/schemas/sitemap/0.9\">"+
			"<url><loc>http://%s/caf\xe9</loc></url>"+
			"<url><loc>http://%s/men\xfc</loc></url>"+
			"</urlset>", r.Host, r.Host)
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(body))
	})

	return mux
}

func urlset(host string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n"
	for _, p := range SitemapPaths {
		out += fmt.Sprintf("  <url><loc>http://%s%s</loc></url>\n", host, p)
	}
	return out + "</urlset>\n"
}

func sitemapIndex(host string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>http://%s/sitemap-pages.xml</loc></sitemap>
</sitemapindex>
`, host)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(body))
}
