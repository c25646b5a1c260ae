package search

import (
	"context"
	"log"
	"sync"

	"github.com/Asul0/belg-agent/tools/web_fetch"
	"github.com/Asul0/belg-agent/tools/web_search"
)

// Collector fans the generated queries out to the search provider,
// deduplicates the returned links by URL, then fans out again to
// scrape every unique page. A failure in one query or one page
// degrades to an empty contribution; the batch always completes.
type Collector struct {
	Searcher    web_search.WebSearcher
	Fetcher     web_fetch.WebFetcher
	MaxPerQuery int
	Logger      *log.Logger
}

// Collect returns the unique link list and the extracted text per
// link. Pages that yielded no text are absent from the map.
func (c *Collector) Collect(ctx context.Context, queries []string) ([]string, map[string]string) {
	titles := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			results, err := c.Searcher.Discover(ctx, q, c.MaxPerQuery)
			if err != nil {
				c.Logger.Printf("search failed for %q: %v", q, err)
				return
			}
			mu.Lock()
			for _, r := range results {
				titles[r.Link] = r.Title // last title wins
			}
			mu.Unlock()
		}(q)
	}
	wg.Wait()

	links := make([]string, 0, len(titles))
	for link := range titles {
		links = append(links, link)
	}

	pages := make(map[string]string, len(links))
	for _, link := range links {
		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			res, err := c.Fetcher.Exec(ctx, link)
			if err != nil {
				c.Logger.Printf("scrape failed for %s: %v", link, err)
				return
			}
			if res.Text == "" {
				c.Logger.Printf("no extractable text at %s (status %d)", link, res.Status)
				return
			}
			mu.Lock()
			pages[link] = res.Text
			mu.Unlock()
		}(link)
	}
	wg.Wait()

	c.Logger.Printf("collected %d unique links, %d pages with text, from %d queries",
		len(links), len(pages), len(queries))
	return links, pages
}
