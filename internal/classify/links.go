package classify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/extract"
)

// CheckLinks extracts every link in text and returns those that look downloadable. Inline images are accepted
// without probing; http(s) URLs are probed concurrently.
func (c *Classifier) CheckLinks(ctx context.Context, text string) []fig.FileLink {
	return c.checkLinks(ctx, extract.Links(text))
}

func (c *Classifier) checkLinks(ctx context.Context, links []string) []fig.FileLink {
	var res []fig.FileLink
	var remote []string
	for _, link := range links {
		if inline := extract.ClassifyInline(link); inline.IsBase64Image {
			res = append(res, fig.FileLink{URL: link, Type: inline.Subtype})
		} else {
			remote = append(remote, link)
		}
	}
	for _, r := range c.ProbeAll(ctx, remote) {
		if !r.IsDownloadable {
			continue
		}
		res = append(res, fig.FileLink{URL: r.URL, Type: r.Subtype(), FileName: r.FileName})
	}
	c.log.Debugw("checked links", "candidates", len(links), "file_links", len(res))
	return res
}

// PageResult is the outcome of scraping one page: either the file links found on it, or an error.
type PageResult struct {
	URL       string
	FileLinks []fig.FileLink
	Err       error
}

// Scrape fetches every http(s) URL found in text and checks the links found on each page. Pages are handled
// concurrently; one result is sent per page, and the channel is closed when all pages are done.
func (c *Classifier) Scrape(ctx context.Context, text string) <-chan PageResult {
	var pages []string
	for _, link := range extract.Links(text) {
		if !extract.ClassifyInline(link).IsBase64Image {
			pages = append(pages, link)
		}
	}

	results := make(chan PageResult, len(pages))
	go func() {
		defer close(results)
		var g errgroup.Group
		if c.config.MaxConcurrentProbes > 0 {
			g.SetLimit(c.config.MaxConcurrentProbes)
		}
		for _, page := range pages {
			page := page
			g.Go(func() error {
				links, err := c.scrapePage(ctx, page)
				results <- PageResult{URL: page, FileLinks: links, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return results
}

func (c *Classifier) scrapePage(ctx context.Context, page string) ([]fig.FileLink, error) {
	base, err := url.Parse(page)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fig.WithKind(fig.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fig.WithKind(fig.ErrNetwork, fmt.Errorf("GET %v: %v", page, resp.Status))
	}

	var body io.Reader = resp.Body
	if c.config.MaxPageSize > 0 {
		body = io.LimitReader(body, c.config.MaxPageSize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fig.WithKind(fig.ErrNetwork, err)
	}
	// Relative links are resolved against where the page actually came from
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	return c.checkLinks(ctx, extract.ResolvedLinks(base, string(data))), nil
}
