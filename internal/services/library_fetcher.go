package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"vigil/internal/infrastructure/logging"
	"vigil/internal/types"

	"github.com/gocolly/colly/v2"
)

// LibraryFetcher pulls title and description metadata for URLs added as
// library items, so a saved link shows something better than its bare
// address.
type LibraryFetcher struct {
	logger logging.Logger
}

// NewLibraryFetcher creates a metadata fetcher.
func NewLibraryFetcher(logger logging.Logger) *LibraryFetcher {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &LibraryFetcher{logger: logger}
}

// Fetch visits the page and extracts its title and description. Network
// or parse failures come back as an unsuccessful result rather than an
// error; a library item without metadata is still a valid item.
func (lf *LibraryFetcher) Fetch(pageURL string) *types.FetchResult {
	if !lf.isFetchableURL(pageURL) {
		return &types.FetchResult{
			Success: false,
			Error:   "not an http(s) URL",
		}
	}

	page := types.PageMetadata{
		URL:       pageURL,
		FetchedAt: time.Now(),
	}
	var fetchError error

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(10 * time.Second)

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnHTML(`meta[property="og:title"]`, func(e *colly.HTMLElement) {
		if content := strings.TrimSpace(e.Attr("content")); content != "" {
			page.Title = content
		}
	})

	c.OnHTML(`meta[name="description"]`, func(e *colly.HTMLElement) {
		if page.Description == "" {
			page.Description = strings.TrimSpace(e.Attr("content"))
		}
	})

	c.OnHTML(`meta[property="og:description"]`, func(e *colly.HTMLElement) {
		if content := strings.TrimSpace(e.Attr("content")); content != "" {
			page.Description = content
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchError = fmt.Errorf("fetch error: %v", err)
	})

	if err := c.Visit(pageURL); err != nil {
		lf.logger.Warn("Library metadata fetch failed", "url", pageURL, "error", err)
		return &types.FetchResult{
			Success: false,
			Error:   fmt.Sprintf("failed to visit URL: %v", err),
		}
	}

	if fetchError != nil {
		lf.logger.Warn("Library metadata fetch failed", "url", pageURL, "error", fetchError)
		return &types.FetchResult{
			Success: false,
			Error:   fetchError.Error(),
		}
	}

	if page.Title == "" {
		return &types.FetchResult{
			Success: false,
			Page:    page,
			Error:   "no title found on page",
		}
	}

	return &types.FetchResult{
		Success: true,
		Page:    page,
	}
}

func (lf *LibraryFetcher) isFetchableURL(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
