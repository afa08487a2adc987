package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/minewatch/minewatch/core"
)

var fatalLinkRe = regexp.MustCompile(`(?i)fatal.*accident`)

// IndexScraper lists candidate report links from a fixed listing page. Only
// anchors whose text mentions a fatal accident, or whose href carries the
// word fatal, are kept.
type IndexScraper struct {
	client     *http.Client
	listingURL string
	userAgent  string
}

var _ core.IndexScraper = (*IndexScraper)(nil)

// NewIndexScraper builds a scraper for the given listing page.
func NewIndexScraper(client *http.Client, listingURL, userAgent string) *IndexScraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &IndexScraper{client: client, listingURL: listingURL, userAgent: userAgent}
}

// ScrapeIndex implements core.IndexScraper. Relative hrefs are resolved
// against the listing URL. Links are returned in page order, deduplicated by
// resolved URL.
func (s *IndexScraper) ScrapeIndex(ctx context.Context) ([]core.ReportLink, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape index: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape index: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scrape index: parse: %w", err)
	}

	base, err := url.Parse(s.listingURL)
	if err != nil {
		return nil, fmt.Errorf("scrape index: base url: %w", err)
	}

	seen := map[string]bool{}
	var links []core.ReportLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			text := strings.TrimSpace(nodeText(n))
			if href != "" && candidateLink(text, href) {
				if resolved := resolveHref(base, href); resolved != "" && !seen[resolved] {
					seen[resolved] = true
					links = append(links, core.ReportLink{Title: text, URL: resolved})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func candidateLink(text, href string) bool {
	return fatalLinkRe.MatchString(text) || strings.Contains(strings.ToLower(href), "fatal")
}

func resolveHref(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
