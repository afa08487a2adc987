// Package scrape implements the outward-facing web capabilities: fetching
// plain text out of remote documents and listing candidate report links from
// the fixed government listing page. Both tolerate network and markup
// failures by returning errors the calling agents treat as skipped cycles.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/minewatch/minewatch/core"
)

// Fetcher retrieves remote documents as plain text.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

var _ core.TextFetcher = (*Fetcher)(nil)

// NewFetcher builds a Fetcher with the given user agent. A nil client gets a
// 20 second timeout default.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// FetchText implements core.TextFetcher. HTML responses are reduced to their
// paragraph text; anything else is returned as-is. maxBytes > 0 bounds the
// read to a prefix, enough for cheap report-id derivation.
func (f *Fetcher) FetchText(ctx context.Context, url string, maxBytes int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, int64(maxBytes))
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("fetch %s: read: %w", url, err)
	}

	body := string(raw)
	if isHTML(resp.Header.Get("Content-Type"), body) {
		return ParagraphText(body), nil
	}
	return body, nil
}

func isHTML(contentType, body string) bool {
	if strings.Contains(contentType, "text/html") {
		return true
	}
	head := strings.ToLower(body)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<html")
}

// ParagraphText parses HTML and joins the text of all <p> elements. Pages
// without paragraph structure yield the whole document text.
func ParagraphText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return src
	}
	var paragraphs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			if t := strings.TrimSpace(nodeText(n)); t != "" {
				paragraphs = append(paragraphs, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(paragraphs) == 0 {
		return strings.TrimSpace(nodeText(doc))
	}
	return strings.Join(paragraphs, "\n")
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			continue
		}
		b.WriteString(nodeText(c))
	}
	return b.String()
}
