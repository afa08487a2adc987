// Package search provides the news search capability backed by a hosted
// search API with a JSON request/response surface.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/internal/util"
	"github.com/minewatch/minewatch/logging"
)

// Client talks to the search API. It implements core.Searcher.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     logging.Logger
}

var _ core.Searcher = (*Client)(nil)

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	Logger     logging.Logger
}

// New builds a search client for the given endpoint and key.
func New(endpoint, apiKey string, optFns ...func(*Options)) *Client {
	opts := Options{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{
		httpClient: opts.HTTPClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		logger:     opts.Logger,
	}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	Topic      string `json:"topic"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

// Search implements core.Searcher. Transient transport failures are retried;
// a non-2xx response is an error the caller treats as a skipped cycle.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]core.Article, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		Topic:      "news",
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search: encode request: %w", err)
	}

	var decoded searchResponse
	err = util.Retry(ctx, 3, time.Second, func() error {
		return c.doSearch(ctx, body, &decoded)
	})
	if err != nil {
		return nil, err
	}

	articles := make([]core.Article, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.URL == "" {
			continue
		}
		articles = append(articles, core.Article{
			Title:         r.Title,
			URL:           r.URL,
			Summary:       r.Content,
			PublishedDate: r.PublishedDate,
		})
	}
	c.logger.Debug("search.done", "query", query, "results", len(articles))
	return articles, nil
}

func (c *Client) doSearch(ctx context.Context, body []byte, out *searchResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("search: status %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("search: decode response: %w", err)
	}
	return nil
}
