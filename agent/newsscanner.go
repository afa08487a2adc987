package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
)

// NewsScannerOptions configures a NewsScanner.
type NewsScannerOptions struct {
	Query     string
	Interval  time.Duration
	BatchSize int
	SeenLimit int
	// Fetcher, when set, enables article validation: the page body is
	// fetched and short or empty pages are dropped before publishing.
	Fetcher core.TextFetcher
	// MinArticleLength is the smallest page body accepted by validation.
	MinArticleLength int
	Logger           *logging.MineWatchLogger
}

// NewsScanner polls the news-search capability with a standing query and
// publishes one event per unseen article. It also answers on-demand scan
// requests used for report corroboration.
type NewsScanner struct {
	Base
	searcher core.Searcher
	opts     NewsScannerOptions
	seen     *seenSet
}

var _ core.Agent = (*NewsScanner)(nil)

// NewNewsScanner builds the scanner and registers its scan-request handler.
func NewNewsScanner(bus core.Bus, searcher core.Searcher, optFns ...func(*NewsScannerOptions)) *NewsScanner {
	opts := NewsScannerOptions{
		Query:            "mining accident India",
		Interval:         5 * time.Minute,
		BatchSize:        10,
		SeenLimit:        2048,
		MinArticleLength: 400,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	a := &NewsScanner{
		Base:     NewBase("news_scanner", bus, opts.Logger),
		searcher: searcher,
		opts:     opts,
		seen:     newSeenSet(opts.SeenLimit),
	}
	a.Subscribe(core.TopicScanRequest, a.handleScanRequest)
	return a
}

// Start launches the polling loop.
func (a *NewsScanner) Start(ctx context.Context) error { return a.launch(ctx, a.Run) }

// Run polls until the context is cancelled. The first scan happens
// immediately.
func (a *NewsScanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.Interval)
	defer ticker.Stop()
	for {
		a.scanOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *NewsScanner) scanOnce(ctx context.Context) {
	start := time.Now()
	articles, err := a.searcher.Search(ctx, a.opts.Query, a.opts.BatchSize)
	if err != nil {
		a.logger.LogScanCycle("news", 0, time.Since(start), err)
		return
	}

	published := 0
	for _, art := range articles {
		if !a.seen.Add(art.URL) {
			continue
		}
		if !a.validate(ctx, &art) {
			continue
		}
		if err := a.Publish(ctx, core.TopicNewsArticle, art); err != nil {
			a.logger.Warn("publish article failed: %s", err.Error())
			continue
		}
		published++
	}
	a.logger.LogScanCycle("news", published, time.Since(start), nil)
}

// validate fetches the article body when a fetcher is configured and drops
// pages too short to be a real article. A missing summary is filled from the
// body.
func (a *NewsScanner) validate(ctx context.Context, art *core.Article) bool {
	if a.opts.Fetcher == nil {
		return true
	}
	body, err := a.opts.Fetcher.FetchText(ctx, art.URL, 0)
	if err != nil {
		a.logger.Debug("article fetch failed, keeping search snippet: %s", art.URL)
		return art.Summary != ""
	}
	if len(body) < a.opts.MinArticleLength {
		a.logger.Debug("article rejected as too short: %s", art.URL)
		return false
	}
	if art.Summary == "" {
		if len(body) > 500 {
			body = body[:500]
		}
		art.Summary = strings.TrimSpace(body)
	}
	return true
}

// handleScanRequest runs a narrow corroboration query and always answers
// with the request's correlation id, even when the search fails.
func (a *NewsScanner) handleScanRequest(ctx context.Context, msg core.Message) error {
	req, ok := msg.Payload.(core.ScanRequest)
	if !ok {
		return fmt.Errorf("scan request: unexpected payload %T", msg.Payload)
	}

	articles, err := a.searcher.Search(ctx, narrowQuery(req), 5)
	if err != nil {
		a.logger.Warn("corroboration search failed: %s", err.Error())
		articles = nil
	}
	matched := corroborating(articles, req)

	return a.PublishCorrelated(ctx, core.TopicScanResults, req.CorrelationID, core.ScanResults{
		CorrelationID: req.CorrelationID,
		Articles:      matched,
	})
}

// narrowQuery builds the on-demand query, omitting missing fields.
func narrowQuery(req core.ScanRequest) string {
	var b strings.Builder
	if req.MineName != "" {
		fmt.Fprintf(&b, "%q ", req.MineName)
	}
	b.WriteString("mine accident")
	if loc := strings.Trim(req.District+", "+req.State, ", "); loc != "" {
		b.WriteString(" in " + loc)
	}
	if req.Date != "" {
		b.WriteString(" on " + req.Date)
	}
	return strings.TrimSpace(b.String())
}

// corroborating keeps articles that mention the mine, district or state.
// With no criteria nothing can corroborate.
func corroborating(articles []core.Article, req core.ScanRequest) []core.Article {
	terms := make([]string, 0, 3)
	for _, t := range []string{req.MineName, req.District, req.State} {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, strings.ToLower(t))
		}
	}
	if len(terms) == 0 {
		return nil
	}
	var out []core.Article
	for _, art := range articles {
		text := strings.ToLower(art.Title + " " + art.Summary)
		for _, term := range terms {
			if strings.Contains(text, term) {
				out = append(out, art)
				break
			}
		}
	}
	return out
}
