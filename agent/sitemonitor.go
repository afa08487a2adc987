package agent

import (
	"context"
	"time"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/extract"
	"github.com/minewatch/minewatch/logging"
)

// prefixBytes is how much of a report document is fetched to derive its id.
const prefixBytes = 4096

// SiteMonitorOptions configures a SiteMonitor.
type SiteMonitorOptions struct {
	Interval time.Duration
	MaxLinks int
	Logger   *logging.MineWatchLogger
}

// SiteMonitor polls the report listing page, derives stable report ids from
// document prefixes and publishes links not yet in the store of record.
type SiteMonitor struct {
	Base
	scraper core.IndexScraper
	fetcher core.TextFetcher
	store   core.Store
	opts    SiteMonitorOptions
}

var _ core.Agent = (*SiteMonitor)(nil)

// NewSiteMonitor builds the monitor.
func NewSiteMonitor(bus core.Bus, scraper core.IndexScraper, fetcher core.TextFetcher, store core.Store, optFns ...func(*SiteMonitorOptions)) *SiteMonitor {
	opts := SiteMonitorOptions{
		Interval: 30 * time.Minute,
		MaxLinks: 10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SiteMonitor{
		Base:    NewBase("site_monitor", bus, opts.Logger),
		scraper: scraper,
		fetcher: fetcher,
		store:   store,
		opts:    opts,
	}
}

// Start launches the polling loop.
func (a *SiteMonitor) Start(ctx context.Context) error { return a.launch(ctx, a.Run) }

// Run polls until the context is cancelled. The first scan happens
// immediately.
func (a *SiteMonitor) Run(ctx context.Context) error {
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

// scanOnce lists candidate links and publishes the new ones. A scrape
// failure skips the whole cycle; a per-link failure skips just that link.
func (a *SiteMonitor) scanOnce(ctx context.Context) {
	start := time.Now()
	links, err := a.scraper.ScrapeIndex(ctx)
	if err != nil {
		a.logger.LogScanCycle("reports", 0, time.Since(start), err)
		return
	}
	if len(links) > a.opts.MaxLinks {
		links = links[:a.opts.MaxLinks]
	}

	published := 0
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		if link.ReportID == "" {
			link.ReportID = a.deriveID(ctx, link)
		}
		if link.ReportID != "" {
			known, err := a.store.HasReportID(ctx, link.ReportID)
			if err != nil {
				a.logger.Warn("report id lookup failed for %s: %s", link.ReportID, err.Error())
				continue
			}
			if known {
				continue
			}
		}
		if err := a.Publish(ctx, core.TopicReportDiscovered, link); err != nil {
			a.logger.Warn("publish report link failed: %s", err.Error())
			continue
		}
		published++
	}
	a.logger.LogScanCycle("reports", published, time.Since(start), nil)
}

// deriveID fetches a document prefix and derives the stable report id from
// it. A fetch failure falls back to the link title alone.
func (a *SiteMonitor) deriveID(ctx context.Context, link core.ReportLink) string {
	text, err := a.fetcher.FetchText(ctx, link.URL, prefixBytes)
	if err != nil {
		a.logger.Debug("prefix fetch failed for %s: %s", link.URL, err.Error())
		return extract.DeriveReportID("", link.Title)
	}
	return extract.DeriveReportID(text, link.Title)
}
