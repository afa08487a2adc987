// Package minewatch provides a high-level façade over the message bus,
// stores, capabilities and agents that make up the mine-safety incident
// pipeline. Most applications interact with this package by:
//  1. Creating a MineWatch via New() (optionally overriding the in-memory defaults)
//  2. Calling Start() to launch the bus and all agents
//  3. Asking questions through Ask() and shutting down with Stop()
//
// All defaults are safe for local development and testing; production
// deployments supply a SQLite store, a real search client and a real model
// provider.
package minewatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/minewatch/minewatch/agent"
	"github.com/minewatch/minewatch/bus"
	"github.com/minewatch/minewatch/config"
	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/extract"
	"github.com/minewatch/minewatch/logging"
	"github.com/minewatch/minewatch/model"
	"github.com/minewatch/minewatch/retrieval"
	"github.com/minewatch/minewatch/scrape"
	"github.com/minewatch/minewatch/search"
	"github.com/minewatch/minewatch/store"
)

// Options configures a MineWatch instance. Any unset capability is
// initialized with an in-memory or mock implementation.
type Options struct {
	Config config.Config

	// Store of record. Defaults to the in-memory store; when the default is
	// used it also serves keyword retrieval.
	Store   core.Store
	Keyword core.KeywordRetriever

	// External capabilities.
	Searcher  core.Searcher
	Fetcher   core.TextFetcher
	Scraper   core.IndexScraper
	Generator core.Generator
	Embedder  core.Embedder
	Locator   core.Locator

	Logger *logging.MineWatchLogger
}

// MineWatch aggregates the bus and the four agents.
type MineWatch struct {
	opts  Options
	bus   *bus.InProc
	conv  *agent.Conversational
	units []core.Agent

	mu        sync.Mutex
	running   bool
	cancelBus context.CancelFunc
	busDone   chan struct{}
}

// New wires a MineWatch instance. Overrides are applied to defaults before
// any component is constructed.
func New(optFns ...func(o *Options)) *MineWatch {
	opts := Options{Config: config.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config

	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil)
	}
	if opts.Store == nil {
		mem := store.NewInMemory()
		opts.Store = mem
		if opts.Keyword == nil {
			opts.Keyword = mem
		}
	}
	if opts.Generator == nil {
		opts.Generator = model.NewMock()
	}
	if opts.Embedder == nil {
		opts.Embedder = model.NewMock()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = scrape.NewFetcher(nil, cfg.UserAgent)
	}
	if opts.Scraper == nil {
		opts.Scraper = scrape.NewIndexScraper(nil, cfg.ListingURL, cfg.UserAgent)
	}
	if opts.Searcher == nil && cfg.SearchEndpoint != "" {
		opts.Searcher = search.New(cfg.SearchEndpoint, cfg.SearchAPIKey, func(o *search.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Searcher == nil {
		opts.Searcher = noSearch{}
	}
	if opts.Locator == nil {
		opts.Locator = extract.StaticLocator{}
	}

	b := bus.New(func(o *bus.Options) { o.Logger = opts.Logger })
	index := retrieval.NewIndex(opts.Embedder)

	extractor := extract.NewNewsExtractor(opts.Generator, opts.Logger)
	collector := extract.NewReportCollector(opts.Fetcher, opts.Logger)

	scanner := agent.NewNewsScanner(b, opts.Searcher, func(o *agent.NewsScannerOptions) {
		o.Query = cfg.NewsQuery
		o.Interval = cfg.NewsInterval
		o.BatchSize = cfg.NewsBatchSize
		o.SeenLimit = cfg.SeenArticleLimit
		o.Logger = opts.Logger
	})
	monitor := agent.NewSiteMonitor(b, opts.Scraper, opts.Fetcher, opts.Store, func(o *agent.SiteMonitorOptions) {
		o.Interval = cfg.MonitorInterval
		o.MaxLinks = cfg.MonitorMaxLinks
		o.Logger = opts.Logger
	})
	analyst := agent.NewIncidentAnalysis(b, opts.Store, extractor, collector, opts.Generator, func(o *agent.AnalysisOptions) {
		o.Locator = opts.Locator
		o.Index = index
		o.Semantic = index
		o.Keyword = opts.Keyword
		o.ScanTimeout = cfg.ScanTimeout
		o.AnalysisSchedule = cfg.AnalysisSchedule
		o.AuditSchedule = cfg.AuditSchedule
		o.AuditWindowDays = cfg.AuditWindowDays
		o.DataDir = cfg.DataDir
		o.HistoryLimit = cfg.ChatHistoryLimit
		o.Logger = opts.Logger
	})
	conv := agent.NewConversational(b, opts.Logger)

	return &MineWatch{
		opts:  opts,
		bus:   b,
		conv:  conv,
		units: []core.Agent{scanner, monitor, analyst, conv},
	}
}

// Start launches the bus dispatch loop and every agent. It returns
// immediately; Stop shuts everything down.
func (m *MineWatch) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("minewatch: already running")
	}

	busCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.bus.Run(busCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.opts.Logger.Error("bus loop ended: %s", err.Error())
		}
	}()

	for i, a := range m.units {
		if err := a.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.units[j].Stop()
			}
			cancel()
			<-done
			return fmt.Errorf("minewatch: start %s: %w", a.Name(), err)
		}
	}

	m.cancelBus = cancel
	m.busDone = done
	m.running = true
	return nil
}

// Stop shuts down the agents, then the bus. Safe to call once per Start.
func (m *MineWatch) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return errors.New("minewatch: not running")
	}

	var firstErr error
	for _, a := range m.units {
		if err := a.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("minewatch: stop %s: %w", a.Name(), err)
		}
	}
	m.cancelBus()
	<-m.busDone
	m.running = false
	return firstErr
}

// Ask submits a question and waits for its answer.
func (m *MineWatch) Ask(ctx context.Context, query string) (string, error) {
	return m.conv.Ask(ctx, query)
}

// Bus exposes the underlying bus for callers that subscribe to pipeline
// events such as safety alerts.
func (m *MineWatch) Bus() core.Bus { return m.bus }

// noSearch stands in when no search backend is configured.
type noSearch struct{}

func (noSearch) Search(context.Context, string, int) ([]core.Article, error) {
	return nil, nil
}
