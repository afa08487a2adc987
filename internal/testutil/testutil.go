// Package testutil provides stub capabilities and record builders shared by
// the agent and facade tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/minewatch/minewatch/core"
)

// Article builds a news article.
func Article(title, url, summary string) core.Article {
	return core.Article{Title: title, URL: url, Summary: summary}
}

// StubSearcher returns canned results per query substring, with a default.
type StubSearcher struct {
	mu      sync.Mutex
	Default []core.Article
	ByTerm  map[string][]core.Article
	Err     error
	queries []string
}

// Search implements core.Searcher.
func (s *StubSearcher) Search(_ context.Context, query string, _ int) ([]core.Article, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for term, arts := range s.ByTerm {
		if term != "" && strings.Contains(query, term) {
			return arts, nil
		}
	}
	return s.Default, nil
}

// Queries returns every query seen, in order.
func (s *StubSearcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// StubExtractor returns a fixed candidate.
type StubExtractor struct {
	Candidate core.IncidentCandidate
	Err       error
}

// ExtractIncident implements core.Extractor.
func (s *StubExtractor) ExtractIncident(context.Context, core.Article) (core.IncidentCandidate, error) {
	return s.Candidate, s.Err
}

// StubCollector returns a copy of a fixed record with the link's id and URL
// filled in.
type StubCollector struct {
	Record *core.IncidentRecord
	Err    error
}

// Collect implements core.Collector.
func (s *StubCollector) Collect(_ context.Context, link core.ReportLink) (*core.IncidentRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	rec := *s.Record
	if rec.ReportID == "" {
		rec.ReportID = link.ReportID
	}
	if rec.SourceURL == "" {
		rec.SourceURL = link.URL
	}
	return &rec, nil
}

// StubFetcher returns canned text per URL.
type StubFetcher struct {
	ByURL   map[string]string
	Default string
	Err     error
}

// FetchText implements core.TextFetcher.
func (s *StubFetcher) FetchText(_ context.Context, url string, maxBytes int) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	text, ok := s.ByURL[url]
	if !ok {
		text = s.Default
	}
	if maxBytes > 0 && len(text) > maxBytes {
		text = text[:maxBytes]
	}
	return text, nil
}

// StubScraper returns a fixed link list.
type StubScraper struct {
	Links []core.ReportLink
	Err   error
}

// ScrapeIndex implements core.IndexScraper.
func (s *StubScraper) ScrapeIndex(context.Context) ([]core.ReportLink, error) {
	return s.Links, s.Err
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
