package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/internal/testutil"
	"github.com/minewatch/minewatch/store"
)

func TestSiteMonitor_SkipsKnownReportIDs(t *testing.T) {
	mem := store.NewInMemory()
	_, err := mem.Insert(context.Background(), core.IncidentRecord{
		ReportID:     "SA-12-2024",
		AccidentDate: "2024-01-10",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	b := newStubBus()
	scraper := &testutil.StubScraper{Links: []core.ReportLink{
		{Title: "Fatal Accident", URL: "https://dgms.example/known.pdf"},
		{Title: "Fatal Accident", URL: "https://dgms.example/new.pdf"},
	}}
	fetcher := &testutil.StubFetcher{ByURL: map[string]string{
		"https://dgms.example/known.pdf": "Safety Alert: 12/2024\nSubject: roof fall",
		"https://dgms.example/new.pdf":   "Safety Alert: 13/2024\nSubject: side fall",
	}}

	a := NewSiteMonitor(b, scraper, fetcher, mem, func(o *SiteMonitorOptions) { o.Logger = discardLogger() })
	a.scanOnce(context.Background())

	discovered := b.published(core.TopicReportDiscovered)
	require.Len(t, discovered, 1, "already stored report ids are not republished")
	link := discovered[0].Payload.(core.ReportLink)
	assert.Equal(t, "SA-13-2024", link.ReportID)
	assert.Equal(t, "https://dgms.example/new.pdf", link.URL)
}

func TestSiteMonitor_ScrapeFailureSkipsCycle(t *testing.T) {
	b := newStubBus()
	a := NewSiteMonitor(b, &testutil.StubScraper{Err: errors.New("listing down")}, &testutil.StubFetcher{}, store.NewInMemory(),
		func(o *SiteMonitorOptions) { o.Logger = discardLogger() })

	a.scanOnce(context.Background())
	assert.Empty(t, b.published(core.TopicReportDiscovered))
}

func TestSiteMonitor_FetchFailureFallsBackToTitle(t *testing.T) {
	b := newStubBus()
	scraper := &testutil.StubScraper{Links: []core.ReportLink{
		{Title: "Fatal Accident Safety Alert 7/2023", URL: "https://dgms.example/x.pdf"},
	}}
	a := NewSiteMonitor(b, scraper, &testutil.StubFetcher{Err: errors.New("timeout")}, store.NewInMemory(),
		func(o *SiteMonitorOptions) { o.Logger = discardLogger() })

	a.scanOnce(context.Background())
	discovered := b.published(core.TopicReportDiscovered)
	require.Len(t, discovered, 1)
	assert.Equal(t, "SA-7-2023", discovered[0].Payload.(core.ReportLink).ReportID)
}

func TestSiteMonitor_MaxLinksBoundsCycle(t *testing.T) {
	b := newStubBus()
	links := make([]core.ReportLink, 5)
	for i := range links {
		links[i] = core.ReportLink{Title: "Fatal Accident", URL: "https://dgms.example/" + string(rune('a'+i))}
	}
	a := NewSiteMonitor(b, &testutil.StubScraper{Links: links}, &testutil.StubFetcher{Default: "no id here"}, store.NewInMemory(),
		func(o *SiteMonitorOptions) {
			o.MaxLinks = 2
			o.Logger = discardLogger()
		})

	a.scanOnce(context.Background())
	assert.Len(t, b.published(core.TopicReportDiscovered), 2)
}
