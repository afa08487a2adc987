package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/internal/testutil"
	"github.com/minewatch/minewatch/model"
	"github.com/minewatch/minewatch/store"
)

func newAnalysisAgent(t *testing.T, b core.Bus, mem *store.InMemory, extractor core.Extractor, collector core.Collector, gen core.Generator, optFns ...func(*AnalysisOptions)) *IncidentAnalysis {
	t.Helper()
	fns := append([]func(*AnalysisOptions){func(o *AnalysisOptions) {
		o.Keyword = mem
		o.ScanTimeout = 2 * time.Second
		o.Logger = discardLogger()
	}}, optFns...)
	return NewIncidentAnalysis(b, mem, extractor, collector, gen, fns...)
}

func publishArticle(t *testing.T, b *stubBus, a *IncidentAnalysis, art core.Article) {
	t.Helper()
	require.NoError(t, b.Publish(context.Background(), core.NewMessage("test", core.TopicNewsArticle, art)))
	a.handlers.Wait()
}

func publishReport(t *testing.T, b *stubBus, a *IncidentAnalysis, link core.ReportLink) {
	t.Helper()
	require.NoError(t, b.Publish(context.Background(), core.NewMessage("test", core.TopicReportDiscovered, link)))
	a.handlers.Wait()
}

func TestNewsWorkflow_SecondArticleForSameIncidentIsDuplicate(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	extractor := &testutil.StubExtractor{Candidate: core.IncidentCandidate{
		IncidentDate: "2024-01-10",
		MineName:     "Mine X",
		District:     "Dhanbad",
		State:        "Jharkhand",
		Fatalities:   testutil.IntPtr(1),
		BriefCause:   "roof fall",
	}}
	a := newAnalysisAgent(t, b, mem, extractor, &testutil.StubCollector{}, model.NewMock())

	publishArticle(t, b, a, testutil.Article("Roof fall at Mine X", "https://example.com/1", "one dead"))
	publishArticle(t, b, a, testutil.Article("Mine X accident follow-up", "https://example.com/2", "same event"))

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1, "the corroborating article must not create a second record")
	assert.Equal(t, core.VerificationUnverifiedNews, recs[0].Verification.Status)
	assert.Equal(t, "ROOF_FALL", recs[0].Incident.CauseCode)
	require.Len(t, recs[0].Incident.Fatalities, 1)
	assert.Equal(t, 1, recs[0].Incident.Fatalities[0].Count)
}

func TestNewsWorkflow_DegradedExtractionStillCommits(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	extractor := &testutil.StubExtractor{Candidate: core.IncidentCandidate{Err: "model returned garbage"}}
	a := newAnalysisAgent(t, b, mem, extractor, &testutil.StubCollector{}, model.NewMock())

	publishArticle(t, b, a, testutil.Article("unparseable", "https://example.com/3", "s"))

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerificationError, recs[0].Verification.Status)
}

func TestNewsWorkflow_LocationEnrichment(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	extractor := &testutil.StubExtractor{Candidate: core.IncidentCandidate{
		MineName:   "Putki Colliery",
		BriefCause: "wall collapse",
	}}
	a := newAnalysisAgent(t, b, mem, extractor, &testutil.StubCollector{}, model.NewMock(), func(o *AnalysisOptions) {
		o.Locator = staticLocator{}
	})

	publishArticle(t, b, a, testutil.Article("t", "https://example.com/4", "s"))

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Dhanbad", recs[0].Mine.District)
	assert.Equal(t, "Jharkhand", recs[0].Mine.State)
}

type staticLocator struct{}

func (staticLocator) Locate(context.Context, string) (string, string, bool) {
	return "Dhanbad", "Jharkhand", true
}

func reportRecord(reportID string) *core.IncidentRecord {
	return &core.IncidentRecord{
		ReportID:     reportID,
		DateReported: "2024-01-12",
		AccidentDate: "2024-01-10",
		Mine:         core.MineDetails{Name: "Putki Colliery", District: "Dhanbad", State: "Jharkhand"},
		Incident:     core.IncidentDetails{BriefCause: "roof fall"},
		Summary:      "fatal roof fall",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestReportWorkflow_VerifiedWhenCorroborated(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	searcher := &testutil.StubSearcher{Default: []core.Article{
		{Title: "Accident at Putki Colliery", URL: "https://news.example/p", Summary: "roof fall kills one"},
	}}
	NewNewsScanner(b, searcher, func(o *NewsScannerOptions) { o.Logger = discardLogger() })
	a := newAnalysisAgent(t, b, mem, &testutil.StubExtractor{}, &testutil.StubCollector{Record: reportRecord("SA-12-2024")}, model.NewMock())

	publishReport(t, b, a, core.ReportLink{ReportID: "SA-12-2024", Title: "Fatal Accident", URL: "https://dgms.example/12.pdf"})

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerificationVerified, recs[0].Verification.Status)
	assert.Equal(t, []string{"https://news.example/p"}, recs[0].Verification.Articles)
	assert.Equal(t, 0, a.pending.pending())
}

func TestReportWorkflow_UnverifiedWithoutCorroboration(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	// The collected record has no district or state; the scan must still
	// fire and the record lands unverified.
	rec := reportRecord("SA-14-2024")
	rec.Mine.District = ""
	rec.Mine.State = ""
	searcher := &testutil.StubSearcher{}
	scanner := NewNewsScanner(b, searcher, func(o *NewsScannerOptions) { o.Logger = discardLogger() })
	_ = scanner
	a := newAnalysisAgent(t, b, mem, &testutil.StubExtractor{}, &testutil.StubCollector{Record: rec}, model.NewMock())

	publishReport(t, b, a, core.ReportLink{ReportID: "SA-14-2024", Title: "Fatal Accident", URL: "https://dgms.example/14.pdf"})

	require.NotEmpty(t, searcher.Queries(), "missing location fields must not suppress the scan")
	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerificationUnverified, recs[0].Verification.Status)
	assert.Empty(t, recs[0].Verification.Articles)
}

func TestReportWorkflow_FailedCollectWritesNothing(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	a := newAnalysisAgent(t, b, mem, &testutil.StubExtractor{}, &testutil.StubCollector{Err: errors.New("fetch failed")}, model.NewMock())

	publishReport(t, b, a, core.ReportLink{ReportID: "SA-15-2024", Title: "Fatal Accident", URL: "https://dgms.example/15.pdf"})

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, b.published(core.TopicScanRequest), "a skipped collect requests no scan")
}

func TestReportWorkflow_ScanTimeoutWritesNothing(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	// No scanner subscribed: the scan request goes unanswered.
	a := newAnalysisAgent(t, b, mem, &testutil.StubExtractor{}, &testutil.StubCollector{Record: reportRecord("SA-16-2024")}, model.NewMock(),
		func(o *AnalysisOptions) { o.ScanTimeout = 50 * time.Millisecond })

	publishReport(t, b, a, core.ReportLink{ReportID: "SA-16-2024", Title: "Fatal Accident", URL: "https://dgms.example/16.pdf"})

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 0, a.pending.pending(), "timed-out waiters are cleaned up")
}

func TestReportWorkflow_VerificationOverwriteIsIdempotent(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	searcher := &testutil.StubSearcher{Default: []core.Article{
		{Title: "Putki Colliery accident", URL: "https://news.example/p", Summary: "s"},
	}}
	NewNewsScanner(b, searcher, func(o *NewsScannerOptions) { o.Logger = discardLogger() })
	a := newAnalysisAgent(t, b, mem, &testutil.StubExtractor{}, &testutil.StubCollector{Record: reportRecord("SA-12-2024")}, model.NewMock())

	link := core.ReportLink{ReportID: "SA-12-2024", Title: "Fatal Accident", URL: "https://dgms.example/12.pdf"}
	publishReport(t, b, a, link)
	publishReport(t, b, a, link)

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1, "reprocessing overwrites verification instead of inserting")
	assert.Equal(t, core.VerificationVerified, recs[0].Verification.Status)
}

func TestReportWorkflow_ConcurrentHandshakesStayIsolated(t *testing.T) {
	b := newStubBus()
	mem := store.NewInMemory()
	searcher := &testutil.StubSearcher{ByTerm: map[string][]core.Article{
		"Putki": {{Title: "Putki Colliery accident", URL: "https://news.example/putki", Summary: "s"}},
		"Gevra": {{Title: "No match for this one", URL: "https://news.example/other", Summary: "s"}},
	}}
	NewNewsScanner(b, searcher, func(o *NewsScannerOptions) { o.Logger = discardLogger() })

	recPutki := reportRecord("SA-21-2024")
	recGevra := reportRecord("SA-22-2024")
	recGevra.Mine = core.MineDetails{Name: "Gevra OC", District: "Korba", State: "Chhattisgarh"}

	collector := &routingCollector{byID: map[string]*core.IncidentRecord{
		"SA-21-2024": recPutki,
		"SA-22-2024": recGevra,
	}}
	a := newAnalysisAgent(t, b, mem, &testutil.StubExtractor{}, collector, model.NewMock())

	var wg sync.WaitGroup
	for _, id := range []string{"SA-21-2024", "SA-22-2024"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			link := core.ReportLink{ReportID: id, Title: "Fatal Accident", URL: "https://dgms.example/" + id + ".pdf"}
			assert.NoError(t, b.Publish(context.Background(), core.NewMessage("test", core.TopicReportDiscovered, link)))
		}(id)
	}
	wg.Wait()
	a.handlers.Wait()

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	byID := map[string]core.IncidentRecord{}
	for _, r := range recs {
		byID[r.ReportID] = r
	}
	assert.Equal(t, core.VerificationVerified, byID["SA-21-2024"].Verification.Status)
	assert.Equal(t, []string{"https://news.example/putki"}, byID["SA-21-2024"].Verification.Articles)
	assert.Equal(t, core.VerificationUnverified, byID["SA-22-2024"].Verification.Status,
		"a non-corroborating result must not verify the other workflow's record")
	assert.Equal(t, 0, a.pending.pending())
}

type routingCollector struct {
	byID map[string]*core.IncidentRecord
}

func (c *routingCollector) Collect(_ context.Context, link core.ReportLink) (*core.IncidentRecord, error) {
	rec, ok := c.byID[link.ReportID]
	if !ok {
		return nil, fmt.Errorf("unknown report %s", link.ReportID)
	}
	out := *rec
	return &out, nil
}
