package minewatch

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/internal/testutil"
	"github.com/minewatch/minewatch/logging"
	"github.com/minewatch/minewatch/model"
	"github.com/minewatch/minewatch/store"
)

func quietLogger() *logging.MineWatchLogger {
	return logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelError, Format: "text", Output: io.Discard})
}

func TestMineWatch_StartAskStop(t *testing.T) {
	mem := store.NewInMemory()
	_, err := mem.Insert(context.Background(), core.IncidentRecord{
		ReportID:     "SA-12-2024",
		AccidentDate: "2024-01-10",
		Mine:         core.MineDetails{Name: "Putki Colliery", District: "Dhanbad", State: "Jharkhand"},
		Incident:     core.IncidentDetails{BriefCause: "roof fall"},
		Summary:      "fatal roof fall at putki",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	gen := model.NewMock().AddReply("Context:", "One fatal roof fall at Putki Colliery.")
	mw := New(func(o *Options) {
		o.Store = mem
		o.Keyword = mem
		o.Generator = gen
		o.Searcher = &testutil.StubSearcher{}
		o.Logger = quietLogger()
	})

	ctx := context.Background()
	require.NoError(t, mw.Start(ctx))
	defer func() { _ = mw.Stop() }()

	assert.Error(t, mw.Start(ctx), "double start is rejected")

	askCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	answer, err := mw.Ask(askCtx, "what happened at putki?")
	require.NoError(t, err)
	assert.Equal(t, "One fatal roof fall at Putki Colliery.", answer)

	require.NoError(t, mw.Stop())
	assert.Error(t, mw.Stop(), "double stop is rejected")

	require.NoError(t, mw.Start(ctx), "restart after stop works")
	askCtx2, cancel2 := context.WithTimeout(ctx, 5*time.Second)
	defer cancel2()
	answer, err = mw.Ask(askCtx2, "what happened at putki?")
	require.NoError(t, err, "the restarted pipeline must answer")
	assert.Equal(t, "One fatal roof fall at Putki Colliery.", answer)
}

func TestMineWatch_ReportPipelineEndToEnd(t *testing.T) {
	mem := store.NewInMemory()
	scraper := &testutil.StubScraper{Links: []core.ReportLink{
		{Title: "Fatal Accident Safety Alert 12/2024", URL: "https://dgms.example/12.pdf"},
	}}
	fetcher := &testutil.StubFetcher{Default: `Safety Alert: 12/2024
Subject: Fatal accident due to roof fall
Name of Mine: Putki Colliery
District: Dhanbad
State: Jharkhand
Date and time of accident: 10.01.2024
Brief cause: Roof fall at the development face.`}
	// Keyed by term so the standing news query finds nothing and only the
	// narrow corroboration scan returns the article.
	searcher := &testutil.StubSearcher{ByTerm: map[string][]core.Article{
		"Putki": {{Title: "Accident at Putki Colliery", URL: "https://news.example/p", Summary: "roof fall"}},
	}}

	mw := New(func(o *Options) {
		o.Store = mem
		o.Keyword = mem
		o.Scraper = scraper
		o.Fetcher = fetcher
		o.Searcher = searcher
		o.Generator = model.NewMock()
		o.Logger = quietLogger()
	})

	require.NoError(t, mw.Start(context.Background()))
	defer func() { _ = mw.Stop() }()

	require.Eventually(t, func() bool {
		recs, err := mem.All(context.Background())
		return err == nil && len(recs) == 1 && recs[0].Verification.Status == core.VerificationVerified
	}, 5*time.Second, 20*time.Millisecond, "the discovered report must end verified")

	recs, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SA-12-2024", recs[0].ReportID)
	assert.Equal(t, []string{"https://news.example/p"}, recs[0].Verification.Articles)
}
