package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) GenerateText(context.Context, string, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestNewsExtractor_ValidJSON(t *testing.T) {
	gen := &stubGenerator{reply: "```json\n{\"incident_date\": \"2024-01-10\", \"mine_name\": \"Mine X\", \"district\": \"District Y\", \"state\": \"Jharkhand\", \"fatalities\": 1, \"injuries\": 2, \"brief_cause\": \"roof fall\"}\n```"}
	ex := NewNewsExtractor(gen, logging.NoOpLogger{})

	cand, err := ex.ExtractIncident(context.Background(), core.Article{Title: "t", Summary: "s"})
	require.NoError(t, err)
	assert.Empty(t, cand.Err)
	assert.Equal(t, "Mine X", cand.MineName)
	assert.Equal(t, "2024-01-10", cand.IncidentDate)
	require.NotNil(t, cand.Fatalities)
	assert.Equal(t, 1, *cand.Fatalities)
}

func TestNewsExtractor_NullDate(t *testing.T) {
	gen := &stubGenerator{reply: `{"incident_date": null, "mine_name": "Putki", "district": "Dhanbad", "state": "Jharkhand", "fatalities": 1, "injuries": 2, "brief_cause": "wall collapse"}`}
	ex := NewNewsExtractor(gen, logging.NoOpLogger{})

	cand, err := ex.ExtractIncident(context.Background(), core.Article{})
	require.NoError(t, err)
	assert.Empty(t, cand.Err)
	assert.Empty(t, cand.IncidentDate)
}

func TestNewsExtractor_MalformedOutputDegrades(t *testing.T) {
	gen := &stubGenerator{reply: "sorry, I cannot help with that"}
	ex := NewNewsExtractor(gen, logging.NoOpLogger{})

	cand, err := ex.ExtractIncident(context.Background(), core.Article{Title: "t"})
	require.NoError(t, err, "malformed output must not surface as an error")
	assert.NotEmpty(t, cand.Err)
}

func TestNewsExtractor_GeneratorFailureDegrades(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	ex := NewNewsExtractor(gen, logging.NoOpLogger{})

	cand, err := ex.ExtractIncident(context.Background(), core.Article{Title: "t"})
	require.NoError(t, err)
	assert.Contains(t, cand.Err, "quota exceeded")
	assert.Equal(t, 3, gen.calls, "transient generation failures are retried")
}
