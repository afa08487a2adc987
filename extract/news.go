package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/internal/util"
	"github.com/minewatch/minewatch/logging"
)

const extractionSystem = "You are an expert at extracting structured information about mining incidents from news articles."

const extractionTemplate = `Extract the following details from the provided news article summary and title. Return ONLY a valid JSON object. The ` + "`incident_date`" + ` MUST be in YYYY-MM-DD format. If the exact date is not mentioned, return null for the ` + "`incident_date`" + ` field.

Schema: {
  "incident_date": "YYYY-MM-DD",
  "mine_name": "string",
  "district": "string",
  "state": "string",
  "fatalities": "integer",
  "injuries": "integer",
  "brief_cause": "string"
}

--- Example ---
News Article Title: Mine Wall Collapse in Dhanbad Kills One, Injures Two | Outlook India
News Article Summary: A wall of an open-cast coal mine in the Putki mining area collapsed on Sunday, killing one person and injuring two others.
Extracted JSON: {"incident_date": null, "mine_name": "Putki mining area", "district": "Dhanbad", "state": "Jharkhand", "fatalities": 1, "injuries": 2, "brief_cause": "Wall of an open-cast coal mine collapsed."}
--- End Example ---

News Article Title: `

// NewsExtractor prompts a Generator to turn an article into an incident
// candidate. Malformed model output is recorded on the candidate's Err field
// so the caller's workflow proceeds down its degraded path.
type NewsExtractor struct {
	gen    core.Generator
	logger logging.Logger
}

var _ core.Extractor = (*NewsExtractor)(nil)

// NewNewsExtractor builds an extractor over the given generator.
func NewNewsExtractor(gen core.Generator, logger logging.Logger) *NewsExtractor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &NewsExtractor{gen: gen, logger: logger}
}

// ExtractIncident implements core.Extractor. The error return covers only
// context cancellation; generation and parse failures surface on Err.
func (e *NewsExtractor) ExtractIncident(ctx context.Context, article core.Article) (core.IncidentCandidate, error) {
	prompt := extractionTemplate + article.Title + "\nNews Article Summary: " + article.Summary + "\nExtracted JSON:"

	var raw string
	err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var genErr error
		raw, genErr = e.gen.GenerateText(ctx, extractionSystem, prompt)
		return genErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return core.IncidentCandidate{}, ctx.Err()
		}
		e.logger.Warn("extract.generate.failed", "title", article.Title, "error", err.Error())
		return core.IncidentCandidate{Err: err.Error()}, nil
	}

	cand, perr := parseCandidateJSON(raw)
	if perr != nil {
		e.logger.Warn("extract.parse.failed", "title", article.Title, "error", perr.Error())
		return core.IncidentCandidate{Err: perr.Error()}, nil
	}
	return cand, nil
}

// parseCandidateJSON strips code fences and surrounding prose, then decodes
// the first JSON object in the model output.
func parseCandidateJSON(raw string) (core.IncidentCandidate, error) {
	var cand core.IncidentCandidate
	cleaned := StripJSONFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &cand); err != nil {
		return core.IncidentCandidate{}, err
	}
	if cand.IncidentDate != "" {
		cand.IncidentDate = ParseDateISO(cand.IncidentDate)
	}
	return cand, nil
}

// StripJSONFences removes markdown code fences and returns the substring from
// the first '{' or '[' to the matching last '}' or ']'. Model output often
// wraps JSON in fences or prose; this keeps just the document.
func StripJSONFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	end := strings.LastIndexByte(s, '}')
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		end = strings.LastIndexByte(s, ']')
	}
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
