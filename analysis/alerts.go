package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/extract"
)

const alertSystem = "You are a mine safety officer drafting concise, actionable safety alerts."

const alertTemplate = `Based on the following analysis of recent mining incidents, generate a list of short safety alerts for mine operators. Return ONLY a valid JSON array of strings, each string one alert. Generate at most %d alerts.

Analysis:
%s`

// GenerateAlerts prompts the generator for safety alerts derived from a
// pattern narrative. Output that is not a JSON array of strings is an error.
func GenerateAlerts(ctx context.Context, gen core.Generator, narrative string, max int) ([]string, error) {
	if max <= 0 {
		max = 5
	}
	raw, err := gen.GenerateText(ctx, alertSystem, fmt.Sprintf(alertTemplate, max, narrative))
	if err != nil {
		return nil, fmt.Errorf("generate alerts: %w", err)
	}
	var alerts []string
	if err := json.Unmarshal([]byte(extract.StripJSONFences(raw)), &alerts); err != nil {
		return nil, fmt.Errorf("generate alerts: parse: %w", err)
	}
	out := alerts[:0]
	for _, a := range alerts {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

const recommendationSystem = "You are a mine safety expert writing preventive recommendations."

const recommendationTemplate = `Based on the following analysis of recent mining incidents, write preventive safety recommendations for mine management. Write one recommendation per line, with no numbering and no other text.

Analysis:
%s`

// GenerateRecommendations prompts the generator and splits the reply into
// one recommendation per non-empty line.
func GenerateRecommendations(ctx context.Context, gen core.Generator, narrative string) ([]string, error) {
	raw, err := gen.GenerateText(ctx, recommendationSystem, fmt.Sprintf(recommendationTemplate, narrative))
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}
	var recs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if line != "" {
			recs = append(recs, line)
		}
	}
	return recs, nil
}
