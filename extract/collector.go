package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
)

// rawTextLimit bounds the raw text stored on a collected record.
const rawTextLimit = 8192

// ReportCollector fetches the full document behind a report link and parses
// it into an incident record using the heuristic alert parser.
type ReportCollector struct {
	fetcher core.TextFetcher
	logger  logging.Logger
}

var _ core.Collector = (*ReportCollector)(nil)

// NewReportCollector builds a collector over the given fetcher.
func NewReportCollector(fetcher core.TextFetcher, logger logging.Logger) *ReportCollector {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ReportCollector{fetcher: fetcher, logger: logger}
}

// Collect implements core.Collector. A fetch failure or empty document is an
// error; the caller's workflow degrades rather than crashing.
func (c *ReportCollector) Collect(ctx context.Context, link core.ReportLink) (*core.IncidentRecord, error) {
	text, err := c.fetcher.FetchText(ctx, link.URL, 0)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", link.URL, err)
	}
	if text == "" {
		return nil, fmt.Errorf("collect %s: empty document", link.URL)
	}

	fields := ParseAlert(text)
	mine := ParseMineFields(text)
	if mine.District == "" {
		mine.District = fields.District
	}
	if mine.State == "" {
		mine.State = fields.State
	}

	reportID := link.ReportID
	if reportID == "" {
		reportID = DeriveReportID(text, link.Title)
	}

	summary := fields.Subject
	if summary == "" {
		summary = fields.BriefCause
	}

	raw := text
	if len(raw) > rawTextLimit {
		raw = raw[:rawTextLimit]
	}

	now := time.Now().UTC()
	rec := &core.IncidentRecord{
		ReportID:     reportID,
		DateReported: now.Format("2006-01-02"),
		AccidentDate: ParseDateISO(fields.DateTime),
		Mine:         mine,
		Incident: core.IncidentDetails{
			Location:   fields.Place,
			BriefCause: fields.BriefCause,
			Fatalities: []core.Casualty{},
			Injuries:   []core.Casualty{},
		},
		BestPractices: fields.Recommendations,
		SourceURL:     link.URL,
		Summary:       summary,
		CreatedAt:     now,
		RawTitle:      link.Title,
		RawText:       raw,
	}
	c.logger.Debug("collect.parsed", "url", link.URL, "report_id", reportID, "score", fields.Score)
	return rec, nil
}
