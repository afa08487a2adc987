package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minewatch/minewatch/core"
)

// InMemory is a process-local Store. Records live in a map keyed by storage
// id; lookups are linear scans, fine for tests and small corpora.
// Concurrency: protected by RWMutex.
type InMemory struct {
	mu   sync.RWMutex
	recs map[string]core.IncidentRecord
	// order preserves insertion order for All/Since.
	order []string
}

var (
	_ core.Store            = (*InMemory)(nil)
	_ core.KeywordRetriever = (*InMemory)(nil)
)

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{recs: make(map[string]core.IncidentRecord)}
}

// Insert persists a new record, enforcing uniqueness of non-empty report ids.
func (s *InMemory) Insert(_ context.Context, rec core.IncidentRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ReportID != "" {
		for _, existing := range s.recs {
			if existing.ReportID == rec.ReportID {
				return "", fmt.Errorf("store: duplicate report id %q", rec.ReportID)
			}
		}
	}
	id := uuid.NewString()
	s.recs[id] = rec
	s.order = append(s.order, id)
	return id, nil
}

// CountSimilar applies the fuzzy duplicate query: case-insensitive substring
// match on each present location field plus a ±3 day accident-date window.
// A query with no usable criteria matches nothing.
func (s *InMemory) CountSimilar(_ context.Context, q core.DuplicateQuery) (int, error) {
	from, to, dateOK := dateWindow(q.Date, 3)
	if q.MineName == "" && q.District == "" && q.State == "" && !dateOK {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.recs {
		if !containsFold(rec.Mine.Name, q.MineName) {
			continue
		}
		if !containsFold(rec.Mine.District, q.District) {
			continue
		}
		if !containsFold(rec.Mine.State, q.State) {
			continue
		}
		if dateOK && (rec.AccidentDate < from || rec.AccidentDate > to) {
			continue
		}
		count++
	}
	return count, nil
}

// HasReportID reports whether a record with the given report id exists.
func (s *InMemory) HasReportID(_ context.Context, reportID string) (bool, error) {
	if reportID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.recs {
		if rec.ReportID == reportID {
			return true, nil
		}
	}
	return false, nil
}

// UpdateVerification overwrites the verification block of the record keyed by
// report id. Exactly one record must match.
func (s *InMemory) UpdateVerification(_ context.Context, reportID string, v core.Verification) error {
	if reportID == "" {
		return fmt.Errorf("store: empty report id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.recs {
		if rec.ReportID == reportID {
			rec.Verification = v
			s.recs[id] = rec
			return nil
		}
	}
	return fmt.Errorf("store: report id %q not found", reportID)
}

// All returns every stored record in insertion order.
func (s *InMemory) All(_ context.Context) ([]core.IncidentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.IncidentRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.recs[id])
	}
	return out, nil
}

// Since returns records with accident dates inside [from, to].
func (s *InMemory) Since(_ context.Context, from, to string) ([]core.IncidentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.IncidentRecord
	for _, id := range s.order {
		rec := s.recs[id]
		if rec.AccidentDate >= from && rec.AccidentDate <= to {
			out = append(out, rec)
		}
	}
	return out, nil
}

// RetrieveKeyword performs a substring scan over cause, summary and mine
// fields, formatting hits as labeled context blocks.
func (s *InMemory) RetrieveKeyword(_ context.Context, query string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		rec := s.recs[id]
		hay := strings.ToLower(strings.Join([]string{
			rec.Mine.Name, rec.Mine.District, rec.Mine.State,
			rec.Incident.BriefCause, rec.Summary,
		}, " "))
		if anyTokenMatches(hay, query) {
			out = append(out, FormatContextBlock(rec))
		}
	}
	return out, nil
}

func anyTokenMatches(hay, query string) bool {
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(hay, tok) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// dateWindow expands a YYYY-MM-DD date into the inclusive [date-days, date+days]
// window. ok is false when the date does not parse.
func dateWindow(date string, days int) (from, to string, ok bool) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", "", false
	}
	span := time.Duration(days) * 24 * time.Hour
	return t.Add(-span).Format("2006-01-02"), t.Add(span).Format("2006-01-02"), true
}

// FormatContextBlock renders one record as the labeled block fed to the
// question-answering prompt.
func FormatContextBlock(rec core.IncidentRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report ID: %s\n", orNA(rec.ReportID))
	fmt.Fprintf(&b, "Mine: %s, %s, %s\n", orNA(rec.Mine.Name), orNA(rec.Mine.District), orNA(rec.Mine.State))
	fmt.Fprintf(&b, "Accident Date: %s\n", orNA(rec.AccidentDate))
	fmt.Fprintf(&b, "Cause: %s\n", orNA(rec.Incident.BriefCause))
	fmt.Fprintf(&b, "Summary: %s\n", orNA(rec.Summary))
	if len(rec.BestPractices) > 0 {
		fmt.Fprintf(&b, "Best Practices: %s\n", strings.Join(rec.BestPractices, "; "))
	}
	fmt.Fprintf(&b, "Verification: %s\n", orNA(rec.Verification.Status))
	fmt.Fprintf(&b, "Source: %s", orNA(rec.SourceURL))
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
