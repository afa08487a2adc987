package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic identifies a message category on the bus. The set of topics is closed:
// every topic carries exactly one payload type, validated at publish time.
type Topic string

const (
	// TopicNewsArticle carries an Article discovered by the news scanner.
	TopicNewsArticle Topic = "news.article"
	// TopicReportDiscovered carries a ReportLink found on the listing page.
	TopicReportDiscovered Topic = "report.discovered"
	// TopicScanRequest asks the news scanner for an on-demand corroboration scan.
	TopicScanRequest Topic = "scan.request"
	// TopicScanResults carries the correlated reply to a scan request.
	TopicScanResults Topic = "scan.results"
	// TopicQuerySubmitted carries a user question into the analysis agent.
	TopicQuerySubmitted Topic = "query.submitted"
	// TopicQueryAnswered carries the final answer back to the asking side.
	TopicQueryAnswered Topic = "query.answered"
	// TopicSafetyAlert carries one generated safety alert string.
	TopicSafetyAlert Topic = "safety.alert"
	// TopicAnalysisReady signals completion of a pattern-analysis cycle.
	TopicAnalysisReady Topic = "analysis.ready"
	// TopicAuditReady signals completion of an audit-report cycle.
	TopicAuditReady Topic = "audit.ready"
)

// Message is the unit of communication between agents. It is immutable once
// published: the bus hands the same value to every subscriber and discards it
// after dispatch (no persistence or replay).
type Message struct {
	ID            string    `json:"id"`
	Origin        string    `json:"origin"`
	Topic         Topic     `json:"topic"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Payload       any       `json:"payload"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMessage constructs a message authored by origin. The correlation id is
// left empty; request/reply payloads carry their own.
func NewMessage(origin string, topic Topic, payload any) Message {
	return Message{
		ID:        uuid.NewString(),
		Origin:    origin,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Article is one news search result or discovered article.
type Article struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Summary       string `json:"summary,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

// ReportLink is a candidate government report found on the listing page,
// with its derived stable identifier.
type ReportLink struct {
	ReportID string `json:"report_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// ScanRequest asks the news scanner for a narrow on-demand search to
// corroborate a report. Location fields may be empty; the scanner builds the
// best query it can from what is present.
type ScanRequest struct {
	CorrelationID string `json:"correlation_id"`
	MineName      string `json:"mine_name"`
	District      string `json:"district"`
	State         string `json:"state"`
	Date          string `json:"date"` // YYYY-MM-DD, may be empty
}

// ScanResults is the correlated reply to a ScanRequest.
type ScanResults struct {
	CorrelationID string    `json:"correlation_id"`
	Articles      []Article `json:"articles"`
}

// UserQuery carries one user question and the id its answer must echo.
type UserQuery struct {
	CorrelationID string `json:"correlation_id"`
	Query         string `json:"query"`
}

// QueryAnswer is the terminating response for a user query. Fallback marks
// answers produced by the degraded error path.
type QueryAnswer struct {
	CorrelationID string `json:"correlation_id"`
	Answer        string `json:"answer"`
	Fallback      bool   `json:"fallback,omitempty"`
}

// SafetyAlert is one actionable alert derived from pattern analysis.
type SafetyAlert struct {
	Alert string `json:"alert"`
}

// AnalysisReady announces a completed pattern-analysis cycle.
type AnalysisReady struct {
	Narrative string `json:"narrative"`
	Alerts    int    `json:"alerts"`
}

// AuditReady announces a completed audit report.
type AuditReady struct {
	Name string `json:"name"`
}

// ValidatePayload checks that payload has the type the topic declares.
// The bus rejects publishes that fail validation so subscribers never see a
// payload of the wrong shape.
func ValidatePayload(topic Topic, payload any) error {
	var ok bool
	switch topic {
	case TopicNewsArticle:
		_, ok = payload.(Article)
	case TopicReportDiscovered:
		_, ok = payload.(ReportLink)
	case TopicScanRequest:
		_, ok = payload.(ScanRequest)
	case TopicScanResults:
		_, ok = payload.(ScanResults)
	case TopicQuerySubmitted:
		_, ok = payload.(UserQuery)
	case TopicQueryAnswered:
		_, ok = payload.(QueryAnswer)
	case TopicSafetyAlert:
		_, ok = payload.(SafetyAlert)
	case TopicAnalysisReady:
		_, ok = payload.(AnalysisReady)
	case TopicAuditReady:
		_, ok = payload.(AuditReady)
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}
	if !ok {
		return fmt.Errorf("topic %q: unexpected payload type %T", topic, payload)
	}
	return nil
}
