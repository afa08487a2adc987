package core

import "time"

// Verification statuses recorded on committed incident records.
const (
	VerificationVerified       = "verified"
	VerificationUnverified     = "unverified"
	VerificationUnverifiedNews = "unverified_news_report"
	VerificationError          = "error"
)

// Casualty is one fatality or injury entry. Reports name individuals; news
// extraction only yields counts, in which case a single entry carries Count.
type Casualty struct {
	Name        string `json:"name,omitempty"`
	Designation string `json:"designation,omitempty"`
	Age         int    `json:"age,omitempty"`
	Experience  string `json:"experience,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// MineDetails locates the mine an incident occurred at.
type MineDetails struct {
	Name     string `json:"name"`
	Owner    string `json:"owner,omitempty"`
	District string `json:"district"`
	State    string `json:"state"`
	Mineral  string `json:"mineral,omitempty"`
}

// IncidentDetails describes what happened.
type IncidentDetails struct {
	Location   string     `json:"location,omitempty"`
	Fatalities []Casualty `json:"fatalities"`
	Injuries   []Casualty `json:"injuries"`
	BriefCause string     `json:"brief_cause"`
	CauseCode  string     `json:"cause_code,omitempty"`
}

// Verification captures cross-source corroboration of a record: the outcome
// status, when it was determined, and the corroborating article URLs.
type Verification struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Articles  []string  `json:"articles"`
}

// IncidentRecord is the normalized representation of one mine-safety accident,
// the unit persisted into the store of record. ReportID is empty until a
// government report id is assigned; news-derived records never have one.
type IncidentRecord struct {
	ReportID      string          `json:"report_id,omitempty"`
	DateReported  string          `json:"date_reported"`
	AccidentDate  string          `json:"accident_date"`
	Mine          MineDetails     `json:"mine_details"`
	Incident      IncidentDetails `json:"incident_details"`
	BestPractices []string        `json:"best_practices,omitempty"`
	SourceURL     string          `json:"source_url"`
	Summary       string          `json:"summary"`
	CreatedAt     time.Time       `json:"created_at"`
	Verification  Verification    `json:"verification"`
	RawTitle      string          `json:"raw_title,omitempty"`
	RawText       string          `json:"raw_text,omitempty"`
}

// IncidentCandidate is the intermediate shape produced by extracting an
// incident from a news article. Err carries the extraction failure instead of
// aborting: a candidate with Err set flows down the degraded path (treated as
// not-duplicate, committed with whatever fields survived).
type IncidentCandidate struct {
	IncidentDate string `json:"incident_date"`
	MineName     string `json:"mine_name"`
	District     string `json:"district"`
	State        string `json:"state"`
	Fatalities   *int   `json:"fatalities"`
	Injuries     *int   `json:"injuries"`
	BriefCause   string `json:"brief_cause"`
	Err          string `json:"-"`
}

// DuplicateQuery is the fuzzy match used to decide whether a candidate is
// already in the store: case-insensitive substring match on the location and
// mine name fields that are present, plus a ±3 day window around Date when it
// parses as YYYY-MM-DD.
type DuplicateQuery struct {
	MineName string
	District string
	State    string
	Date     string
}
