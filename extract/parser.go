// Package extract turns unstructured report and article text into incident
// records. The heuristic side (regex field parsing, report-id derivation,
// date normalization) handles the semi-structured government safety alerts;
// the model side prompts a Generator to pull structured incidents out of
// free-form news text, tolerating malformed output by surfacing it as an
// extraction failure rather than an error.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/minewatch/minewatch/core"
)

var (
	nulRe      = regexp.MustCompile("\x00")
	splitNumRe = regexp.MustCompile(`(\d)\s+(\d)`)

	reportIDRe         = regexp.MustCompile(`(?i)s(?:afety)?\s*alert\s*[:\-]?\s*(\d{1,3})\s*[/-]\s*(20\d{2})`)
	reportIDFallbackRe = regexp.MustCompile(`\b(\d{1,3})\s*/\s*(20\d{2})\b`)

	subjectRe  = regexp.MustCompile(`(?i)subject\s*[:\-–]\s*(.+)`)
	causeRe    = regexp.MustCompile(`(?i)brief\s*cause\s*[:\-–]\s*(.+)`)
	placeRe    = regexp.MustCompile(`(?i)place\s*of\s*accident[^:]*[:\-–]\s*(.+)`)
	dateTimeRe = regexp.MustCompile(`(?i)date\s*(?:and\s*time)?\s*of\s*accident[^:]*[:\-–]\s*(.+)`)
	districtRe = regexp.MustCompile(`(?i)district\s*[:\-–]\s*([A-Za-z .]+)`)
	stateRe    = regexp.MustCompile(`(?i)state\s*[:\-–]\s*([A-Za-z .]+)`)

	mineNameRe    = regexp.MustCompile(`(?i)(?:name\s*of\s*mine|mine\s*name)\s*[:\-–]\s*(.+)`)
	mineOwnerRe   = regexp.MustCompile(`(?i)(?:name\s*of\s*owner|owner)\s*[:\-–]\s*(.+)`)
	mineMineralRe = regexp.MustCompile(`(?i)(?:mineral|ore)\s*[:\-–]\s*(.+)`)

	numericDateRe = regexp.MustCompile(`(\d{1,2})[./-](\d{1,2})[./-](\d{4})`)
)

// recommendation keywords: a line qualifies when it reads like an instruction.
var recKeywords = []string{"shall", "should", "ensure", "must", "provide", "prohibit", "avoid", "maintain", "supervise", "training"}

// AlertFields is the result of heuristically parsing one safety-alert text.
// Score counts how many of the four primary fields were found, a cheap
// confidence signal for callers choosing between parse candidates.
type AlertFields struct {
	Subject         string
	BriefCause      string
	Place           string
	DateTime        string
	District        string
	State           string
	Recommendations []string
	Score           int
}

// NormalizeText cleans raw extracted document text: NUL bytes become spaces,
// digit runs broken by whitespace are rejoined (a common PDF artifact), and
// PDF header lines are dropped.
func NormalizeText(text string) string {
	text = nulRe.ReplaceAllString(text, " ")
	for {
		joined := splitNumRe.ReplaceAllString(text, "$1$2")
		if joined == text {
			break
		}
		text = joined
	}
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln == "" || strings.HasPrefix(ln, "%PDF") {
			continue
		}
		lines = append(lines, ln)
	}
	return strings.Join(lines, "\n")
}

// DeriveReportID extracts the stable "SA-<n>-<year>" identifier from a
// document's text prefix and title. Returns empty when no id pattern is found.
func DeriveReportID(text, title string) string {
	t := NormalizeText(title + "\n" + text)
	m := reportIDRe.FindStringSubmatch(t)
	if m == nil {
		m = reportIDFallbackRe.FindStringSubmatch(t)
	}
	if m == nil {
		return ""
	}
	return "SA-" + m[1] + "-" + m[2]
}

// ParseAlert pulls the labeled fields of a government safety alert out of
// normalized text.
func ParseAlert(text string) AlertFields {
	t := NormalizeText(text)
	var lines []string
	for _, ln := range strings.Split(t, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			lines = append(lines, s)
		}
	}
	joined := strings.Join(lines, "\n")

	find := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(joined); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}

	f := AlertFields{
		Subject:    find(subjectRe),
		BriefCause: find(causeRe),
		Place:      find(placeRe),
		DateTime:   find(dateTimeRe),
		District:   find(districtRe),
		State:      find(stateRe),
	}
	f.Recommendations = harvestRecommendations(lines)
	for _, v := range []string{f.Subject, f.BriefCause, f.Place, f.DateTime} {
		if v != "" {
			f.Score++
		}
	}
	return f
}

// harvestRecommendations collects up to five instruction-like lines.
func harvestRecommendations(lines []string) []string {
	var recs []string
	for _, ln := range lines {
		clean := strings.Trim(ln, " -*•\t")
		if len(clean) < 20 || len(clean) > 220 {
			continue
		}
		lower := strings.ToLower(clean)
		for _, kw := range recKeywords {
			if strings.Contains(lower, kw) {
				recs = append(recs, clean)
				break
			}
		}
		if len(recs) >= 5 {
			break
		}
	}
	return recs
}

// ParseMineFields reads mine identity fields from labeled lines.
func ParseMineFields(text string) core.MineDetails {
	joined := NormalizeText(text)
	find := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(joined); m != nil {
			return strings.TrimSpace(firstLine(m[1]))
		}
		return ""
	}
	return core.MineDetails{
		Name:     find(mineNameRe),
		Owner:    find(mineOwnerRe),
		District: find(districtRe),
		State:    find(stateRe),
		Mineral:  find(mineMineralRe),
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ParseDateISO normalizes a free-form date string to YYYY-MM-DD, reading
// day-first numeric forms the source documents use. Returns empty when the
// string cannot be read as a date.
func ParseDateISO(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", "02.01.2006", "02/01/2006", "02-01-2006", "2 January 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("2-1-2006", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
