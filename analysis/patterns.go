// Package analysis derives recurring-pattern summaries, safety alerts and
// audit reports from the stored incident corpus.
package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/minewatch/minewatch/core"
)

// Summary tallies the corpus along the axes the periodic jobs report on.
type Summary struct {
	Total      int
	Fatalities int
	Injuries   int
	ByState    map[string]int
	ByDistrict map[string]int
	ByCause    map[string]int
	BySeason   map[string]int
	ByDaytime  map[string]int
	Verified   int
	Unverified int
}

// Analyze tallies the given records. Records with missing fields land in the
// "unknown" bucket of the corresponding axis.
func Analyze(recs []core.IncidentRecord) Summary {
	s := Summary{
		ByState:    map[string]int{},
		ByDistrict: map[string]int{},
		ByCause:    map[string]int{},
		BySeason:   map[string]int{},
		ByDaytime:  map[string]int{},
	}
	for _, r := range recs {
		s.Total++
		s.Fatalities += len(r.Incident.Fatalities)
		s.Injuries += len(r.Incident.Injuries)
		s.ByState[bucket(r.Mine.State)]++
		s.ByDistrict[bucket(r.Mine.District)]++
		s.ByCause[ClassifyCause(r.Incident.BriefCause)]++
		s.BySeason[season(r.AccidentDate)]++
		s.ByDaytime[daytimeFromText(r.RawText)]++
		switch r.Verification.Status {
		case core.VerificationVerified:
			s.Verified++
		default:
			s.Unverified++
		}
	}
	return s
}

func bucket(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return strings.ToLower(v)
}

// season maps an ISO accident date to the Indian season calendar.
func season(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return "unknown"
	}
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "summer"
	case time.June, time.July, time.August, time.September:
		return "monsoon"
	default:
		return "post-monsoon"
	}
}

var clockRe = regexp.MustCompile(`\b([01]?\d|2[0-3])[:.]([0-5]\d)\s*(?:hrs|hours|am|pm|AM|PM)?\b`)

// daytimeFromText extracts the first clock time mentioned in the raw report
// text and buckets it. Reports rarely carry a structured time.
func daytimeFromText(text string) string {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return "unknown"
	}
	var hour int
	fmt.Sscanf(m[1], "%d", &hour)
	if strings.Contains(strings.ToLower(m[0]), "pm") && hour < 12 {
		hour += 12
	}
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// RenderNarrative formats the summary as the plain-text pattern narrative fed
// to the alert and recommendation prompts.
func RenderNarrative(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incidents analyzed: %d (%d verified, %d unverified). Fatalities recorded: %d. Injuries recorded: %d.\n",
		s.Total, s.Verified, s.Unverified, s.Fatalities, s.Injuries)
	writeAxis(&b, "By cause", s.ByCause)
	writeAxis(&b, "By state", s.ByState)
	writeAxis(&b, "By district", s.ByDistrict)
	writeAxis(&b, "By season", s.BySeason)
	writeAxis(&b, "By time of day", s.ByDaytime)
	return b.String()
}

func writeAxis(b *strings.Builder, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	type kv struct {
		k string
		n int
	}
	ordered := make([]kv, 0, len(counts))
	for k, n := range counts {
		ordered = append(ordered, kv{k, n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].n != ordered[j].n {
			return ordered[i].n > ordered[j].n
		}
		return ordered[i].k < ordered[j].k
	})
	parts := make([]string, 0, len(ordered))
	for _, e := range ordered {
		parts = append(parts, fmt.Sprintf("%s: %d", e.k, e.n))
	}
	fmt.Fprintf(b, "%s - %s.\n", label, strings.Join(parts, ", "))
}
