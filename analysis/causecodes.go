package analysis

import "strings"

// causeCodes maps the standard accident cause categories to the keywords
// that indicate them in a brief-cause text.
var causeCodes = []struct {
	Code        string
	Description string
	Keywords    []string
}{
	{"ROOF_FALL", "Fall of roof in belowground workings", []string{"roof fall", "fall of roof", "roof collapse"}},
	{"SIDE_FALL", "Fall of sides, slope or bench failure", []string{"side fall", "fall of side", "bench", "slope failure", "wall collapse", "overburden"}},
	{"GAS", "Influx or ignition of noxious or inflammable gas", []string{"gas", "firedamp", "methane", "asphyxiation"}},
	{"INUNDATION", "Inundation of workings by water", []string{"inundation", "flood", "water inrush"}},
	{"EXPLOSIVES", "Accidents from explosives and blasting", []string{"explosive", "blast", "misfire", "shot firing"}},
	{"MACHINERY", "Accidents involving mining machinery", []string{"machinery", "dumper", "tipper", "loader", "conveyor", "drill", "excavator", "haul"}},
	{"WINDING", "Winding and rope haulage accidents", []string{"winding", "cage", "rope haulage"}},
	{"ELECTRICITY", "Electrical accidents", []string{"electric", "electrocution"}},
	{"FALL_OF_PERSON", "Fall of persons into or within workings", []string{"fall of person", "fell into", "fell down", "fall from height"}},
}

// ClassifyCause maps a brief-cause text to its cause code, or "OTHER" when no
// category matches. Empty input is "unknown".
func ClassifyCause(briefCause string) string {
	c := strings.ToLower(strings.TrimSpace(briefCause))
	if c == "" {
		return "unknown"
	}
	for _, cc := range causeCodes {
		for _, kw := range cc.Keywords {
			if strings.Contains(c, kw) {
				return cc.Code
			}
		}
	}
	return "OTHER"
}

// LookupCauseCodes returns labeled descriptions for every cause category the
// query mentions, by code or by keyword. Used as a retrieval side channel for
// conversational answers.
func LookupCauseCodes(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, cc := range causeCodes {
		matched := strings.Contains(q, strings.ToLower(cc.Code)) ||
			strings.Contains(q, strings.ReplaceAll(strings.ToLower(cc.Code), "_", " "))
		if !matched {
			for _, kw := range cc.Keywords {
				if strings.Contains(q, kw) {
					matched = true
					break
				}
			}
		}
		if matched {
			out = append(out, "Cause code "+cc.Code+": "+cc.Description)
		}
	}
	return out
}
