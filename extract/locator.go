package extract

import (
	"context"
	"strings"

	"github.com/minewatch/minewatch/core"
)

// knownMineAreas maps well-known mining areas to their district and state.
// Matching is by case-insensitive substring of the mine name, so "Putki
// Colliery" resolves through the "putki" entry.
var knownMineAreas = []struct {
	area     string
	district string
	state    string
}{
	{"putki", "Dhanbad", "Jharkhand"},
	{"jharia", "Dhanbad", "Jharkhand"},
	{"bokaro", "Bokaro", "Jharkhand"},
	{"raniganj", "Paschim Bardhaman", "West Bengal"},
	{"asansol", "Paschim Bardhaman", "West Bengal"},
	{"korba", "Korba", "Chhattisgarh"},
	{"singrauli", "Singrauli", "Madhya Pradesh"},
	{"talcher", "Angul", "Odisha"},
	{"ib valley", "Jharsuguda", "Odisha"},
	{"neyveli", "Cuddalore", "Tamil Nadu"},
	{"singareni", "Khammam", "Telangana"},
	{"godavarikhani", "Peddapalli", "Telangana"},
	{"kolar", "Kolar", "Karnataka"},
	{"bailadila", "Dantewada", "Chhattisgarh"},
}

// StaticLocator resolves missing district/state for a mine name from the
// known-area table. It never errors; unknown mines return ok=false.
type StaticLocator struct{}

var _ core.Locator = StaticLocator{}

// Locate implements core.Locator.
func (StaticLocator) Locate(_ context.Context, mineName string) (district, state string, ok bool) {
	name := strings.ToLower(mineName)
	if strings.TrimSpace(name) == "" {
		return "", "", false
	}
	for _, m := range knownMineAreas {
		if strings.Contains(name, m.area) {
			return m.district, m.state, true
		}
	}
	return "", "", false
}
