package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveReportID(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		title string
		want  string
	}{
		{"safety alert header", "Safety Alert: 12/2024\nSubject: roof fall", "", "SA-12-2024"},
		{"abbreviated header", "S Alert 7-2023", "", "SA-7-2023"},
		{"id in title", "", "Fatal Accident Report 45/2022", "SA-45-2022"},
		{"fallback bare pattern", "circular no. 3 / 2021 issued", "", "SA-3-2021"},
		{"digits split by pdf artifact", "Safety Alert: 1 2/2024", "", "SA-12-2024"},
		{"no id", "no identifier here", "untitled", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveReportID(tt.text, tt.title))
		})
	}
}

const sampleAlert = `%PDF-1.4 ignored header line
Safety Alert: 12/2024
Subject: Fatal accident due to roof fall in underground mine
Name of Mine: Putki Colliery
Owner: Example Coal Ltd
District: Dhanbad
State: Jharkhand
Mineral: Coal
Date and time of accident: 10.01.2024
Place of accident: Development face, Seam IV
Brief cause: Roof fall at the development face while supports were being erected.
Recommendations:
- All persons shall be withdrawn before roof bolting operations commence.
- The mine management should ensure systematic support plans are followed.
`

func TestParseAlert(t *testing.T) {
	f := ParseAlert(sampleAlert)
	assert.Equal(t, "Fatal accident due to roof fall in underground mine", f.Subject)
	assert.Contains(t, f.BriefCause, "Roof fall at the development face")
	assert.Equal(t, "Development face, Seam IV", f.Place)
	assert.Equal(t, "10.01.2024", f.DateTime)
	assert.Equal(t, "Dhanbad", f.District)
	assert.Equal(t, "Jharkhand", f.State)
	assert.Equal(t, 4, f.Score)
	require.Len(t, f.Recommendations, 2)
	assert.Contains(t, f.Recommendations[0], "shall be withdrawn")
}

func TestParseMineFields(t *testing.T) {
	m := ParseMineFields(sampleAlert)
	assert.Equal(t, "Putki Colliery", m.Name)
	assert.Equal(t, "Example Coal Ltd", m.Owner)
	assert.Equal(t, "Dhanbad", m.District)
	assert.Equal(t, "Jharkhand", m.State)
	assert.Equal(t, "Coal", m.Mineral)
}

func TestParseDateISO(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2024-01-10", "2024-01-10"},
		{"10.01.2024", "2024-01-10"},
		{"10/01/2024", "2024-01-10"},
		{"10-01-2024", "2024-01-10"},
		{"2 January 2024", "2024-01-02"},
		{"on 5.3.2023 at 14:00", "2023-03-05"},
		{"", ""},
		{"not a date", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDateISO(tt.in), "input %q", tt.in)
	}
}

func TestStripJSONFences(t *testing.T) {
	tests := []struct{ name, in, want string }{
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", "Here you go: {\"a\":1} hope that helps", `{"a":1}`},
		{"array", "alerts: [\"x\",\"y\"] done", `["x","y"]`},
		{"bare", `{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripJSONFences(tt.in))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	in := "%PDF-1.7\nSA 1 2/2024\nline\x00with nul"
	out := NormalizeText(in)
	assert.NotContains(t, out, "%PDF")
	assert.NotContains(t, out, "\x00")
	assert.Contains(t, out, "12/2024")
}
