package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuditReport is the assembled content of one periodic audit run.
type AuditReport struct {
	GeneratedAt     time.Time
	WindowFrom      string
	WindowTo        string
	Summary         Summary
	Narrative       string
	Alerts          []string
	Recommendations []string
}

// Markdown renders the report document.
func (r AuditReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Mine Safety Audit Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Window: %s to %s\n\n", r.WindowFrom, r.WindowTo)

	fmt.Fprintf(&b, "## Statistics\n\n")
	fmt.Fprintf(&b, "- Incidents: %d\n", r.Summary.Total)
	fmt.Fprintf(&b, "- Verified: %d\n", r.Summary.Verified)
	fmt.Fprintf(&b, "- Unverified: %d\n", r.Summary.Unverified)
	fmt.Fprintf(&b, "- Fatalities recorded: %d\n", r.Summary.Fatalities)
	fmt.Fprintf(&b, "- Injuries recorded: %d\n\n", r.Summary.Injuries)

	fmt.Fprintf(&b, "## Pattern Analysis\n\n%s\n", r.Narrative)

	if len(r.Alerts) > 0 {
		fmt.Fprintf(&b, "\n## Safety Alerts\n\n")
		for _, a := range r.Alerts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	return b.String()
}

// Filename returns the dated report filename.
func (r AuditReport) Filename() string {
	return "safety_audit_report_" + r.GeneratedAt.UTC().Format("20060102") + ".md"
}

// Save writes the report under dataDir, creating the directory if needed,
// and returns the full path.
func (r AuditReport) Save(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("save audit report: %w", err)
	}
	path := filepath.Join(dataDir, r.Filename())
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return "", fmt.Errorf("save audit report: %w", err)
	}
	return path, nil
}
