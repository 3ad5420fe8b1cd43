package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/salchaD-27/pipeline-check/internal/finding"
)

var ErrUnknownFormat = errors.New("unknown report format")

// Formats accepted by Export.
var Formats = []string{"text", "json", "markdown", "gha", "sarif"}

// Report is the aggregated result of one scan. Findings are ordered by
// priority, and findings of equal priority keep the order they were collected in.
type Report struct {
	ProjectDir    string                   `json:"project_dir"`
	TotalFindings int                      `json:"total_findings"`
	ByPriority    map[finding.Priority]int `json:"by_priority"`
	Findings      []finding.Finding        `json:"findings"`
}

// New sorts a copy of findings and computes the per-priority counts. Every
// finding must pass Validate, so the counts always add up to the total.
func New(projectDir string, findings []finding.Finding) (*Report, error) {
	for i, f := range findings {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("finding %d (%s): %w", i, f.File, err)
		}
	}

	sorted := make([]finding.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
	})

	counts := make(map[finding.Priority]int, len(finding.Priorities))
	for _, p := range finding.Priorities {
		counts[p] = 0
	}
	for _, f := range sorted {
		counts[f.Priority]++
	}
	return &Report{
		ProjectDir:    projectDir,
		TotalFindings: len(sorted),
		ByPriority:    counts,
		Findings:      sorted,
	}, nil
}

// Exceeds reports whether any finding is at least as severe as threshold.
func (r *Report) Exceeds(threshold finding.Priority) bool {
	for _, f := range r.Findings {
		if f.Priority.Rank() <= threshold.Rank() {
			return true
		}
	}
	return false
}

// Export renders the report in one of Formats.
func Export(r *Report, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return ExportText(r), nil
	case "json":
		return ExportJSON(r)
	case "markdown", "md":
		return ExportMarkdown(r), nil
	case "gha":
		return ExportGitHubActions(r), nil
	case "sarif":
		return ExportSARIF(r)
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
}

// ExportJSON returns the JSON formatted report string.
func ExportJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ExportText(r *Report) string {
	var b strings.Builder
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n", f.Priority, f.Location(), f.Category, f.Description)
	}
	fmt.Fprintf(&b, "%d finding(s): %s\n", r.TotalFindings, summary(r))
	return b.String()
}

// ExportMarkdown returns a Markdown formatted report string.
func ExportMarkdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Pipeline Check Report\n\n")
	fmt.Fprintf(&b, "Project: `%s`\n\n", r.ProjectDir)

	if len(r.Findings) == 0 {
		b.WriteString("✅ No issues found.\n")
		return b.String()
	}

	b.WriteString("| Priority | Count |\n|---|---|\n")
	for _, p := range finding.Priorities {
		fmt.Fprintf(&b, "| %s | %d |\n", p, r.ByPriority[p])
	}
	b.WriteString("\n")

	for _, f := range r.Findings {
		fmt.Fprintf(&b, "- **[%s]** `%s` %s: %s\n", f.Priority, f.Location(), f.Category, f.Description)
		fmt.Fprintf(&b, "  - Fix: %s\n", f.Remediation)
	}
	return b.String()
}

// ExportGitHubActions returns a GitHub Actions annotation formatted string.
func ExportGitHubActions(r *Report) string {
	var b strings.Builder
	for _, f := range r.Findings {
		level := ""
		switch f.Priority {
		case finding.P0:
			level = "error"
		case finding.P1:
			level = "warning"
		default:
			level = "notice"
		}
		props := "file=" + escapeProperty(f.File)
		if f.Line != nil {
			props += fmt.Sprintf(",line=%d", *f.Line)
		}
		props += ",title=" + escapeProperty(f.Category)
		msg := f.Description + " " + f.Remediation
		fmt.Fprintf(&b, "::%s %s::%s\n", level, props, escapeData(msg))
	}
	return b.String()
}

func summary(r *Report) string {
	parts := make([]string, 0, len(finding.Priorities))
	for _, p := range finding.Priorities {
		parts = append(parts, fmt.Sprintf("%s=%d", p, r.ByPriority[p]))
	}
	return strings.Join(parts, " ")
}

// GitHub Actions workflow commands:
// ::error file=app.py,line=1,title=missing_import::Type hint 'List' used but not imported.
// Message data escapes %, CR and LF; property values also escape ':' and ','.
func escapeData(msg string) string {
	replacements := []struct{ old, new string }{
		{"%", "%25"},
		{"\r", "%0D"},
		{"\n", "%0A"},
	}
	for _, r := range replacements {
		msg = strings.ReplaceAll(msg, r.old, r.new)
	}
	return msg
}

func escapeProperty(v string) string {
	v = escapeData(v)
	v = strings.ReplaceAll(v, ":", "%3A")
	return strings.ReplaceAll(v, ",", "%2C")
}
