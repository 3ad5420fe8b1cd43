package report

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/salchaD-27/pipeline-check/internal/finding"
)

const (
	ToolName    = "pipeline-check"
	ToolVersion = "0.1.0"

	sarifVersion = "2.1.0"
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID string `json:"id"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"` // error, warning, note
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// ExportSARIF renders the report as a SARIF 2.1.0 log with one rule per category.
func ExportSARIF(r *Report) (string, error) {
	results := make([]sarifResult, 0, len(r.Findings))
	ruleSet := map[string]bool{}
	for _, f := range r.Findings {
		ruleSet[f.Category] = true
		loc := sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: toURI(r.ProjectDir, f.File)}}
		if f.Line != nil {
			loc.Region = &sarifRegion{StartLine: *f.Line}
		}
		results = append(results, sarifResult{
			RuleID:    f.Category,
			Level:     sarifLevel(f.Priority),
			Message:   sarifMessage{Text: strings.TrimSpace(f.Description + " " + f.Remediation)},
			Locations: []sarifLocation{{PhysicalLocation: loc}},
		})
	}

	ids := make([]string, 0, len(ruleSet))
	for id := range ruleSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rules := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		rules = append(rules, sarifRule{ID: id})
	}

	log := sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: ToolName, Version: ToolVersion, Rules: rules}},
			Results: results,
		}},
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sarifLevel(p finding.Priority) string {
	switch p {
	case finding.P0:
		return "error"
	case finding.P1:
		return "warning"
	default:
		return "note"
	}
}

// toURI makes file paths relative to the project so code scanning can map them.
func toURI(projectDir, p string) string {
	if rel, err := filepath.Rel(projectDir, p); err == nil && !strings.HasPrefix(rel, "..") {
		p = rel
	}
	p = filepath.ToSlash(strings.TrimSpace(p))
	if p == "" || p == "." {
		return "UNKNOWN"
	}
	return strings.TrimPrefix(p, "./")
}
