// Package workflows checks GitHub Actions workflow files for mistakes that stop
// a pipeline before any test runs.
package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/walker"
)

// Dir is where GitHub looks for workflow definitions, relative to the project root.
const Dir = ".github/workflows"

const pattern = "*.{yml,yaml}"

type Workflow struct {
	On   any            `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

type Job struct {
	RunsOn any              `yaml:"runs-on"`
	Uses   string           `yaml:"uses"` // reusable workflow call
	Steps  []map[string]any `yaml:"steps"`
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

type Detector struct{}

func New() *Detector { return &Detector{} }

func (d *Detector) Name() string { return finding.InvalidWorkflow }

// Scan parses every workflow file under Dir. A project without workflows
// yields nothing here; the infrastructure detector reports that case.
func (d *Detector) Scan(ctx context.Context, root string) ([]finding.Finding, error) {
	files, err := walker.Files(filepath.Join(root, filepath.FromSlash(Dir)), pattern)
	if err != nil {
		return nil, err
	}

	var findings []finding.Finding
	for path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Logger.Warnw("skipping file", "path", path, "error", err)
			continue
		}
		findings = append(findings, check(path, data)...)
	}
	return findings, nil
}

func check(path string, data []byte) []finding.Finding {
	name := filepath.Base(path)

	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		f := finding.Finding{
			Priority:    finding.P0,
			Category:    finding.InvalidWorkflow,
			File:        path,
			Description: fmt.Sprintf("Workflow '%s' cannot be parsed: %v", name, err),
			Remediation: "Fix the workflow YAML so GitHub Actions can load it.",
		}
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				f.Line = finding.At(n)
			}
		}
		return []finding.Finding{f}
	}

	var findings []finding.Finding
	add := func(p finding.Priority, desc, fix string) {
		findings = append(findings, finding.Finding{
			Priority:    p,
			Category:    finding.InvalidWorkflow,
			File:        path,
			Description: desc,
			Remediation: fix,
		})
	}

	if wf.On == nil {
		add(finding.P1,
			fmt.Sprintf("Workflow '%s' has no 'on' trigger.", name),
			"Add an 'on:' section, for example 'on: [push, pull_request]'.")
	}
	if len(wf.Jobs) == 0 {
		add(finding.P1,
			fmt.Sprintf("Workflow '%s' defines no jobs.", name),
			"Add a 'jobs:' section with at least one job.")
	}

	ids := make([]string, 0, len(wf.Jobs))
	for id := range wf.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		job := wf.Jobs[id]
		if job.Uses != "" {
			continue
		}
		if job.RunsOn == nil {
			add(finding.P1,
				fmt.Sprintf("Job '%s' in workflow '%s' has no 'runs-on'.", id, name),
				fmt.Sprintf("Add 'runs-on: ubuntu-latest' (or another runner) to job '%s'.", id))
		}
		if len(job.Steps) == 0 {
			add(finding.P2,
				fmt.Sprintf("Job '%s' in workflow '%s' has no steps.", id, name),
				fmt.Sprintf("Add steps to job '%s' or remove it.", id))
		}
		for i, step := range job.Steps {
			_, uses := step["uses"]
			_, run := step["run"]
			if uses == run {
				add(finding.P1,
					fmt.Sprintf("Step %d of job '%s' in workflow '%s' must set exactly one of 'uses' or 'run'.", i+1, id, name),
					"Give the step either a 'uses:' action reference or a 'run:' command.")
			}
		}
	}
	return findings
}
