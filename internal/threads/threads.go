// Package threads flags test files that use threads without any sign of a lock.
// The check is a plain substring search over the file text.
package threads

import (
	"context"
	"os"
	"strings"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/walker"
)

type Detector struct {
	pattern          string
	concurrency      []string
	locks            []string
	respectGitignore bool
}

func New(cfg config.Config) *Detector {
	return &Detector{
		pattern:          cfg.TestPattern,
		concurrency:      append([]string(nil), cfg.ConcurrencyMarkers...),
		locks:            append([]string(nil), cfg.LockMarkers...),
		respectGitignore: cfg.RespectGitignore,
	}
}

func (d *Detector) Name() string { return finding.ThreadSafety }

func (d *Detector) Scan(ctx context.Context, root string) ([]finding.Finding, error) {
	opts, err := walker.Options(root, d.respectGitignore)
	if err != nil {
		return nil, err
	}
	files, err := walker.Files(root, d.pattern, opts...)
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
		src := string(data)
		if !containsAny(src, d.concurrency) || containsAny(src, d.locks) {
			continue
		}
		findings = append(findings, finding.Finding{
			Priority:    finding.P1,
			Category:    finding.ThreadSafety,
			File:        path,
			Description: "Concurrent test uses threads but no Lock is present for shared state.",
			Remediation: "Add threading.Lock to protect shared mutable state in concurrent tests.",
		})
	}
	return findings, nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
