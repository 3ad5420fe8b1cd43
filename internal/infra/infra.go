// Package infra checks a project for pipeline scaffolding and package markers.
// It reads only the filesystem layout, never file contents.
package infra

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/walker"
)

type Detector struct {
	scaffolding      []config.Scaffold
	pattern          string
	marker           string
	respectGitignore bool
}

func New(cfg config.Config) *Detector {
	return &Detector{
		scaffolding:      append([]config.Scaffold(nil), cfg.Scaffolding...),
		pattern:          cfg.SourcePattern,
		marker:           cfg.PackageMarker,
		respectGitignore: cfg.RespectGitignore,
	}
}

func (d *Detector) Name() string { return finding.MissingInfrastructure }

func (d *Detector) Scan(ctx context.Context, root string) ([]finding.Finding, error) {
	findings := d.checkScaffolding(root)

	markers, err := d.checkMarkers(ctx, root)
	if err != nil {
		return nil, err
	}
	return append(findings, markers...), nil
}

func (d *Detector) checkScaffolding(root string) []finding.Finding {
	var findings []finding.Finding
	for _, s := range d.scaffolding {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(s.Path)))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Logger.Debugw("treating unreadable scaffold path as missing", "path", s.Path, "error", err)
		}
		findings = append(findings, finding.Finding{
			Priority:    s.Priority,
			Category:    finding.MissingInfrastructure,
			File:        s.Path,
			Description: s.Description,
			Remediation: s.Remediation,
		})
	}
	return findings
}

// checkMarkers reports directories below root that hold source files but no
// package marker. Hidden directories and their descendants are exempt.
func (d *Detector) checkMarkers(ctx context.Context, root string) ([]finding.Finding, error) {
	g, err := glob.Compile(d.pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", d.pattern, err)
	}
	opts, err := walker.Options(root, d.respectGitignore)
	if err != nil {
		return nil, err
	}

	var findings []finding.Finding
	for dir := range walker.Dirs(root, opts...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || hidden(rel) {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.Logger.Debugw("skipping unreadable directory", "path", dir, "error", err)
			continue
		}
		hasSource, hasMarker := false, false
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch name := e.Name(); {
			case name == d.marker:
				hasMarker = true
			case g.Match(name):
				hasSource = true
			}
		}
		if !hasSource || hasMarker {
			continue
		}
		rel = filepath.ToSlash(rel)
		findings = append(findings, finding.Finding{
			Priority:    finding.P1,
			Category:    finding.MissingInit,
			File:        rel + "/" + d.marker,
			Description: fmt.Sprintf("Directory '%s' has Python files but no %s.", rel, d.marker),
			Remediation: fmt.Sprintf("Create an empty %s in '%s/' for package resolution.", d.marker, rel),
		})
	}
	return findings, nil
}

// hidden reports whether any component of rel starts with a dot, so a file
// anywhere under a dot directory (pkg/.cache/x.py) is treated as hidden.
func hidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
