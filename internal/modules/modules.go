// Package modules finds "from X import Y" statements whose top-level module is
// neither part of the project nor on the known-module allow-list.
package modules

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/pyparse"
	"github.com/salchaD-27/pipeline-check/internal/walker"
)

type Detector struct {
	pattern          string
	known            map[string]bool
	respectGitignore bool
}

// New copies the allow-list out of cfg; later changes to cfg do not affect the detector.
func New(cfg config.Config) *Detector {
	return &Detector{
		pattern:          cfg.SourcePattern,
		known:            cfg.KnownModuleSet(),
		respectGitignore: cfg.RespectGitignore,
	}
}

func (d *Detector) Name() string { return finding.MissingModule }

func (d *Detector) Scan(ctx context.Context, root string) ([]finding.Finding, error) {
	opts, err := walker.Options(root, d.respectGitignore)
	if err != nil {
		return nil, err
	}
	files, err := walker.Files(root, d.pattern, opts...)
	if err != nil {
		return nil, err
	}

	project := map[string]bool{}
	for path := range files {
		if name := topLevel(root, path); name != "" {
			project[name] = true
		}
	}

	var findings []finding.Finding
	for path := range files {
		f, err := pyparse.ParseFile(ctx, path)
		var perr *pyparse.ParseError
		switch {
		case errors.As(err, &perr):
			continue
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logging.Logger.Warnw("skipping file", "path", path, "error", err)
			continue
		}
		pyparse.Walk(f.Root, func(n *sitter.Node) bool {
			switch n.Type() {
			case "import_from_statement", "future_import_statement":
				if fd, ok := d.check(f, n, project); ok {
					findings = append(findings, fd)
				}
				return false
			}
			return true
		})
	}
	return findings, nil
}

func (d *Detector) check(f *pyparse.File, stmt *sitter.Node, project map[string]bool) (finding.Finding, bool) {
	module := fromModule(f, stmt)
	if module == "" {
		return finding.Finding{}, false
	}
	top, _, _ := strings.Cut(module, ".")
	if project[top] || d.known[top] {
		return finding.Finding{}, false
	}
	return finding.Finding{
		Priority:    finding.P0,
		Category:    finding.MissingModule,
		File:        f.Path,
		Line:        finding.At(pyparse.Line(stmt)),
		Description: fmt.Sprintf("Import from '%s': module not found in project or known packages.", module),
		Remediation: fmt.Sprintf("Create '%s' module or add to requirements.txt, or skip the test.", top),
	}, true
}

// fromModule returns the dotted module of a from-import without leading dots.
// "from . import x" has no module and yields "".
func fromModule(f *pyparse.File, stmt *sitter.Node) string {
	if stmt.Type() == "future_import_statement" {
		return "__future__"
	}
	mod := stmt.ChildByFieldName("module_name")
	if mod == nil {
		return ""
	}
	if mod.Type() == "relative_import" {
		mod = firstNamed(mod, "dotted_name")
		if mod == nil {
			return ""
		}
	}
	return dotted(f, mod)
}

func firstNamed(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// dotted joins the identifiers of a dotted_name, dropping any whitespace or
// comments the source places between them.
func dotted(f *pyparse.File, n *sitter.Node) string {
	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			parts = append(parts, f.Text(c))
		}
	}
	if len(parts) == 0 {
		return f.Text(n)
	}
	return strings.Join(parts, ".")
}

// topLevel is the importable top-level name a file contributes: its first
// directory below root, or its stem when it sits directly in root.
func topLevel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	name, _, _ := strings.Cut(first, ".")
	return name
}
