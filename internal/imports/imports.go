// Package imports finds typing names used in annotations without being imported.
//
// Only bare identifiers in annotation position are considered, so a qualified
// reference such as typing.List never triggers a finding. The detector also
// owns the syntax_error finding for files that fail to parse.
package imports

import (
	"context"
	"errors"
	"fmt"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/pyparse"
	"github.com/salchaD-27/pipeline-check/internal/walker"
)

type Detector struct {
	pattern          string
	watch            map[string]bool
	respectGitignore bool
}

func New(cfg config.Config) *Detector {
	watch := make(map[string]bool, len(cfg.TypingNames))
	for _, n := range cfg.TypingNames {
		watch[n] = true
	}
	return &Detector{
		pattern:          cfg.SourcePattern,
		watch:            watch,
		respectGitignore: cfg.RespectGitignore,
	}
}

func (d *Detector) Name() string { return finding.MissingImport }

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
		f, err := pyparse.ParseFile(ctx, path)
		var perr *pyparse.ParseError
		switch {
		case errors.As(err, &perr):
			logging.Logger.Debugw("unparsable file", "error", perr)
			findings = append(findings, pyparse.SyntaxErrorFinding(perr))
			continue
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logging.Logger.Warnw("skipping file", "path", path, "error", err)
			continue
		}
		findings = append(findings, d.check(f)...)
	}
	return findings, nil
}

func (d *Detector) check(f *pyparse.File) []finding.Finding {
	imported := map[string]bool{}
	used := map[string]bool{}

	pyparse.Walk(f.Root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for _, name := range pyparse.Children(n, "name") {
				imported[importBinding(f, name)] = true
			}
			return false
		case "import_from_statement", "future_import_statement":
			for _, name := range pyparse.Children(n, "name") {
				imported[fromImportBinding(f, name)] = true
			}
			return false
		case "typed_parameter", "typed_default_parameter", "assignment":
			d.annotation(f, n.ChildByFieldName("type"), used)
		case "function_definition":
			d.annotation(f, n.ChildByFieldName("return_type"), used)
		}
		return true
	})

	var missing []string
	for name := range used {
		if !imported[name] {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)

	findings := make([]finding.Finding, 0, len(missing))
	for _, name := range missing {
		findings = append(findings, finding.Finding{
			Priority:    finding.P0,
			Category:    finding.MissingImport,
			File:        f.Path,
			Description: fmt.Sprintf("Type hint '%s' used but not imported.", name),
			Remediation: fmt.Sprintf("Add 'from typing import %s' to the file.", name),
		})
	}
	return findings
}

// annotation records watched names appearing as bare identifiers in an
// annotation. Attribute and member accesses contribute only their leftmost part.
func (d *Detector) annotation(f *pyparse.File, n *sitter.Node, used map[string]bool) {
	pyparse.Walk(n, func(n *sitter.Node) bool {
		switch n.Type() {
		case "identifier":
			if name := f.Text(n); d.watch[name] {
				used[name] = true
			}
		case "attribute":
			d.annotation(f, n.ChildByFieldName("object"), used)
			return false
		case "member_type":
			if n.NamedChildCount() > 0 {
				d.annotation(f, n.NamedChild(0), used)
			}
			return false
		case "string":
			return false
		}
		return true
	})
}

// importBinding is the name bound by one clause of "import a.b.c" or "import a.b as c".
func importBinding(f *pyparse.File, n *sitter.Node) string {
	if n.Type() == "aliased_import" {
		return f.Text(n.ChildByFieldName("alias"))
	}
	if n.Type() == "dotted_name" && n.NamedChildCount() > 0 {
		return f.Text(n.NamedChild(0))
	}
	return f.Text(n)
}

// fromImportBinding is the name bound by one clause of "from m import x" or "from m import x as y".
func fromImportBinding(f *pyparse.File, n *sitter.Node) string {
	if n.Type() == "aliased_import" {
		return f.Text(n.ChildByFieldName("alias"))
	}
	return f.Text(n)
}
