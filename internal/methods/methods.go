// Package methods finds self.<name>() calls that have no matching def in the
// enclosing class body. Base classes and mixins are not resolved.
package methods

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

const receiver = "self"

type Detector struct {
	pattern          string
	respectGitignore bool
}

func New(cfg config.Config) *Detector {
	return &Detector{pattern: cfg.SourcePattern, respectGitignore: cfg.RespectGitignore}
}

func (d *Detector) Name() string { return finding.MissingMethod }

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
			// reported once by the missing-import detector
			continue
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logging.Logger.Warnw("skipping file", "path", path, "error", err)
			continue
		}
		pyparse.Walk(f.Root, func(n *sitter.Node) bool {
			if n.Type() == "class_definition" {
				findings = append(findings, checkClass(f, n)...)
			}
			return true
		})
	}
	return findings, nil
}

func checkClass(f *pyparse.File, class *sitter.Node) []finding.Finding {
	className := f.Text(class.ChildByFieldName("name"))
	defined := definedMethods(f, class.ChildByFieldName("body"))

	called := map[string]bool{}
	pyparse.Walk(class, func(n *sitter.Node) bool {
		if name, ok := selfCall(f, n); ok {
			called[name] = true
		}
		return true
	})

	var missing []string
	for name := range called {
		if !defined[name] {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)

	findings := make([]finding.Finding, 0, len(missing))
	for _, m := range missing {
		findings = append(findings, finding.Finding{
			Priority:    finding.P0,
			Category:    finding.MissingMethod,
			File:        f.Path,
			Description: fmt.Sprintf("Class '%s' calls self.%s() but method is not defined.", className, m),
			Remediation: fmt.Sprintf("Implement '%s' method in class '%s'.", m, className),
		})
	}
	return findings
}

// definedMethods collects def and async def names declared directly in a
// class body, decorated ones included.
func definedMethods(f *pyparse.File, body *sitter.Node) map[string]bool {
	defined := map[string]bool{}
	if body == nil {
		return defined
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() == "decorated_definition" {
			stmt = stmt.ChildByFieldName("definition")
		}
		if stmt != nil && stmt.Type() == "function_definition" {
			defined[f.Text(stmt.ChildByFieldName("name"))] = true
		}
	}
	return defined
}

// selfCall reports the method name of a call of the form self.<name>(...).
func selfCall(f *pyparse.File, n *sitter.Node) (string, bool) {
	if n.Type() != "call" {
		return "", false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return "", false
	}
	obj := fn.ChildByFieldName("object")
	if obj == nil || obj.Type() != "identifier" || f.Text(obj) != receiver {
		return "", false
	}
	return f.Text(fn.ChildByFieldName("attribute")), true
}
