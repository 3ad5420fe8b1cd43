// Package pyparse turns Python source files into tree-sitter syntax trees.
//
// A file that does not parse cleanly is reported as a *ParseError instead of a
// partial tree, so detectors never analyse error-recovered input.
package pyparse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"golang.org/x/text/encoding/unicode"

	"github.com/salchaD-27/pipeline-check/internal/finding"
)

type Kind int

const (
	SyntaxError Kind = iota + 1
	DecodeError
)

func (k Kind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case DecodeError:
		return "decode error"
	}
	return "unknown"
}

// ParseError is returned when a file cannot be turned into a syntax tree.
// Line is the first offending line for syntax errors and 0 otherwise.
type ParseError struct {
	Kind Kind
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Err != nil {
		return fmt.Sprintf("%s: %s at line %d: %v", e.Path, e.Kind, e.Line, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s at line %d", e.Path, e.Kind, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errInvalidUTF8 = errors.New("invalid UTF-8")

// File is a parsed source file.
type File struct {
	Path   string
	Source []byte
	Root   *sitter.Node

	tree *sitter.Tree
}

// ParseFile reads and parses path. Read failures are returned as plain errors;
// undecodable or unparsable content is returned as *ParseError.
func ParseFile(ctx context.Context, path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(ctx, path, src)
}

func Parse(ctx context.Context, path string, src []byte) (*File, error) {
	if !utf8.Valid(src) {
		return nil, &ParseError{Kind: DecodeError, Path: path, Err: errInvalidUTF8}
	}
	src, err := unicode.UTF8BOM.NewDecoder().Bytes(src)
	if err != nil {
		return nil, &ParseError{Kind: DecodeError, Path: path, Err: err}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		// Cancellation surfaces here; it is not a property of the file.
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Kind: SyntaxError, Path: path, Line: firstErrorLine(root)}
	}
	if bad, reason := invalidNode(root, src); bad != nil {
		return nil, &ParseError{Kind: SyntaxError, Path: path, Line: Line(bad), Err: errors.New(reason)}
	}
	return &File{Path: path, Source: src, Root: root, tree: tree}, nil
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return Line(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			if line := firstErrorLine(c); line > 0 {
				return line
			}
		}
	}
	return 0
}

// SyntaxErrorFinding is the single finding reported for a file that failed to parse.
func SyntaxErrorFinding(err *ParseError) finding.Finding {
	name := filepath.Base(err.Path)
	desc := fmt.Sprintf("Syntax error in %s: file cannot be parsed.", name)
	if err.Kind == DecodeError {
		desc = fmt.Sprintf("Cannot decode %s as UTF-8: file cannot be parsed.", name)
	}
	return finding.Finding{
		Priority:    finding.P0,
		Category:    finding.SyntaxError,
		File:        err.Path,
		Description: desc,
		Remediation: "Fix syntax errors before any pipeline run.",
	}
}

// Text returns the source text spanned by n.
func (f *File) Text(n *sitter.Node) string {
	return n.Content(f.Source)
}

// Line returns the 1-based line n starts on.
func Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// Walk visits n and its named descendants in source order. Returning false
// from fn skips the children of the node just visited.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		Walk(n.NamedChild(i), fn)
	}
}

// Children returns the direct children of n stored under the given field name,
// e.g. every "name" of an import statement.
func Children(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			out = append(out, n.Child(i))
		}
	}
	return out
}
