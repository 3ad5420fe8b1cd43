// Package walker enumerates source files under a project root.
//
// Traversal is lexical, so every sequence is sorted by path and repeatable.
// Symlinked directories are never followed, which keeps a directory from
// being visited twice. Directories that cannot be read are skipped.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/salchaD-27/pipeline-check/internal/logging"
)

type options struct {
	ignore *ignore.GitIgnore
}

type Option func(*options)

// WithIgnore skips every path the matcher selects. Paths are matched relative to the root.
func WithIgnore(m *ignore.GitIgnore) Option {
	return func(o *options) { o.ignore = m }
}

// LoadGitignore compiles root/.gitignore. A missing file yields a nil matcher.
func LoadGitignore(root string) (*ignore.GitIgnore, error) {
	p := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	m, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", p, err)
	}
	return m, nil
}

// Files yields regular files under root whose base name matches pattern,
// e.g. "*.py" or "test_*.py".
func Files(root, pattern string, opts ...Option) (iter.Seq[string], error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	o := collect(opts)
	return func(yield func(string) bool) {
		walk(root, o, func(path string, d fs.DirEntry) bool {
			if !d.Type().IsRegular() || !g.Match(d.Name()) {
				return true
			}
			return yield(path)
		})
	}, nil
}

// Dirs yields every directory under root, root included.
func Dirs(root string, opts ...Option) iter.Seq[string] {
	o := collect(opts)
	return func(yield func(string) bool) {
		walk(root, o, func(path string, d fs.DirEntry) bool {
			if !d.IsDir() {
				return true
			}
			return yield(path)
		})
	}
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func walk(root string, o options, visit func(string, fs.DirEntry) bool) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Logger.Debugw("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if o.ignore != nil && path != root && ignored(o.ignore, root, path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !visit(path, d) {
			return filepath.SkipAll
		}
		return nil
	})
}

func ignored(m *ignore.GitIgnore, root, path string, dir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if m.MatchesPath(rel) {
		return true
	}
	return dir && m.MatchesPath(rel+"/")
}

// Options returns the walker options for a scan of root: a .gitignore matcher
// when respectGitignore is set and the file exists.
func Options(root string, respectGitignore bool) ([]Option, error) {
	if !respectGitignore {
		return nil, nil
	}
	m, err := LoadGitignore(root)
	if err != nil || m == nil {
		return nil, err
	}
	return []Option{WithIgnore(m)}, nil
}
