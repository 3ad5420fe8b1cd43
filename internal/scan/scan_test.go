package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/report"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func run(t *testing.T, root string, opts ...Option) *report.Report {
	t.Helper()
	r, err := Run(context.Background(), root, DefaultDetectors(config.Default()), opts...)
	require.NoError(t, err)
	return r
}

func byCategory(r *report.Report, category string) []finding.Finding {
	var out []finding.Finding
	for _, f := range r.Findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func fixture(t *testing.T) string {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app.py":             "def f(x: List[int]) -> Optional[str]:\n    return None\n",
		"broken.py":          "def g(:\n    y: Dict = {}\n",
		"indent.py":          "def f(x: List):\nreturn x\n",
		"py2.py":             "class A:\n    def run(self):\n        print \"hi\"\n        self.go()\n",
		"service/worker.py":  "from nowhere.pkg import thing\n\nclass W:\n    def run(self):\n        self.step()\n",
		"tests/test_pool.py": "from concurrent.futures import ThreadPoolExecutor\n",
		"tests/__init__.py":  "",
	})
	return root
}

func TestCountsSumToTotal(t *testing.T) {
	r := run(t, fixture(t))
	sum := 0
	for _, n := range r.ByPriority {
		sum += n
	}
	assert.Equal(t, r.TotalFindings, sum)
	assert.Len(t, r.Findings, r.TotalFindings)
	assert.Len(t, r.ByPriority, 4)
}

func TestPriorityOrdering(t *testing.T) {
	r := run(t, fixture(t))
	require.NotEmpty(t, r.Findings)
	for i := 1; i < len(r.Findings); i++ {
		assert.LessOrEqual(t, r.Findings[i-1].Priority.Rank(), r.Findings[i].Priority.Rank(), "finding %d out of order", i)
	}
}

func TestSyntaxErrorIsolation(t *testing.T) {
	root := fixture(t)
	r := run(t, root)

	for _, name := range []string{"broken.py", "indent.py", "py2.py"} {
		var syntax, other int
		for _, f := range r.Findings {
			if f.File != filepath.Join(root, name) {
				continue
			}
			if f.Category == finding.SyntaxError {
				syntax++
				assert.Equal(t, finding.P0, f.Priority)
			} else {
				other++
			}
		}
		assert.Equal(t, 1, syntax, name)
		assert.Zero(t, other, name)
	}

	// the rest of the tree is still scanned
	imports := byCategory(r, finding.MissingImport)
	require.Len(t, imports, 2)
	assert.Equal(t, filepath.Join(root, "app.py"), imports[0].File)
	assert.Len(t, byCategory(r, finding.MissingMethod), 1)
	assert.Len(t, byCategory(r, finding.MissingModule), 1)
	assert.Len(t, byCategory(r, finding.ThreadSafety), 1)
}

func TestMissingMethod(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.py": "class A:\n    def foo(self):\n        self.bar()\n",
	})
	got := byCategory(run(t, root), finding.MissingMethod)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Description, "self.bar()")

	writeFiles(t, root, map[string]string{
		"a.py": "class A:\n    def foo(self):\n        self.bar()\n\n    def bar(self):\n        pass\n",
	})
	assert.Empty(t, byCategory(run(t, root), finding.MissingMethod))
}

func TestEmptyRootInfrastructure(t *testing.T) {
	got := byCategory(run(t, t.TempDir()), finding.MissingInfrastructure)
	require.Len(t, got, 4)
	var priorities []finding.Priority
	for _, f := range got {
		priorities = append(priorities, f.Priority)
	}
	assert.Equal(t, []finding.Priority{finding.P1, finding.P1, finding.P2, finding.P2}, priorities)
}

func TestMissingInitIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pkg/mod.py": "x = 1\n"})

	first := run(t, root)
	got := byCategory(first, finding.MissingInit)
	require.Len(t, got, 1)
	assert.Equal(t, "pkg/__init__.py", got[0].File)
	assert.Contains(t, got[0].Description, "'pkg'")

	a, err := report.ExportJSON(first)
	require.NoError(t, err)
	b, err := report.ExportJSON(run(t, root))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	writeFiles(t, root, map[string]string{"pkg/__init__.py": ""})
	assert.Empty(t, byCategory(run(t, root), finding.MissingInit))
}

func TestParallelMatchesSequential(t *testing.T) {
	root := fixture(t)
	a, err := report.ExportJSON(run(t, root))
	require.NoError(t, err)
	b, err := report.ExportJSON(run(t, root, WithSequential()))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestInvalidRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))

	for _, p := range []string{filepath.Join(root, "missing"), file} {
		r, err := Run(context.Background(), p, DefaultDetectors(config.Default()))
		assert.Nil(t, r)
		assert.True(t, errors.Is(err, ErrInvalidRoot), p)
	}
}

type stub struct {
	name     string
	findings []finding.Finding
	err      error
}

func (s stub) Name() string { return s.name }

func (s stub) Scan(context.Context, string) ([]finding.Finding, error) {
	return s.findings, s.err
}

func TestDetectorOrderIsStable(t *testing.T) {
	mk := func(file string) finding.Finding {
		return finding.Finding{Priority: finding.P1, Category: "c", File: file, Description: "d", Remediation: "r"}
	}
	detectors := []Detector{
		stub{name: "one", findings: []finding.Finding{mk("a")}},
		stub{name: "two", findings: []finding.Finding{mk("b"), mk("c")}},
		stub{name: "three", findings: []finding.Finding{mk("d")}},
	}
	r, err := Run(context.Background(), t.TempDir(), detectors)
	require.NoError(t, err)

	var files []string
	for _, f := range r.Findings {
		files = append(files, f.File)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, files)
}

func TestDetectorErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), t.TempDir(), []Detector{stub{name: "bad", err: boom}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "detector bad")

	invalid := stub{name: "sloppy", findings: []finding.Finding{{Priority: finding.P0, Category: "c", File: "f"}}}
	_, err = Run(context.Background(), t.TempDir(), []Detector{invalid}, WithSequential())
	assert.ErrorContains(t, err, "detector sloppy produced an invalid finding")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, fixture(t), DefaultDetectors(config.Default()), WithSequential())
	assert.ErrorIs(t, err, context.Canceled)
}
