package modules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestMissingModules(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app/__init__.py": "",
		"app/core.py":     "from app.models import User\nfrom helpers import slugify\n",
		"helpers.py":      "import numpy\n",
		"tests/test_core.py": `from __future__ import annotations
import os
from typing import List
from app.core import run
from ghost.sub import thing
from . import sibling
from .local import value

def test_run():
    from phantom import x
`,
	})

	got, err := New(config.Default()).Scan(context.Background(), root)
	require.NoError(t, err)

	type hit struct {
		line int
		desc string
	}
	var hits []hit
	for _, f := range got {
		assert.Equal(t, finding.P0, f.Priority)
		assert.Equal(t, finding.MissingModule, f.Category)
		assert.Equal(t, filepath.Join(root, "tests", "test_core.py"), f.File)
		require.NotNil(t, f.Line)
		assert.NoError(t, f.Validate())
		hits = append(hits, hit{*f.Line, f.Description})
	}
	assert.Equal(t, []hit{
		{5, "Import from 'ghost.sub': module not found in project or known packages."},
		{7, "Import from 'local': module not found in project or known packages."},
		{10, "Import from 'phantom': module not found in project or known packages."},
	}, hits)
	assert.Equal(t, "Create 'ghost' module or add to requirements.txt, or skip the test.", got[0].Remediation)
}

func TestPlainImportsAreNotChecked(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "import ghost\nimport phantom.sub as p\n"})

	got, err := New(config.Default()).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAllowListIsConfigurable(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "from numpy import array\nfrom os import path\n"})

	got, err := New(config.Default()).Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Description, "'numpy'")

	cfg := config.Default()
	cfg.ExtraKnownModules = []string{"numpy"}
	got, err = New(cfg).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, got)

	cfg = config.Default()
	cfg.KnownModules = nil
	got, err = New(cfg).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDetectorOwnsAllowList(t *testing.T) {
	cfg := config.Default()
	cfg.ExtraKnownModules = []string{"numpy"}
	d := New(cfg)
	cfg.ExtraKnownModules[0] = "pandas"
	assert.True(t, d.known["numpy"])
	assert.False(t, d.known["pandas"])
}

func TestTopLevel(t *testing.T) {
	root := filepath.FromSlash("/proj")
	tests := []struct {
		path string
		want string
	}{
		{"/proj/app.py", "app"},
		{"/proj/pkg/sub/mod.py", "pkg"},
		{"/proj/my.pkg/mod.py", "my"},
		{"/proj/.venv/lib/site.py", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, topLevel(root, filepath.FromSlash(tt.path)), tt.path)
	}
}
