package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/salchaD-27/pipeline-check/internal/finding"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// Scaffold is one expected pipeline artifact, relative to the project root.
type Scaffold struct {
	Path        string           `yaml:"path"`
	Priority    finding.Priority `yaml:"priority"`
	Description string           `yaml:"description"`
	Remediation string           `yaml:"remediation"`
}

// Config holds every tunable of a scan. The zero value is not usable; start
// from Default.
type Config struct {
	SourcePattern      string     `yaml:"source_pattern"`
	TestPattern        string     `yaml:"test_pattern"`
	PackageMarker      string     `yaml:"package_marker"`
	KnownModules       []string   `yaml:"known_modules"`
	ExtraKnownModules  []string   `yaml:"extra_known_modules"`
	TypingNames        []string   `yaml:"typing_names"`
	ConcurrencyMarkers []string   `yaml:"concurrency_markers"`
	LockMarkers        []string   `yaml:"lock_markers"`
	Scaffolding        []Scaffold `yaml:"scaffolding"`
	RespectGitignore   bool       `yaml:"respect_gitignore"`
	Sequential         bool       `yaml:"sequential"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		SourcePattern:      "*.py",
		TestPattern:        "test_*.py",
		PackageMarker:      "__init__.py",
		KnownModules:       append([]string(nil), defaultKnownModules...),
		TypingNames:        []string{"List", "Dict", "Optional", "Any", "Tuple", "Set", "Union", "Callable", "Iterable", "Iterator", "Sequence", "Mapping"},
		ConcurrencyMarkers: []string{"ThreadPoolExecutor", "threading"},
		LockMarkers:        []string{"Lock", "lock"},
		Scaffolding: []Scaffold{
			{
				Path:        ".github/workflows",
				Priority:    finding.P1,
				Description: "No GitHub Actions workflow directory found.",
				Remediation: "Create .github/workflows/main.yml with lint, test, and deploy stages.",
			},
			{
				Path:        "requirements.txt",
				Priority:    finding.P1,
				Description: "No requirements.txt found.",
				Remediation: "Create requirements.txt listing all Python dependencies.",
			},
			{
				Path:        "Dockerfile",
				Priority:    finding.P2,
				Description: "No Dockerfile found.",
				Remediation: "Create a Dockerfile for containerized, reproducible test execution.",
			},
			{
				Path:        "pyproject.toml",
				Priority:    finding.P2,
				Description: "No pyproject.toml found.",
				Remediation: "Create pyproject.toml for modern Python project configuration.",
			},
		},
	}
}

// Standard library and common third-party top-level modules.
var defaultKnownModules = []string{
	"__future__", "abc", "argparse", "array", "ast", "asyncio", "base64", "bisect",
	"builtins", "calendar", "collections", "concurrent", "configparser", "contextlib",
	"contextvars", "copy", "csv", "ctypes", "dataclasses", "datetime", "decimal",
	"difflib", "email", "enum", "errno", "fnmatch", "fractions", "functools", "gc",
	"getpass", "glob", "gzip", "hashlib", "heapq", "hmac", "html", "http", "importlib",
	"inspect", "io", "ipaddress", "itertools", "json", "logging", "math", "mimetypes",
	"multiprocessing", "operator", "os", "pathlib", "pickle", "platform", "pprint",
	"queue", "random", "re", "secrets", "select", "shlex", "shutil", "signal", "socket",
	"sqlite3", "ssl", "stat", "statistics", "string", "struct", "subprocess", "sys",
	"tempfile", "textwrap", "threading", "time", "timeit", "traceback", "types",
	"typing", "unittest", "urllib", "uuid", "warnings", "weakref", "xml", "zipfile",
	"zlib",
	"pytest", "cryptography", "yaml", "pyyaml", "requests", "flask", "fastapi",
	"typing_extensions",
}

// KnownModuleSet is the allow-list used by the missing-module detector.
func (c Config) KnownModuleSet() map[string]bool {
	set := make(map[string]bool, len(c.KnownModules)+len(c.ExtraKnownModules))
	for _, m := range c.KnownModules {
		set[m] = true
	}
	for _, m := range c.ExtraKnownModules {
		set[m] = true
	}
	return set
}

func (c Config) Validate() error {
	var errs []error
	patterns := []struct{ name, value string }{
		{"source_pattern", c.SourcePattern},
		{"test_pattern", c.TestPattern},
	}
	for _, p := range patterns {
		if _, err := glob.Compile(p.value); err != nil || p.value == "" {
			errs = append(errs, fmt.Errorf("%s: invalid pattern %q", p.name, p.value))
		}
	}
	if c.PackageMarker == "" || strings.ContainsAny(c.PackageMarker, `/\`) {
		errs = append(errs, fmt.Errorf("package_marker: invalid file name %q", c.PackageMarker))
	}
	for i, s := range c.Scaffolding {
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("scaffolding[%d]: empty path", i))
		}
		if !s.Priority.Valid() {
			errs = append(errs, fmt.Errorf("scaffolding[%d] %s: invalid priority %q", i, s.Path, s.Priority))
		}
		if strings.TrimSpace(s.Description) == "" || strings.TrimSpace(s.Remediation) == "" {
			errs = append(errs, fmt.Errorf("scaffolding[%d] %s: description and remediation are required", i, s.Path))
		}
	}
	return errors.Join(errs...)
}

// Load overlays the file at path on Default. Keys missing from the file keep
// their default values. YAML (.yaml, .yml) and HCL (.hcl) are supported.
func Load(path string) (Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = loadYAML(path, &cfg)
	case ".hcl":
		err = loadHCL(path, &cfg)
	default:
		return cfg, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return cfg, err
	}
	for i := range cfg.Scaffolding {
		cfg.Scaffolding[i].Priority = finding.Priority(strings.ToUpper(string(cfg.Scaffolding[i].Priority)))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("YAML parse error in %s: %w", path, err)
	}
	return nil
}

var hclSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "source_pattern"},
		{Name: "test_pattern"},
		{Name: "package_marker"},
		{Name: "known_modules"},
		{Name: "extra_known_modules"},
		{Name: "typing_names"},
		{Name: "concurrency_markers"},
		{Name: "lock_markers"},
		{Name: "respect_gitignore"},
		{Name: "sequential"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "scaffold", LabelNames: []string{"path"}},
	},
}

// loadHCL reads a config such as:
//
//	extra_known_modules = ["numpy", "pandas"]
//
//	scaffold "Makefile" {
//	  priority    = "P2"
//	  description = "No Makefile found."
//	  remediation = "Add a Makefile with test and lint targets."
//	}
//
// Any scaffold block replaces the default scaffolding table.
func loadHCL(path string, cfg *Config) error {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	content, _, diags := file.Body.PartialContent(hclSchema)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse blocks: %s", diags.Error())
	}

	strs := map[string]*string{
		"source_pattern": &cfg.SourcePattern,
		"test_pattern":   &cfg.TestPattern,
		"package_marker": &cfg.PackageMarker,
	}
	lists := map[string]*[]string{
		"known_modules":       &cfg.KnownModules,
		"extra_known_modules": &cfg.ExtraKnownModules,
		"typing_names":        &cfg.TypingNames,
		"concurrency_markers": &cfg.ConcurrencyMarkers,
		"lock_markers":        &cfg.LockMarkers,
	}
	bools := map[string]*bool{
		"respect_gitignore": &cfg.RespectGitignore,
		"sequential":        &cfg.Sequential,
	}

	for name, attr := range content.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("%s: %s", name, diags.Error())
		}
		var err error
		switch {
		case strs[name] != nil:
			*strs[name], err = ctyString(val)
		case lists[name] != nil:
			*lists[name], err = ctyStrings(val)
		case bools[name] != nil:
			*bools[name], err = ctyBool(val)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	var scaffolds []Scaffold
	for _, block := range content.Blocks {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return fmt.Errorf("scaffold %q: %s", block.Labels[0], diags.Error())
		}
		s := Scaffold{Path: block.Labels[0]}
		fields := map[string]*string{
			"description": &s.Description,
			"remediation": &s.Remediation,
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("scaffold %q %s: %s", s.Path, name, diags.Error())
			}
			str, err := ctyString(val)
			if err != nil {
				return fmt.Errorf("scaffold %q %s: %w", s.Path, name, err)
			}
			switch {
			case name == "priority":
				s.Priority = finding.Priority(str)
			case fields[name] != nil:
				*fields[name] = str
			default:
				return fmt.Errorf("scaffold %q: unknown attribute %q", s.Path, name)
			}
		}
		scaffolds = append(scaffolds, s)
	}
	if len(scaffolds) > 0 {
		cfg.Scaffolding = scaffolds
	}
	return nil
}

func ctyString(val cty.Value) (string, error) {
	if val.IsNull() || val.Type() != cty.String {
		return "", fmt.Errorf("expected a string, got %s", val.Type().FriendlyName())
	}
	return val.AsString(), nil
}

func ctyBool(val cty.Value) (bool, error) {
	if val.IsNull() || val.Type() != cty.Bool {
		return false, fmt.Errorf("expected a bool, got %s", val.Type().FriendlyName())
	}
	return val.True(), nil
}

func ctyStrings(val cty.Value) ([]string, error) {
	t := val.Type()
	if val.IsNull() || !(t.IsListType() || t.IsTupleType() || t.IsSetType()) {
		return nil, fmt.Errorf("expected a list of strings, got %s", t.FriendlyName())
	}
	out := []string{}
	for _, v := range val.AsValueSlice() {
		s, err := ctyString(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
