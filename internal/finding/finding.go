package finding

import (
	"errors"
	"fmt"
	"strings"
)

// Priority is the ordinal severity of a finding. P0 is the most severe.
type Priority string

const (
	P0 Priority = "P0" // pipeline-breaking
	P1 Priority = "P1" // high risk
	P2 Priority = "P2" // hygiene
	P3 Priority = "P3" // informational
)

// Priorities lists every known priority, most severe first.
var Priorities = []Priority{P0, P1, P2, P3}

// Rank orders priorities for sorting. Unknown values rank after all known ones.
func (p Priority) Rank() int {
	switch p {
	case P0:
		return 0
	case P1:
		return 1
	case P2:
		return 2
	case P3:
		return 3
	}
	return 99
}

func (p Priority) Valid() bool { return p.Rank() < 99 }

// ParsePriority accepts "P0".."P3", case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q (want one of P0, P1, P2, P3)", s)
	}
	return p, nil
}

// Categories emitted by the built-in detectors.
const (
	SyntaxError           = "syntax_error"
	MissingImport         = "missing_import"
	MissingMethod         = "missing_method"
	MissingModule         = "missing_module"
	MissingInfrastructure = "missing_infrastructure"
	MissingInit           = "missing_init"
	ThreadSafety          = "thread_safety"
	InvalidWorkflow       = "invalid_workflow"
)

// Finding is a single defect record. Line is nil when the detector cannot
// localize the defect.
type Finding struct {
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
	File        string   `json:"file"`
	Line        *int     `json:"line"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation"`
}

// At returns a line pointer for Finding.Line.
func At(line int) *int {
	return &line
}

func (f Finding) Validate() error {
	var errs []error
	if !f.Priority.Valid() {
		errs = append(errs, fmt.Errorf("invalid priority %q", f.Priority))
	}
	if strings.TrimSpace(f.Description) == "" {
		errs = append(errs, errors.New("empty description"))
	}
	if strings.TrimSpace(f.Remediation) == "" {
		errs = append(errs, errors.New("empty remediation"))
	}
	if f.Line != nil && *f.Line < 1 {
		errs = append(errs, fmt.Errorf("line %d is not 1-based", *f.Line))
	}
	return errors.Join(errs...)
}

// Location renders file or file:line.
func (f Finding) Location() string {
	if f.Line == nil {
		return f.File
	}
	return fmt.Sprintf("%s:%d", f.File, *f.Line)
}
