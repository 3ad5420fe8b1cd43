// Package scan runs detectors over a project tree and aggregates their findings
// into a report.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/imports"
	"github.com/salchaD-27/pipeline-check/internal/infra"
	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/methods"
	"github.com/salchaD-27/pipeline-check/internal/modules"
	"github.com/salchaD-27/pipeline-check/internal/report"
	"github.com/salchaD-27/pipeline-check/internal/threads"
	"github.com/salchaD-27/pipeline-check/internal/workflows"
)

var ErrInvalidRoot = errors.New("invalid project root")

// Detector inspects a project tree. Per-file problems are reported as findings
// or skipped; a returned error aborts the scan.
type Detector interface {
	Name() string
	Scan(ctx context.Context, root string) ([]finding.Finding, error)
}

type options struct {
	sequential bool
}

type Option func(*options)

// WithSequential runs detectors one after another instead of concurrently.
func WithSequential() Option {
	return func(o *options) { o.sequential = true }
}

// DefaultDetectors returns the built-in detectors in report order.
func DefaultDetectors(cfg config.Config) []Detector {
	return []Detector{
		imports.New(cfg),
		methods.New(cfg),
		modules.New(cfg),
		infra.New(cfg),
		threads.New(cfg),
		workflows.New(),
	}
}

// Run validates root, runs every detector and builds the report. Findings are
// concatenated in detector order before being sorted by priority, so the
// result does not depend on scheduling.
func Run(ctx context.Context, root string, detectors []Detector, opts ...Option) (*report.Report, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	slots := make([][]finding.Finding, len(detectors))
	if o.sequential {
		for i, d := range detectors {
			if slots[i], err = runOne(ctx, root, d); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, d := range detectors {
			g.Go(func() error {
				found, err := runOne(gctx, root, d)
				slots[i] = found
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var all []finding.Finding
	for _, s := range slots {
		all = append(all, s...)
	}
	return report.New(root, all)
}

func runOne(ctx context.Context, root string, d Detector) ([]finding.Finding, error) {
	found, err := d.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("detector %s: %w", d.Name(), err)
	}
	for _, f := range found {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("detector %s produced an invalid finding for %s: %w", d.Name(), f.File, err)
		}
	}
	logging.Logger.Debugw("detector finished", "detector", d.Name(), "findings", len(found))
	return found, nil
}
