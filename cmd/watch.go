package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/salchaD-27/pipeline-check/internal/logging"
	"github.com/salchaD-27/pipeline-check/internal/walker"
	"github.com/salchaD-27/pipeline-check/internal/workflows"
)

const debounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-scan a Python project whenever its files change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func runWatch(ctx context.Context, root string, stdout, stderr io.Writer) error {
	var mu sync.Mutex
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		r, err := runScan(ctx, root)
		if err == nil {
			err = emit(r, stdout, stderr)
		}
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(stderr, "ERROR: scan failed: %v\n", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, root, root); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	// Watches are in place before the first scan so no change is missed.
	// A bad root or config fails here.
	r, err := runScan(ctx, root)
	if err != nil {
		return err
	}
	if err := emit(r, stdout, stderr); err != nil {
		return err
	}

	var skip string
	if outputPath != "" {
		if abs, err := filepath.Abs(outputPath); err == nil {
			skip = abs
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoredEvent(root, ev.Name, skip) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories are not covered by the existing watches.
				_ = addWatchRecursive(watcher, root, ev.Name)
			}
			logging.Logger.Debugw("change detected", "path", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(stderr, "ERROR: watch error: %v\n", err)
		}
	}
}

// addWatchRecursive watches dir and every directory below it that a scan of
// root reads. A dir that is not a directory is ignored.
func addWatchRecursive(w *fsnotify.Watcher, root, dir string) error {
	for d := range walker.Dirs(dir) {
		if skippedPath(root, d) {
			continue
		}
		if err := w.Add(d); err != nil {
			return err
		}
	}
	return nil
}

func ignoredEvent(root, name, skip string) bool {
	if skip != "" {
		if abs, err := filepath.Abs(name); err == nil && abs == skip {
			return true
		}
	}
	return skippedPath(root, name)
}

// skippedPath reports whether p lies in a hidden directory below root.
// The workflow directory and its parents are read by the detectors, so
// they are never skipped.
func skippedPath(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == workflows.Dir || strings.HasPrefix(rel, workflows.Dir+"/") || strings.HasPrefix(workflows.Dir, rel+"/") {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
