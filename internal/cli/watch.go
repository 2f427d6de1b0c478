package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/pathflow/pkg/adapters/yaml"
	"github.com/fsnotify/fsnotify"
)

// debounce groups the burst of events editors emit for one save.
const debounce = 100 * time.Millisecond

// Watch calls onChange whenever a signal file under paths is written,
// created, removed or renamed. It blocks until ctx is done.
func Watch(ctx context.Context, paths []string, logger *slog.Logger, onChange func(name string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer w.Close()

	files := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files[filepath.Clean(p)] = true
			if err := w.Add(filepath.Dir(p)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return w.Add(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	relevant := func(name string) bool {
		if len(files) > 0 && files[filepath.Clean(name)] {
			return true
		}
		return slices.Contains(yaml.Extensions, strings.ToLower(filepath.Ext(name)))
	}

	var timer *time.Timer
	var pending string
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.Add(event.Name)
				}
			}
			if !relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("Watcher event", "name", event.Name, "op", event.Op.String())
			pending = event.Name
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}
		case <-fire:
			onChange(pending)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)
		}
	}
}

// RunWatch runs the signal once, then reloads the signal files and runs it
// again on every change until ctx is done.
func RunWatch(ctx context.Context, app *App, opts RunOptions, paths []string, out io.Writer, logger *slog.Logger) error {
	runOnce := func() {
		if err := Run(ctx, app, opts, out); err != nil {
			logger.Error("Runtime error", "err", err)
		}
		printSystemMessage(out, "Waiting for changes...")
	}

	logger.Info("Starting Watcher", "paths", paths, "signal", opts.Signal)
	runOnce()

	return Watch(ctx, paths, logger, func(name string) {
		printSystemMessage(out, "Change detected in '%s'.", name)
		if err := app.Reload(); err != nil {
			logger.Error("Reload failed", "err", err)
			printSystemMessage(out, "Reload failed, keeping previous signals.")
			return
		}
		runOnce()
	})
}
