// Package watcher discovers new receipt scans in watched directories and
// feeds them to the processing pipeline.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Config controls what the watcher reports.
type Config struct {
	// Roots are the directories to watch, recursively.
	Roots []string
	// Extensions are the allowed file extensions, lowercase without dot.
	Extensions []string
	// InitialScan emits files already present under the roots at startup.
	InitialScan bool
	// Debounce coalesces rapid create/write bursts for the same files.
	Debounce time.Duration
}

// Start watches the configured roots until ctx is cancelled. Discovered
// file paths arrive on the first channel, watch errors on the second.
// Both channels close when the watcher stops.
func Start(ctx context.Context, cfg Config) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, fmt.Errorf("no watch directories configured")
	}
	allowed := extSet(cfg.Extensions)

	files := make(chan string, 256)
	errs := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("error creating watcher: %w", err)
	}

	for _, root := range cfg.Roots {
		if err := addTree(w, root, cfg.InitialScan, allowed, files); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("error watching %s: %w", root, err)
		}
	}

	go run(ctx, w, cfg, allowed, files, errs)
	return files, errs, nil
}

// addTree registers root and all its subdirectories with the watcher,
// optionally emitting existing matching files.
func addTree(w *fsnotify.Watcher, root string, emitExisting bool, allowed map[string]struct{}, files chan<- string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if emitExisting && isAllowed(path, allowed) {
			select {
			case files <- path:
			default:
				log.WithField("path", path).Warn("Dropping discovered file, queue full")
			}
		}
		return nil
	})
}

func run(ctx context.Context, w *fsnotify.Watcher, cfg Config, allowed map[string]struct{}, files chan<- string, errs chan<- error) {
	defer close(files)
	defer close(errs)
	defer w.Close()

	pending := map[string]struct{}{}
	var flushAt <-chan time.Time

	flush := func() {
		for path := range pending {
			select {
			case files <- path:
			default:
				log.WithField("path", path).Warn("Dropping discovered file, queue full")
			}
			delete(pending, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if e.Op.Has(fsnotify.Create) {
				// New directories join the watch, new files fall through
				// to the extension check. Add errors on non-dirs are
				// expected and ignored.
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					if err := addTree(w, e.Name, false, allowed, files); err != nil {
						log.WithError(err).WithField("path", e.Name).Warn("Failed to watch new directory")
					}
					continue
				}
			}
			if isAllowed(e.Name, allowed) && e.Op.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				pending[e.Name] = struct{}{}
				if cfg.Debounce > 0 {
					flushAt = time.After(cfg.Debounce)
				} else {
					flush()
				}
			}

		case <-flushAt:
			flushAt = nil
			flush()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("Watcher error")
			select {
			case errs <- err:
			default:
			}
		}
	}
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	if len(set) == 0 {
		for _, e := range []string{"pdf", "jpg", "jpeg", "png"} {
			set[e] = struct{}{}
		}
	}
	return set
}

func isAllowed(path string, exts map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}
