// Package watch drives follow-up reviews: it watches a directory tree
// for block-document JSON files and reports each changed document once
// its edits have settled.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/margin-labs/margin/internal/infrastructure/storage"
)

// DocumentWatcher watches for reviewable documents using fsnotify.
// Only created or written .json files outside the workspace directory
// are reported; skipping .margin/ keeps note writes from a running
// review from retriggering the watcher.
type DocumentWatcher struct {
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	onDocument func(path string)
}

// NewDocumentWatcher creates a watcher that invokes onDocument with the
// path of each settled document change.
func NewDocumentWatcher(debounce time.Duration, onDocument func(path string)) (*DocumentWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &DocumentWatcher{
		watcher:    w,
		debounce:   debounce,
		onDocument: onDocument,
	}, nil
}

// WatchRecursive adds a directory and all its subdirectories to the
// watcher, skipping the workspace directory.
func (w *DocumentWatcher) WatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if info.Name() == storage.MarginDir {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run starts the event loop. It blocks until the context is cancelled.
func (w *DocumentWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close() //nolint:errcheck // best-effort close on shutdown

	debouncer := NewDebouncer(w.debounce, func(path string) {
		if w.onDocument != nil {
			w.onDocument(path)
		}
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// A newly created directory needs watching too.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.WatchRecursive(event.Name)
					continue
				}
			}

			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !isDocumentPath(event.Name) {
				continue
			}
			debouncer.Trigger(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// isDocumentPath reports whether a changed file is a reviewable
// block-document: a .json file not inside the workspace directory.
func isDocumentPath(path string) bool {
	if filepath.Ext(path) != ".json" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == storage.MarginDir {
			return false
		}
	}
	return true
}
