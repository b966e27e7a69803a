package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher feeds filesystem events into a ChangeQueue and keeps the catalog
// current: upserts go through AddItem, removals through CutItem.
type Watcher struct {
	catalog *Catalog
	queue   *ChangeQueue
	fsw     *fsnotify.Watcher
}

func NewWatcher(ctx context.Context, catalog *Catalog) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{catalog: catalog, fsw: fsw}
	w.queue = NewChangeQueue(0, func(batch []QueuedChange) {
		for _, change := range batch {
			switch change.Kind {
			case ChangeUpsert:
				catalog.AddItem(ctx, change.Path)
			case ChangeRemove:
				catalog.CutItem(ctx, change.Path)
			}
		}
	})
	return w, nil
}

// Queue exposes the underlying queue, for focus tracking.
func (w *Watcher) Queue() *ChangeQueue { return w.queue }

// AddRoot registers root and all its subdirectories. fsnotify watches are
// not recursive, so new directories are added as they appear.
func (w *Watcher) AddRoot(root string) error {
	return filepath.WalkDir(DenormalizePathForOS(root), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if alwaysExcludedDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run pumps fsnotify events into the queue until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer w.queue.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			// Watch errors are transient; the next full scan recovers.
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !alwaysExcludedDirs[filepath.Base(path)] && !isGitPath(NormalizePathForInternal(path)) {
				_ = w.fsw.Add(path)
			}
			return
		}
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.queue.Push(path, ChangeRemove)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.queue.Push(path, ChangeUpsert)
	}
}
