package index

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/catalyst-labs/filingrag/internal/logger"
)

// reloadDebounce coalesces the burst of rename events a save produces
// into one notification.
const reloadDebounce = 500 * time.Millisecond

// Watcher notifies when a new index generation lands in the index
// directory. Long-lived readers use this to reopen the index after an
// indexing run in another process completes.
//
// The id map is written last during a save, so its rename marks a
// complete generation.
type Watcher struct {
	dir     string
	fsw     *fsnotify.Watcher
	reloads chan struct{}
}

// NewWatcher starts watching dir for published index generations.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching index directory: %w", err)
	}
	return &Watcher{dir: dir, fsw: fsw, reloads: make(chan struct{}, 1)}, nil
}

// Reloads delivers one value per published generation. The channel has
// a one-slot buffer; unconsumed notifications coalesce.
func (w *Watcher) Reloads() <-chan struct{} {
	return w.reloads
}

// Run pumps filesystem events until ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) {
	target := filepath.Join(w.dir, "idmap.json")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != target {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			logger.Info("new index generation published in %s", w.dir)
			select {
			case w.reloads <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("index watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
