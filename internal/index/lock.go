// Package index provides cross-process coordination around the on-disk
// index artifacts: a writer lock for single-writer indexing and a
// filesystem watcher that notices when another process publishes a new
// index generation.
package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/logger"
)

// WriterLock guards the index directory against concurrent writers.
// The index itself has no internal locking, so any process that intends
// to Add or Save must hold this first.
type WriterLock struct {
	fl *flock.Flock
}

// AcquireWriterLock takes the exclusive writer lock for an index
// directory without blocking. Returns domain.ErrIndexLocked when
// another process already holds it.
func AcquireWriterLock(dir string) (*WriterLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, "writer.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring writer lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another indexer holds %s", domain.ErrIndexLocked, fl.Path())
	}

	logger.Debug("acquired writer lock at %s", fl.Path())
	return &WriterLock{fl: fl}, nil
}

// Release drops the lock. Safe to call once.
func (l *WriterLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing writer lock: %w", err)
	}
	return nil
}
