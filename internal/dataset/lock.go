package dataset

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/shanehull/leakwatch/internal/errors"
)

const lockRetryDelay = 50 * time.Millisecond

// lock takes the exclusive advisory lock on <artifact>.lock. The OS drops it
// if the process dies.
func (s *Store) lock(ctx context.Context) (func(), error) {
	lockPath := s.opts.Path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create dir for %s", lockPath)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil {
			err = ctx.Err()
		}
		return nil, errors.WithHint(
			errors.Wrapf(err, "acquire dataset lock %s", lockPath),
			"another leakwatch process may be writing the same dataset",
		)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.log.Warnw("Failed to release dataset lock", "path", lockPath, "error", err)
		}
	}, nil
}
