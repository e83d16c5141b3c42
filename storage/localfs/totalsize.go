package localfs

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/pkg/errors"

	"github.com/timeshipd/timeship/internal/locator"
	"github.com/timeshipd/timeship/storage"
)

// TotalSize implements storage.TreeSizer by walking the subtree under
// the locator in parallel and summing the sizes of regular files.
// Symbolic links are not followed and per-entry errors do not abort the
// sum.
func (s *Storage) TotalSize(ctx context.Context, loc locator.Locator) (int64, error) {
	root, fsPath, closeGateway, err := s.gateway(loc)
	if err != nil {
		return 0, err
	}
	defer closeGateway()

	// the gateway has already confined fsPath beneath its root, so the
	// walk starts inside it; Follow is off so symlinks cannot lead out.
	target := filepath.Join(root.Name(), filepath.FromSlash(fsPath))

	if _, err := root.Stat(fsPath); err != nil {
		return 0, err
	}

	var totalSize atomic.Int64

	conf := fastwalk.Config{
		Follow: false,
	}

	walkFn := func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			log(ctx).Warnf("error walking %q: %v", walkPath, err)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.Type().IsRegular() {
			if info, ierr := d.Info(); ierr == nil {
				totalSize.Add(info.Size())
			}
		}

		return nil
	}

	if err := fastwalk.Walk(&conf, target, walkFn); err != nil {
		return 0, errors.Wrap(err, "unable to walk directory")
	}

	return totalSize.Load(), nil
}

var _ storage.TreeSizer = (*Storage)(nil)
