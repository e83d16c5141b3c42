// Package rootedfs opens files and directories confined to a fixed root
// directory. All opens are performed relative to a directory handle
// pinned at construction time, so symlinks, ".." segments or absolute
// components supplied by callers cannot escape the root.
package rootedfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when an entry does not exist under the root.
	ErrNotFound = errors.New("entry not found")

	// ErrPermission is returned when an entry exists but cannot be read.
	ErrPermission = errors.New("permission denied")

	// ErrEscapesRoot is returned when path resolution would leave the root.
	ErrEscapesRoot = errors.New("path escapes the root")
)

// Root confines all relative opens beneath a fixed directory. The root
// handle is pinned once at construction and may be shared by any number
// of concurrent readers.
type Root struct {
	root *os.Root
}

// Open pins the given directory and returns a gateway rooted at it.
func Open(dir string) (*Root, error) {
	r, err := os.OpenRoot(dir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open root directory")
	}

	return &Root{root: r}, nil
}

// Name returns the path of the directory the gateway is rooted at.
func (r *Root) Name() string {
	return r.root.Name()
}

// Close releases the pinned root handle. Files opened through the
// gateway remain usable after Close.
func (r *Root) Close() error {
	return errors.Wrap(r.root.Close(), "unable to close root")
}

// OpenFile opens the named file or directory beneath the root. The
// empty name refers to the root itself.
func (r *Root) OpenFile(name string) (*os.File, error) {
	name, err := checkLocal(name)
	if err != nil {
		return nil, err
	}

	f, err := r.root.Open(name)
	if err != nil {
		return nil, classify(name, err)
	}

	return f, nil
}

// Stat returns information about the named entry beneath the root.
func (r *Root) Stat(name string) (os.FileInfo, error) {
	name, err := checkLocal(name)
	if err != nil {
		return nil, err
	}

	fi, err := r.root.Stat(name)
	if err != nil {
		return nil, classify(name, err)
	}

	return fi, nil
}

// ReadDir returns information about the entries of the named directory,
// in directory order.
func (r *Root) ReadDir(name string) ([]os.FileInfo, error) {
	f, err := r.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, classify(name, err)
	}

	return infos, nil
}

// checkLocal rejects non-local names before any OS call is made. The
// empty name is mapped to ".".
func checkLocal(name string) (string, error) {
	if name == "" || name == "." {
		return ".", nil
	}

	if !filepath.IsLocal(name) {
		return "", errors.Wrapf(ErrEscapesRoot, "%q", name)
	}

	return name, nil
}

// classify maps OS errors to gateway errors, reporting the relative
// name only so that the on-disk root location is never exposed.
func classify(name string, err error) error {
	switch {
	case os.IsNotExist(err):
		return errors.Wrapf(ErrNotFound, "%q", name)
	case os.IsPermission(err):
		return errors.Wrapf(ErrPermission, "%q", name)
	case strings.Contains(err.Error(), "escapes from parent"):
		// symlink resolution attempted to leave the root
		return errors.Wrapf(ErrEscapesRoot, "%q", name)
	default:
		return errors.Wrapf(err, "unable to access %q", name)
	}
}
