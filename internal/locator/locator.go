// Package locator implements storage-qualified node addresses of the
// form <storage>://<relpath>[?snapshot=<id>].
package locator

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidPath is returned when a path is absolute, escapes the
// storage root or contains forbidden characters.
var ErrInvalidPath = errors.New("invalid path")

// Locator names a single node within a named storage, optionally scoped
// to a snapshot. Locators are values constructed per request and are
// never retained.
type Locator struct {
	// Storage is the name of the storage that owns the node.
	Storage string

	// Path is the normalized path of the node relative to the storage
	// root. Empty means the root itself.
	Path string

	// Snapshot is an optional snapshot identifier in "<kind>:<name>"
	// format. Empty means the live tree.
	Snapshot string
}

// Parse builds a Locator from route pieces. The raw path is normalized
// and rejected if it cannot be made local to the storage root.
func Parse(storage, rawPath, snapshot string) (Locator, error) {
	p, err := Normalize(rawPath)
	if err != nil {
		return Locator{}, err
	}

	return Locator{
		Storage:  storage,
		Path:     p,
		Snapshot: snapshot,
	}, nil
}

// Normalize strips leading slashes, collapses duplicate separators and
// drops "." segments. Any ".." segment, embedded NUL or otherwise
// non-local result is rejected. The empty string denotes the storage
// root.
func Normalize(rawPath string) (string, error) {
	if strings.ContainsRune(rawPath, 0) {
		return "", errors.Wrap(ErrInvalidPath, "embedded NUL")
	}

	var segments []string

	for _, seg := range strings.Split(rawPath, "/") {
		switch seg {
		case "", ".":
			// collapsed separator or no-op segment
		case "..":
			return "", errors.Wrapf(ErrInvalidPath, "parent reference in %q", rawPath)
		default:
			segments = append(segments, seg)
		}
	}

	p := strings.Join(segments, "/")
	if p != "" && !filepath.IsLocal(p) {
		return "", errors.Wrapf(ErrInvalidPath, "non-local path %q", rawPath)
	}

	return p, nil
}

// Child returns the locator of a direct child of l. The snapshot id is
// not carried over: clients address children of a snapshot by passing
// the snapshot id separately.
func (l Locator) Child(name string) Locator {
	return Locator{
		Storage: l.Storage,
		Path:    path.Join(l.Path, name),
	}
}

// Basename returns the last component of the locator path, or empty for
// the storage root.
func (l Locator) Basename() string {
	if l.Path == "" {
		return ""
	}

	return path.Base(l.Path)
}

// FSPath returns the path to hand to a filesystem gateway, mapping the
// storage root to ".".
func (l Locator) FSPath() string {
	if l.Path == "" {
		return "."
	}

	return l.Path
}

// String returns the wire form <storage>://<relpath>[?snapshot=<id>].
func (l Locator) String() string {
	s := l.Storage + "://" + l.Path
	if l.Snapshot != "" {
		s += "?snapshot=" + url.QueryEscape(l.Snapshot)
	}

	return s
}
