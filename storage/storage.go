// Package storage defines the capability surface shared by all
// timeship storages.
//
// A storage is a named registration binding a root directory to a set
// of capabilities. Capabilities are small optional interfaces probed at
// call time: a storage implements only the ones it supports and the
// HTTP layer degrades gracefully when one is missing.
package storage

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/timeshipd/timeship/internal/locator"
)

var (
	// ErrNotFound is returned when the addressed node or snapshot does not exist.
	ErrNotFound = errors.New("node not found")

	// ErrNotSupported is returned when a storage lacks a required capability.
	ErrNotSupported = errors.New("operation not supported")
)

// Node describes one filesystem entry. Nodes are built on demand from a
// single stat and are never cached beyond one response.
type Node struct {
	// Path of the node relative to the storage root.
	Path string

	// Type is "file" or "dir".
	Type string

	// Basename is the last component of Path.
	Basename string

	// Extension is the run of characters after the final dot of the
	// basename, without the dot. Empty when there is none.
	Extension string

	// Size in bytes. Always 0 for directories.
	Size int64

	// LastModified is seconds since epoch.
	LastModified int64

	// MimeType is the sniffed media type. Only set for files.
	MimeType string
}

// Snapshot describes a point-in-time version of a node.
type Snapshot struct {
	// ID uniquely identifies the snapshot within its storage, in
	// "<kind>:<name>" format.
	ID string

	// Kind is the snapshot mechanism, e.g. "zfs".
	Kind string

	// Timestamp is seconds since epoch when the snapshot was taken.
	Timestamp int64

	// Name is the human-readable snapshot label.
	Name string

	// Size of the node in this snapshot, -1 when unknown.
	Size int64

	// Metadata holds mechanism-specific details.
	Metadata Metadata
}

// Metadata is an open key-value map attached to a snapshot.
type Metadata map[string]interface{}

// Storage is a marker interface for registered storages. Capabilities
// are expressed by the optional interfaces below.
type Storage interface{}

// Lister lists the immediate children of a directory node.
type Lister interface {
	List(ctx context.Context, loc locator.Locator) ([]Node, error)
}

// Reader streams file bytes and reports the declared media type and size.
type Reader interface {
	ReadStream(ctx context.Context, loc locator.Locator) (io.ReadCloser, error)
	MimeType(ctx context.Context, loc locator.Locator) (string, error)
	Size(ctx context.Context, loc locator.Locator) (int64, error)
}

// Stater describes a single node.
type Stater interface {
	Stat(ctx context.Context, loc locator.Locator) (Node, error)
}

// SnapshotLister enumerates the snapshots under which a node is reachable.
type SnapshotLister interface {
	Snapshots(ctx context.Context, loc locator.Locator) ([]Snapshot, error)
}

// TreeSizer sums the sizes of all regular files under a directory node.
type TreeSizer interface {
	TotalSize(ctx context.Context, loc locator.Locator) (int64, error)
}
