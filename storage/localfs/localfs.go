// Package localfs implements a storage backed by a local directory
// tree and its ZFS snapshot sidecars.
package localfs

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/timeshipd/timeship/internal/locator"
	"github.com/timeshipd/timeship/internal/logging"
	"github.com/timeshipd/timeship/internal/rootedfs"
	"github.com/timeshipd/timeship/snapshot/zfs"
	"github.com/timeshipd/timeship/storage"
)

var log = logging.Module("timeship/localfs")

// number of entries to sniff media types for in parallel
const sniffWorkers = 16

// sniffLen is how many leading bytes are read to classify file content.
const sniffLen = 512

// Storage serves a local directory tree. The primary root handle is
// pinned at construction and shared by all requests; snapshot-scoped
// gateways are opened per call and closed before the call returns.
type Storage struct {
	root     *rootedfs.Root
	rootPath string
	zfs      *zfs.Engine
}

// New opens a storage rooted at the given directory.
func New(rootPath string) (*Storage, error) {
	root, err := rootedfs.Open(rootPath)
	if err != nil {
		return nil, err
	}

	return &Storage{
		root:     root,
		rootPath: rootPath,
		zfs:      zfs.NewEngine(rootPath),
	}, nil
}

// Close releases the primary root handle.
func (s *Storage) Close() error {
	return s.root.Close()
}

// RootPath returns the directory this storage serves.
func (s *Storage) RootPath() string {
	return s.rootPath
}

// gateway resolves a locator to a rooted gateway and a gateway-relative
// path. For snapshot locators a fresh snapshot-scoped gateway is opened
// and the returned closer releases it; for live locators the shared
// primary gateway is returned with a no-op closer.
func (s *Storage) gateway(loc locator.Locator) (*rootedfs.Root, string, func(), error) {
	if loc.Snapshot == "" {
		return s.root, loc.FSPath(), func() {}, nil
	}

	root, sub, err := s.zfs.SnapshotRoot(loc.FSPath(), loc.Snapshot)
	if err != nil {
		return nil, "", nil, err
	}

	return root, sub, func() {
		root.Close() //nolint:errcheck
	}, nil
}

// List implements storage.Lister.
func (s *Storage) List(ctx context.Context, loc locator.Locator) ([]storage.Node, error) {
	root, fsPath, closeGateway, err := s.gateway(loc)
	if err != nil {
		return nil, err
	}
	defer closeGateway()

	infos, err := root.ReadDir(fsPath)
	if err != nil {
		return nil, err
	}

	nodes := make([]storage.Node, len(infos))

	// sniff media types for files with a bounded pool of workers; one
	// open per file is the dominant cost of enrichment.
	indexCh := make(chan int, len(infos))

	var wg sync.WaitGroup

	for range sniffWorkers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range indexCh {
				info := infos[i]
				node := nodeFromInfo(loc.Child(info.Name()), info)

				if node.Type == "file" {
					mimeType, merr := sniffMimeType(root, joinFS(fsPath, info.Name()))
					if merr != nil {
						// enrichment is fail-soft
						log(ctx).Debugf("unable to sniff %q: %v", node.Path, merr)
					} else {
						node.MimeType = mimeType
					}
				}

				nodes[i] = node
			}
		}()
	}

	for i := range infos {
		indexCh <- i
	}
	close(indexCh)
	wg.Wait()

	return nodes, nil
}

// Stat implements storage.Stater.
func (s *Storage) Stat(ctx context.Context, loc locator.Locator) (storage.Node, error) {
	root, fsPath, closeGateway, err := s.gateway(loc)
	if err != nil {
		return storage.Node{}, err
	}
	defer closeGateway()

	info, err := root.Stat(fsPath)
	if err != nil {
		return storage.Node{}, err
	}

	node := nodeFromInfo(loc, info)
	if node.Type == "file" {
		if mimeType, merr := sniffMimeType(root, fsPath); merr == nil {
			node.MimeType = mimeType
		}
	}

	return node, nil
}

// ReadStream implements storage.Reader. The snapshot-scoped gateway, if
// any, is released before returning; the stream remains readable.
func (s *Storage) ReadStream(ctx context.Context, loc locator.Locator) (io.ReadCloser, error) {
	root, fsPath, closeGateway, err := s.gateway(loc)
	if err != nil {
		return nil, err
	}
	defer closeGateway()

	return root.OpenFile(fsPath)
}

// MimeType implements storage.Reader.
func (s *Storage) MimeType(ctx context.Context, loc locator.Locator) (string, error) {
	root, fsPath, closeGateway, err := s.gateway(loc)
	if err != nil {
		return "", err
	}
	defer closeGateway()

	return sniffMimeType(root, fsPath)
}

// Size implements storage.Reader.
func (s *Storage) Size(ctx context.Context, loc locator.Locator) (int64, error) {
	root, fsPath, closeGateway, err := s.gateway(loc)
	if err != nil {
		return 0, err
	}
	defer closeGateway()

	info, err := root.Stat(fsPath)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// Snapshots implements storage.SnapshotLister.
func (s *Storage) Snapshots(ctx context.Context, loc locator.Locator) ([]storage.Snapshot, error) {
	return s.zfs.Snapshots(ctx, loc.FSPath())
}

// nodeFromInfo builds a Node for the entry at loc described by info.
func nodeFromInfo(loc locator.Locator, info os.FileInfo) storage.Node {
	node := storage.Node{
		Path:         loc.Path,
		Basename:     loc.Basename(),
		LastModified: info.ModTime().Unix(),
	}

	if node.Basename == "" {
		node.Basename = info.Name()
	}

	if info.IsDir() {
		node.Type = "dir"
	} else {
		node.Type = "file"
		node.Extension = strings.TrimPrefix(path.Ext(node.Basename), ".")
		node.Size = info.Size()
	}

	return node
}

// sniffMimeType classifies a file by its leading bytes using the
// standard content-sniffing table.
func sniffMimeType(root *rootedfs.Root, fsPath string) (string, error) {
	f, err := root.OpenFile(fsPath)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	buf := make([]byte, sniffLen)

	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "unable to read file header")
	}

	return http.DetectContentType(buf[:n]), nil
}

// joinFS joins a gateway-relative directory path with a child name,
// keeping "." out of the result.
func joinFS(dir, name string) string {
	if dir == "." {
		return name
	}

	return dir + "/" + name
}

var (
	_ storage.Lister         = (*Storage)(nil)
	_ storage.Reader         = (*Storage)(nil)
	_ storage.Stater         = (*Storage)(nil)
	_ storage.SnapshotLister = (*Storage)(nil)
)
