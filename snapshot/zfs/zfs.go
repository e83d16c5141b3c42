// Package zfs discovers ZFS snapshot sidecar directories and opens
// point-in-time views of a directory tree through them.
//
// A ZFS filesystem exposes its snapshots as a hidden ".zfs/snapshot"
// directory at the filesystem root; each subdirectory is one snapshot
// holding a full copy of the tree as of that snapshot. The engine walks
// upward from a node toward the storage root to find the nearest such
// sidecar, enumerates its snapshots and parses timestamps from their
// names.
package zfs

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/timeshipd/timeship/internal/logging"
	"github.com/timeshipd/timeship/internal/rootedfs"
	"github.com/timeshipd/timeship/storage"
)

var log = logging.Module("timeship/zfs")

// Kind identifies snapshots produced by this engine.
const Kind = "zfs"

var (
	// ErrInvalidSnapshot is returned when a snapshot id is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot id")

	// ErrNoSnapshots is returned when no sidecar applies to a path.
	ErrNoSnapshots = errors.New("no snapshots")
)

// DateTimePattern extracts a timestamp from a snapshot name. The regex
// must have one capturing group which is parsed against the layout.
type DateTimePattern struct {
	Regex  string
	Layout string

	compiled *regexp.Regexp
}

// DefaultDateTimePatterns returns the patterns tried against snapshot
// names, most specific first so that a seconds-bearing name is not
// truncated to the minute by a broader rule.
func DefaultDateTimePatterns() []DateTimePattern {
	return []DateTimePattern{
		{
			// 2025-11-09_14-30-45
			Regex:  `(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})`,
			Layout: "2006-01-02_15-04-05",
		},
		{
			// 20251109_143045
			Regex:  `(\d{8}_\d{6})`,
			Layout: "20060102_150405",
		},
		{
			// 2025-11-09_14-30
			Regex:  `(\d{4}-\d{2}-\d{2}_\d{2}-\d{2})`,
			Layout: "2006-01-02_15-04",
		},
		{
			// 2025-11-09
			Regex:  `(\d{4}-\d{2}-\d{2})`,
			Layout: "2006-01-02",
		},
	}
}

// Config customizes an Engine.
type Config struct {
	// DateTimePatterns overrides the default snapshot name patterns.
	DateTimePatterns []DateTimePattern
}

// Engine discovers and opens ZFS snapshots for a single storage root.
type Engine struct {
	rootDir  string
	patterns []DateTimePattern
}

// NewEngine returns an engine for the given storage root with default
// configuration.
func NewEngine(rootDir string) *Engine {
	return NewEngineWithConfig(rootDir, Config{})
}

// NewEngineWithConfig returns an engine with custom configuration.
func NewEngineWithConfig(rootDir string, cfg Config) *Engine {
	patterns := cfg.DateTimePatterns
	if len(patterns) == 0 {
		patterns = DefaultDateTimePatterns()
	}

	for i := range patterns {
		patterns[i].compiled = regexp.MustCompile(patterns[i].Regex)
	}

	return &Engine{
		rootDir:  rootDir,
		patterns: patterns,
	}
}

// findSidecar walks from <root>/<relPath> upward toward the storage
// root, never above it, looking for a ".zfs/snapshot" directory. It
// returns the sidecar path and the root-relative path of the
// snapshot-bearing ancestor. Both are empty when no sidecar applies,
// which is not an error.
func (e *Engine) findSidecar(relPath string) (sidecar, ancestor string) {
	rel := filepath.Clean(relPath)
	if rel == "" {
		rel = "."
	}

	for {
		dir := filepath.Join(e.rootDir, rel, ".zfs", "snapshot")
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir, rel
		}

		if rel == "." {
			return "", ""
		}

		rel = filepath.Dir(rel)
	}
}

// parseTimestamp extracts a timestamp from a snapshot name using the
// configured patterns. The first matching pattern wins.
func (e *Engine) parseTimestamp(name string) (int64, bool) {
	for _, p := range e.patterns {
		m := p.compiled.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}

		if t, err := time.Parse(p.Layout, m[1]); err == nil {
			return t.Unix(), true
		}
	}

	return 0, false
}

// Snapshots enumerates the snapshots under which the given node is
// reachable, newest first. A path with no applicable sidecar yields an
// empty list, not an error.
func (e *Engine) Snapshots(ctx context.Context, relPath string) ([]storage.Snapshot, error) {
	sidecar, _ := e.findSidecar(relPath)
	if sidecar == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(sidecar)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read snapshot sidecar")
	}

	snapshots := []storage.Snapshot{}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		timestamp, parsed := e.parseTimestamp(entry.Name())
		if !parsed {
			info, err := entry.Info()
			if err != nil {
				// lost the race with snapshot expiry - ignore.
				log(ctx).Debugf("unable to stat snapshot %q: %v", entry.Name(), err)
				continue
			}

			timestamp = info.ModTime().Unix()
		}

		snapshots = append(snapshots, storage.Snapshot{
			ID:        Kind + ":" + entry.Name(),
			Kind:      Kind,
			Timestamp: timestamp,
			Name:      entry.Name(),
			Size:      -1,
			Metadata: storage.Metadata{
				"zfs_root": sidecar,
			},
		})
	}

	// newest first; ties keep directory order
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp > snapshots[j].Timestamp
	})

	return snapshots, nil
}

// snapshotName validates a snapshot id and extracts its name component.
func snapshotName(snapshotID string) (string, error) {
	kind, name, ok := strings.Cut(snapshotID, ":")
	if !ok || kind != Kind {
		return "", errors.Wrapf(ErrInvalidSnapshot, "%q", snapshotID)
	}

	if name == "" || name != filepath.Base(name) || !filepath.IsLocal(name) {
		return "", errors.Wrapf(ErrInvalidSnapshot, "%q", snapshotID)
	}

	return name, nil
}

// SnapshotRoot opens a rooted gateway scoped to the given snapshot's
// copy of the tree and returns it together with the snapshot-relative
// path of the node. The caller owns the returned gateway and must close
// it.
func (e *Engine) SnapshotRoot(relPath, snapshotID string) (*rootedfs.Root, string, error) {
	name, err := snapshotName(snapshotID)
	if err != nil {
		return nil, "", err
	}

	sidecar, ancestor := e.findSidecar(relPath)
	if sidecar == "" {
		return nil, "", errors.Wrapf(ErrNoSnapshots, "%q", relPath)
	}

	sub, err := filepath.Rel(ancestor, filepath.Clean(relPath))
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to compute snapshot-relative path")
	}

	root, err := rootedfs.Open(filepath.Join(sidecar, name))
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, "", errors.Wrapf(storage.ErrNotFound, "snapshot %q", snapshotID)
		}

		return nil, "", errors.Wrapf(err, "unable to open snapshot %q", snapshotID)
	}

	return root, sub, nil
}
