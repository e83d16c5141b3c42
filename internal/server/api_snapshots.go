package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/timeshipd/timeship/internal/locator"
	"github.com/timeshipd/timeship/internal/serverapi"
	"github.com/timeshipd/timeship/storage"
)

const (
	defaultSnapshotLimit = 1000
)

// handleSnapshots enumerates the snapshots under which a node is
// reachable, newest first, with limit/offset pagination applied after
// sorting.
func (s *Server) handleSnapshots(ctx context.Context, r *http.Request) (interface{}, *apiError) {
	vars := mux.Vars(r)
	q := r.URL.Query()

	limit, aerr := intParam(q.Get("limit"), "limit", defaultSnapshotLimit)
	if aerr != nil {
		return nil, aerr
	}

	offset, aerr := intParam(q.Get("offset"), "offset", 0)
	if aerr != nil {
		return nil, aerr
	}

	if aerr := validateSortParams(q.Get("sort"), q.Get("order")); aerr != nil {
		return nil, aerr
	}

	st, aerr := s.getStorage(vars["storage"])
	if aerr != nil {
		return nil, aerr
	}

	loc, err := locator.Parse(vars["storage"], vars["path"], "")
	if err != nil {
		return nil, storageError(err, locator.Locator{Storage: vars["storage"]})
	}

	snapshotLister, ok := st.(storage.SnapshotLister)
	if !ok {
		return nil, notImplementedError("storage does not support snapshots")
	}

	snapshots, err := snapshotLister.Snapshots(ctx, loc)
	if err != nil {
		return nil, storageError(err, loc)
	}

	snapshots = paginate(snapshots, offset, limit)

	apiSnapshots := make([]serverapi.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		apiSnapshots = append(apiSnapshots, apiSnapshot(snap))
	}

	return &serverapi.SnapshotList{
		Storage:   loc.Storage,
		Path:      loc.Path,
		Snapshots: apiSnapshots,
	}, nil
}

func intParam(v, name string, defaultValue int) (int, *apiError) {
	if v == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalidParameterError(fmt.Sprintf("unsupported %s value %q", name, v))
	}

	return n, nil
}

func paginate(snapshots []storage.Snapshot, offset, limit int) []storage.Snapshot {
	if offset >= len(snapshots) {
		return nil
	}

	snapshots = snapshots[offset:]

	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}

	return snapshots
}

func apiSnapshot(snap storage.Snapshot) serverapi.Snapshot {
	as := serverapi.Snapshot{
		ID:        snap.ID,
		Type:      snap.Kind,
		Timestamp: snap.Timestamp,
		Name:      snap.Name,
	}

	if snap.Size >= 0 {
		size := snap.Size
		as.Size = &size
	}

	if snap.Metadata != nil {
		as.Metadata = snap.Metadata
	}

	return as
}
