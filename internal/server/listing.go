package server

import (
	"context"
	"sort"
	"strings"

	"github.com/timeshipd/timeship/internal/locator"
	"github.com/timeshipd/timeship/internal/serverapi"
	"github.com/timeshipd/timeship/storage"
)

// totalSizeField is the fields selector requesting the recursive size sum.
const totalSizeField = "(total_size)"

// buildListing runs the listing pipeline: enumerate, sort, filter,
// optional total size, serialize.
func (s *Server) buildListing(ctx context.Context, st storage.Storage, loc locator.Locator, params nodeParams) (*serverapi.NodeList, *apiError) {
	lister, ok := st.(storage.Lister)
	if !ok {
		return nil, notImplementedError("storage does not support listing")
	}

	nodes, err := lister.List(ctx, loc)
	if err != nil {
		return nil, storageError(err, loc)
	}

	sortNodes(nodes)
	nodes = filterNodes(nodes, params)

	files := make([]serverapi.Node, 0, len(nodes))
	for _, node := range nodes {
		files = append(files, *apiNode(node))
	}

	listing := &serverapi.NodeList{
		Dirname:  loc.Path,
		ReadOnly: true,
		Storages: s.registry.Names(),
		Files:    files,
	}

	if strings.Contains(params.fields, totalSizeField) {
		sizer, ok := st.(storage.TreeSizer)
		if !ok {
			return nil, notImplementedError("storage does not support total size")
		}

		totalSize, err := sizer.TotalSize(ctx, loc)
		if err != nil {
			// fail-soft: the listing is still useful without the sum
			log(ctx).Warnf("unable to compute total size of %v: %v", loc, err)
		} else {
			listing.TotalSize = &totalSize
		}
	}

	return listing, nil
}

// sortNodes orders directories before files, then by basename
// ascending. The sort is stable.
func sortNodes(nodes []storage.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type == "dir"
		}

		return nodes[i].Basename < nodes[j].Basename
	})
}

// filterNodes applies the type, filter and search parameters. Filters
// run after sorting and never reorder.
func filterNodes(nodes []storage.Node, params nodeParams) []storage.Node {
	if params.typeFilter != "" {
		nodes = keep(nodes, func(n storage.Node) bool {
			return n.Type == params.typeFilter
		})
	}

	if params.filter != "" {
		// asterisks are stripped; full glob matching is a future extension
		pattern := strings.Trim(params.filter, "*")
		nodes = keep(nodes, func(n storage.Node) bool {
			return strings.Contains(n.Basename, pattern)
		})
	}

	if params.search != "" {
		query := strings.ToLower(params.search)
		nodes = keep(nodes, func(n storage.Node) bool {
			return strings.Contains(strings.ToLower(n.Basename), query)
		})
	}

	return nodes
}

func keep(nodes []storage.Node, pred func(storage.Node) bool) []storage.Node {
	kept := nodes[:0:0]

	for _, n := range nodes {
		if pred(n) {
			kept = append(kept, n)
		}
	}

	return kept
}
