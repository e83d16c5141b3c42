package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/timeshipd/timeship/internal/locator"
	"github.com/timeshipd/timeship/internal/serverapi"
	"github.com/timeshipd/timeship/storage"
)

// nodeParams are the query parameters recognized by node requests.
type nodeParams struct {
	snapshot   string
	download   bool
	typeFilter string
	filter     string
	search     string
	fields     string
}

func parseNodeParams(r *http.Request) (nodeParams, *apiError) {
	q := r.URL.Query()

	p := nodeParams{
		snapshot:   q.Get("snapshot"),
		typeFilter: q.Get("type"),
		filter:     q.Get("filter"),
		search:     q.Get("search"),
		fields:     q.Get("fields"),
	}

	switch p.typeFilter {
	case "", "file", "dir":
	default:
		return p, invalidParameterError(fmt.Sprintf("unsupported type filter %q", p.typeFilter))
	}

	if v := q.Get("download"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, invalidParameterError(fmt.Sprintf("unsupported download value %q", v))
		}

		p.download = b
	}

	if aerr := validateSortParams(q.Get("sort"), q.Get("order")); aerr != nil {
		return p, aerr
	}

	return p, nil
}

// validateSortParams accepts the sort/order parameters of the wire
// contract. Only the default ordering is implemented, so anything else
// is rejected rather than silently misordered.
func validateSortParams(sortBy, order string) *apiError {
	switch sortBy {
	case "", "basename":
	default:
		return invalidParameterError(fmt.Sprintf("unsupported sort %q", sortBy))
	}

	switch order {
	case "", "asc":
	default:
		return invalidParameterError(fmt.Sprintf("unsupported order %q", order))
	}

	return nil
}

// handleNodes serves the node endpoint: a directory listing for
// directories, node metadata for files when the client accepts JSON,
// and the raw byte stream otherwise.
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	params, aerr := parseNodeParams(r)
	if aerr != nil {
		sendAPIError(w, aerr)
		return
	}

	st, aerr := s.getStorage(vars["storage"])
	if aerr != nil {
		sendAPIError(w, aerr)
		return
	}

	loc, err := locator.Parse(vars["storage"], vars["path"], params.snapshot)
	if err != nil {
		sendAPIError(w, storageError(err, locator.Locator{Storage: vars["storage"]}))
		return
	}

	stater, ok := st.(storage.Stater)
	if !ok {
		sendAPIError(w, notImplementedError("storage does not support stat"))
		return
	}

	node, err := stater.Stat(ctx, loc)
	if err != nil {
		sendAPIError(w, storageError(err, loc))
		return
	}

	if node.Type == "dir" {
		listing, aerr := s.buildListing(ctx, st, loc, params)
		if aerr != nil {
			sendAPIError(w, aerr)
			return
		}

		sendJSON(ctx, w, listing)

		return
	}

	if acceptsJSON(r) {
		sendJSON(ctx, w, apiNode(node))
		return
	}

	s.streamFile(w, r, st, loc, node, params.download)
}

// acceptsJSON reports whether the client asked for a JSON rendition of
// the node rather than its bytes.
func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// streamFile writes the file bytes with the sniffed media type. Errors
// after the first byte terminate the response; the partial body is the
// observable failure.
func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, st storage.Storage, loc locator.Locator, node storage.Node, download bool) {
	ctx := r.Context()

	reader, ok := st.(storage.Reader)
	if !ok {
		sendAPIError(w, notImplementedError("storage does not support reading"))
		return
	}

	stream, err := reader.ReadStream(ctx, loc)
	if err != nil {
		sendAPIError(w, storageError(err, loc))
		return
	}
	defer stream.Close() //nolint:errcheck

	mimeType := node.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(node.Size, 10))

	if download {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Basename))
	}

	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, stream); err != nil {
		// headers are out; stop copying and abandon the response.
		log(ctx).Debugf("error streaming %v: %v", loc, err)
	}
}

func apiNode(node storage.Node) *serverapi.Node {
	n := &serverapi.Node{
		Path:         node.Path,
		Type:         node.Type,
		Basename:     node.Basename,
		Extension:    node.Extension,
		FileSize:     node.Size,
		LastModified: node.LastModified,
	}

	if node.MimeType != "" {
		mt := node.MimeType
		n.MimeType = &mt
	}

	return n
}
