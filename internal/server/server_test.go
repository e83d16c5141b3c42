package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/timeshipd/timeship/internal/server"
	"github.com/timeshipd/timeship/internal/serverapi"
	"github.com/timeshipd/timeship/internal/testutil"
	"github.com/timeshipd/timeship/storage"
	"github.com/timeshipd/timeship/storage/localfs"
)

// startServer serves a small tree with two snapshots of it:
//
//	docs/sub/              (empty directory)
//	docs/note.txt          "current"
//	docs/report.pdf        pdf header
//	README.md              "# readme"
//
//	snapshot auto-hourly-2025-11-09_13-30: docs/note.txt "recent"
//	snapshot auto-daily-2025-11-09_00-00:  docs/note.txt "old"
func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := testutil.TempDirectory(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "note.txt"), []byte("current"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "report.pdf"), []byte("%PDF-1.7 fake"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# readme"), 0o644))

	for name, content := range map[string]string{
		"auto-hourly-2025-11-09_13-30": "recent",
		"auto-daily-2025-11-09_00-00":  "old",
	} {
		snapDocs := filepath.Join(dir, ".zfs", "snapshot", name, "docs")
		require.NoError(t, os.MkdirAll(snapDocs, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(snapDocs, "note.txt"), []byte(content), 0o644))
	}

	st, err := localfs.New(dir)
	require.NoError(t, err)

	registry := storage.NewRegistry()
	require.NoError(t, registry.Register("local", st))
	require.NoError(t, registry.SetDefault("local"))

	router := mux.NewRouter()
	server.New(registry, server.Options{}).SetupAPIHandlers(router.PathPrefix("/api").Subrouter())

	ts := httptest.NewServer(router)

	t.Cleanup(func() {
		ts.Close()
		st.Close() //nolint:errcheck
	})

	return ts
}

// getJSON fetches a URL and decodes the response body into v, returning
// the response for header and status assertions.
func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck

	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))

	return resp
}

func requireAPIError(t *testing.T, url string, wantStatus int) serverapi.ErrorResponse {
	t.Helper()

	var envelope serverapi.ErrorResponse

	resp := getJSON(t, url, &envelope)
	require.Equal(t, wantStatus, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	require.False(t, envelope.Status)
	require.NotEmpty(t, envelope.Message)

	return envelope
}

func basenames(files []serverapi.Node) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Basename)
	}

	return names
}

func TestStorages(t *testing.T) {
	ts := startServer(t)

	var got serverapi.StoragesResponse

	resp := getJSON(t, ts.URL+"/api/storages", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Equal(t, []string{"local"}, got.Storages)
}

func TestListDirectory(t *testing.T) {
	ts := startServer(t)

	var listing serverapi.NodeList

	resp := getJSON(t, ts.URL+"/api/storages/local/nodes/docs", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "docs", listing.Dirname)
	require.True(t, listing.ReadOnly)
	require.Equal(t, []string{"local"}, listing.Storages)

	// directories first, then files by basename
	require.Equal(t, []string{"sub", "note.txt", "report.pdf"}, basenames(listing.Files))

	note := listing.Files[1]
	require.Equal(t, "docs/note.txt", note.Path)
	require.Equal(t, "file", note.Type)
	require.Equal(t, "txt", note.Extension)
	require.Equal(t, int64(len("current")), note.FileSize)
	require.NotZero(t, note.LastModified)
	require.NotNil(t, note.MimeType)
	require.Equal(t, "text/plain; charset=utf-8", *note.MimeType)

	sub := listing.Files[0]
	require.Equal(t, "dir", sub.Type)
	require.Zero(t, sub.FileSize)
	require.Nil(t, sub.MimeType)
}

func TestListRootSpellings(t *testing.T) {
	ts := startServer(t)

	// all spellings of the root address the same directory
	for _, suffix := range []string{"/api/storages/local/nodes", "/api/storages/local/nodes/"} {
		var listing serverapi.NodeList

		resp := getJSON(t, ts.URL+suffix, &listing)
		require.Equal(t, http.StatusOK, resp.StatusCode, suffix)
		require.Empty(t, listing.Dirname, suffix)
		require.Contains(t, basenames(listing.Files), "docs", suffix)
		require.Contains(t, basenames(listing.Files), "README.md", suffix)
	}
}

func TestListFilters(t *testing.T) {
	ts := startServer(t)

	cases := map[string][]string{
		"?type=file":   {"note.txt", "report.pdf"},
		"?type=dir":    {"sub"},
		"?filter=*.txt": {"note.txt"},
		"?search=NOTE": {"note.txt"},
		"?type=file&search=report": {"report.pdf"},
	}

	for query, want := range cases {
		var listing serverapi.NodeList

		resp := getJSON(t, ts.URL+"/api/storages/local/nodes/docs"+query, &listing)
		require.Equal(t, http.StatusOK, resp.StatusCode, query)
		require.Equal(t, want, basenames(listing.Files), query)
	}
}

func TestListTotalSize(t *testing.T) {
	ts := startServer(t)

	var listing serverapi.NodeList

	resp := getJSON(t, ts.URL+"/api/storages/local/nodes/docs?fields=(total_size)", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, listing.TotalSize)
	require.Equal(t, int64(len("current")+len("%PDF-1.7 fake")), *listing.TotalSize)

	// without the selector the sum is not computed
	var plain serverapi.NodeList

	getJSON(t, ts.URL+"/api/storages/local/nodes/docs", &plain)
	require.Nil(t, plain.TotalSize)
}

func TestReadFile(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/api/storages/local/nodes/docs/note.txt")
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, "7", resp.Header.Get("Content-Length"))
	require.Empty(t, resp.Header.Get("Content-Disposition"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "current", string(data))
}

func TestReadFileAcceptJSON(t *testing.T) {
	ts := startServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/storages/local/nodes/docs/note.txt", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var node serverapi.Node

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&node))
	require.Equal(t, "docs/note.txt", node.Path)
	require.Equal(t, "file", node.Type)
	require.Equal(t, int64(len("current")), node.FileSize)
}

func TestDownloadDisposition(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/api/storages/local/nodes/docs/note.txt?download=true")
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `attachment; filename="note.txt"`, resp.Header.Get("Content-Disposition"))
}

func TestTraversalRefused(t *testing.T) {
	ts := startServer(t)

	for _, path := range []string{
		"/api/storages/local/nodes/../outside.txt",
		"/api/storages/local/nodes/docs/../../outside.txt",
		"/api/storages/local/nodes/%2e%2e/outside.txt",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		require.NoError(t, err, path)

		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		require.NotContains(t, string(body), "outside.txt", path)
	}
}

func TestNodeNotFound(t *testing.T) {
	ts := startServer(t)

	envelope := requireAPIError(t, ts.URL+"/api/storages/local/nodes/missing.txt", http.StatusNotFound)
	require.Equal(t, "Not Found: node not found: local://missing.txt", envelope.Message)
}

func TestStorageNotFound(t *testing.T) {
	ts := startServer(t)

	requireAPIError(t, ts.URL+"/api/storages/tape/nodes", http.StatusNotFound)
}

func TestInvalidParameters(t *testing.T) {
	ts := startServer(t)

	for _, query := range []string{
		"?type=link",
		"?download=maybe",
		"?sort=size",
		"?order=desc",
	} {
		requireAPIError(t, ts.URL+"/api/storages/local/nodes/docs"+query, http.StatusBadRequest)
	}

	for _, query := range []string{
		"?limit=-1",
		"?limit=abc",
		"?offset=-5",
		"?sort=timestamp",
	} {
		requireAPIError(t, ts.URL+"/api/storages/local/snapshots/docs"+query, http.StatusBadRequest)
	}
}

func TestSnapshotList(t *testing.T) {
	ts := startServer(t)

	var got serverapi.SnapshotList

	resp := getJSON(t, ts.URL+"/api/storages/local/snapshots/docs/note.txt", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "local", got.Storage)
	require.Equal(t, "docs/note.txt", got.Path)
	require.Len(t, got.Snapshots, 2)

	// newest first
	require.Equal(t, "zfs:auto-hourly-2025-11-09_13-30", got.Snapshots[0].ID)
	require.Equal(t, "zfs:auto-daily-2025-11-09_00-00", got.Snapshots[1].ID)
	require.Greater(t, got.Snapshots[0].Timestamp, got.Snapshots[1].Timestamp)
	require.Equal(t, "zfs", got.Snapshots[0].Type)
	require.Equal(t, "auto-hourly-2025-11-09_13-30", got.Snapshots[0].Name)
	require.Nil(t, got.Snapshots[0].Size)
	require.Contains(t, got.Snapshots[0].Metadata, "zfs_root")
}

func TestSnapshotPagination(t *testing.T) {
	ts := startServer(t)

	var first serverapi.SnapshotList

	getJSON(t, ts.URL+"/api/storages/local/snapshots/docs?limit=1", &first)
	require.Len(t, first.Snapshots, 1)
	require.Equal(t, "zfs:auto-hourly-2025-11-09_13-30", first.Snapshots[0].ID)

	var second serverapi.SnapshotList

	getJSON(t, ts.URL+"/api/storages/local/snapshots/docs?limit=1&offset=1", &second)
	require.Len(t, second.Snapshots, 1)
	require.Equal(t, "zfs:auto-daily-2025-11-09_00-00", second.Snapshots[0].ID)

	var beyond serverapi.SnapshotList

	getJSON(t, ts.URL+"/api/storages/local/snapshots/docs?offset=10", &beyond)
	require.NotNil(t, beyond.Snapshots)
	require.Empty(t, beyond.Snapshots)
}

func TestSnapshotScopedRead(t *testing.T) {
	ts := startServer(t)

	cases := map[string]string{
		"zfs:auto-hourly-2025-11-09_13-30": "recent",
		"zfs:auto-daily-2025-11-09_00-00":  "old",
	}

	for id, want := range cases {
		resp, err := http.Get(ts.URL + "/api/storages/local/nodes/docs/note.txt?snapshot=" + strings.ReplaceAll(id, ":", "%3A"))
		require.NoError(t, err, id)

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		require.NoError(t, err, id)

		require.Equal(t, http.StatusOK, resp.StatusCode, id)
		require.Equal(t, want, string(data), id)
	}
}

func TestSnapshotScopedListing(t *testing.T) {
	ts := startServer(t)

	var listing serverapi.NodeList

	resp := getJSON(t, ts.URL+"/api/storages/local/nodes/docs?snapshot=zfs%3Aauto-daily-2025-11-09_00-00", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// report.pdf and sub/ did not exist at snapshot time
	require.Equal(t, []string{"note.txt"}, basenames(listing.Files))
}

func TestSnapshotErrors(t *testing.T) {
	ts := startServer(t)

	// malformed id
	requireAPIError(t, ts.URL+"/api/storages/local/nodes/docs?snapshot=bogus", http.StatusBadRequest)

	// well-formed but nonexistent snapshot
	requireAPIError(t, ts.URL+"/api/storages/local/nodes/docs?snapshot=zfs%3Anope", http.StatusNotFound)

	// node absent from an existing snapshot
	requireAPIError(t,
		ts.URL+"/api/storages/local/nodes/README.md?snapshot=zfs%3Aauto-daily-2025-11-09_00-00",
		http.StatusNotFound)
}

func TestWriteEndpointsNotImplemented(t *testing.T) {
	ts := startServer(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/storages/local/nodes"},
		{http.MethodPost, "/api/storages/local/nodes/docs/new.txt"},
		{http.MethodDelete, "/api/storages/local/nodes/docs/note.txt"},
		{http.MethodPatch, "/api/storages/local/nodes/docs/note.txt"},
		{http.MethodPost, "/api/storages/local/copies"},
		{http.MethodPost, "/api/storages/local/moves"},
		{http.MethodGet, "/api/storages/local/archives"},
		{http.MethodPost, "/api/storages/local/archives/docs"},
	}

	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		var envelope serverapi.ErrorResponse

		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		resp.Body.Close() //nolint:errcheck

		require.Equal(t, http.StatusNotImplemented, resp.StatusCode, "%v %v", tc.method, tc.path)
		require.False(t, envelope.Status)
		require.Contains(t, envelope.Message, "Not Supported", "%v %v", tc.method, tc.path)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := startServer(t)

	requireAPIError(t, ts.URL+"/api/no/such/route", http.StatusNotFound)
}
