// Package serverapi contains the wire types of the timeship API.
package serverapi

// Node is one filesystem entry.
type Node struct {
	Path         string  `json:"path"`
	Type         string  `json:"type"`
	Basename     string  `json:"basename"`
	Extension    string  `json:"extension"`
	FileSize     int64   `json:"file_size"`
	LastModified int64   `json:"last_modified"`
	MimeType     *string `json:"mime_type,omitempty"`
}

// NodeList is the response to a directory listing request.
type NodeList struct {
	Dirname   string   `json:"dirname"`
	ReadOnly  bool     `json:"read_only"`
	Storages  []string `json:"storages"`
	Files     []Node   `json:"files"`
	TotalSize *int64   `json:"total_size,omitempty"`
}

// Snapshot is one point-in-time version of a node.
type Snapshot struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Name      string                 `json:"name"`
	Size      *int64                 `json:"size,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SnapshotList is the response to a snapshot enumeration request.
type SnapshotList struct {
	Storage   string     `json:"storage"`
	Path      string     `json:"path"`
	Snapshots []Snapshot `json:"snapshots"`
}

// StoragesResponse lists the registered storage names.
type StoragesResponse struct {
	Storages []string `json:"storages"`
}

// ErrorResponse is the error envelope attached to every non-2xx API
// response.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  bool   `json:"status"`
}
