package server

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/timeshipd/timeship/internal/locator"
	"github.com/timeshipd/timeship/internal/rootedfs"
	"github.com/timeshipd/timeship/internal/serverapi"
	"github.com/timeshipd/timeship/snapshot/zfs"
	"github.com/timeshipd/timeship/storage"
)

// errorContentType is attached to every error envelope.
const errorContentType = "application/problem+json"

type apiError struct {
	httpErrorCode int
	title         string
	message       string
}

func (e *apiError) response() *serverapi.ErrorResponse {
	return &serverapi.ErrorResponse{
		Message: e.title + ": " + e.message,
		Status:  false,
	}
}

func requestError(message string) *apiError {
	return &apiError{http.StatusBadRequest, "Invalid Path", message}
}

func invalidSnapshotError(message string) *apiError {
	return &apiError{http.StatusBadRequest, "Invalid Snapshot", message}
}

func invalidParameterError(message string) *apiError {
	return &apiError{http.StatusBadRequest, "Invalid Parameter", message}
}

func storageNotFoundError(name string) *apiError {
	return &apiError{http.StatusNotFound, "Storage Not Found", fmt.Sprintf("invalid or unconfigured storage: %s", name)}
}

func notFoundError(message string) *apiError {
	return &apiError{http.StatusNotFound, "Not Found", message}
}

func notImplementedError(message string) *apiError {
	return &apiError{http.StatusNotImplemented, "Not Supported", message}
}

func internalServerError(err error) *apiError {
	return &apiError{http.StatusInternalServerError, "Internal Server Error", err.Error()}
}

// storageError maps typed errors from the storage layer to API errors.
// Messages reference the locator, never the on-disk path.
func storageError(err error, loc locator.Locator) *apiError {
	switch {
	case errors.Is(err, locator.ErrInvalidPath):
		return requestError(err.Error())
	case errors.Is(err, zfs.ErrInvalidSnapshot):
		return invalidSnapshotError(err.Error())
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, rootedfs.ErrNotFound),
		errors.Is(err, rootedfs.ErrEscapesRoot),
		errors.Is(err, zfs.ErrNoSnapshots):
		return notFoundError("node not found: " + loc.String())
	case errors.Is(err, storage.ErrNotSupported):
		return notImplementedError(err.Error())
	default:
		return internalServerError(errors.Errorf("unable to access %s", loc.String()))
	}
}
