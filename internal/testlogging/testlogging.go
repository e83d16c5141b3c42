// Package testlogging implements logger that writes to testing.T log.
package testlogging

import (
	"context"
	"testing"

	"github.com/timeshipd/timeship/internal/logging"
)

// Context returns a context with attached logger that emits all log entries to go testing.T log output.
func Context(t *testing.T) context.Context {
	t.Helper()

	return logging.WithLogger(context.Background(), logging.Printf(t.Logf))
}
