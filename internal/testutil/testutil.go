// Package testutil contains test utilities.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TempDirectory returns a temporary directory removed when the test completes.
func TempDirectory(tb testing.TB) string {
	tb.Helper()

	d, err := os.MkdirTemp("", "timeship-test")
	require.NoError(tb, err)

	tb.Cleanup(func() {
		os.RemoveAll(d) //nolint:errcheck
	})

	return d
}
