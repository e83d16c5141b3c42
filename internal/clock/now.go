// Package clock provides indirection for accessing current time.
package clock

import "time"

// Now returns current wall clock time.
func Now() time.Time {
	return time.Now()
}

// Since returns time since the given timestamp.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
