// Package version exposes build-time version information.
// Values are overridden at build time via -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the binary ("dev" for local builds).
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "unknown"
	// Date is the build date in RFC 3339 format.
	Date = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("hound %s (commit %s, built %s)", Version, Commit, Date)
}
