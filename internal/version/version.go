// Package version exposes build metadata stamped in at link time.
package version

// Set via -ldflags at build time
var (
	// Version is the semantic version or tag of this build
	Version = "dev"
	// Commit is the git commit hash of this build
	Commit = "unknown"
	// BuildTime is the UTC timestamp of this build
	BuildTime = "unknown"
)
