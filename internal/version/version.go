// Package version reports the trackreview build, set with -ldflags at link time.
package version

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the source commit.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build for the version command and /health.
func String() string {
	return fmt.Sprintf("trackreview %s (%s, built %s)", Version, GitSHA, BuildTime)
}
