// Package version carries build metadata set with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release of the controller.
	Version = "dev"
	// GitSHA is the commit it was built from.
	GitSHA = "unknown"
	// BuildTime is when it was built.
	BuildTime = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("cybot %s (%s, built %s)", Version, GitSHA, BuildTime)
}
