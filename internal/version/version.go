// Package version holds build metadata, set at link time with
// -ldflags "-X github.com/ryryry-3302/OpticalFlowOnESP/internal/version.GitSHA=...".
package version

import "fmt"

var (
	// Version is the flowbench release.
	Version = "0.1.0"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats all build metadata on one line.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
