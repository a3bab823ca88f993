package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the version for logs and --version output.
func String() string {
	return fmt.Sprintf("skystack %s (%s, built %s)", Version, GitSHA, BuildTime)
}
