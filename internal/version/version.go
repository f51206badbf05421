// Package version exposes build metadata stamped into the arena
// binaries.
//
// Release builds inject the values with ldflags:
//
//	go build -ldflags "-X github.com/hyperalpha/arena/internal/version.Version=1.0.0 \
//	                   -X github.com/hyperalpha/arena/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/hyperalpha/arena/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped builds report "dev".
package version

var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
