// Package version exposes the engine's build identity, stamped in via
// ldflags by the release pipeline.
package version

import (
	"fmt"
	"runtime"
)

// Version is "dev" for local builds; releases override it with
// -X .../pkg/version.Version=<tag>.
var Version = "dev"

var (
	// Commit is the short git commit hash of the build.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// String renders the full build identity on one line, for --version
// output and startup logs.
func String() string {
	return fmt.Sprintf("cortexrag %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}
