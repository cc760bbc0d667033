// Package version holds build information injected at link time.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// SetInfo overrides the build information. Empty values are ignored.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String renders a one-line summary for logs and the version command.
func String() string {
	return fmt.Sprintf("cmsjobs %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}
