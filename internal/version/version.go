// Package version reports what build of the harness is running. The linker
// sets version and gitcommit; otherwise module build info is used.
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	version   = "edge"
	gitcommit string
)

func Version() string {
	return version
}

// Commit returns the VCS revision, falling back to the one the go tool
// stamped into the binary.
func Commit() string {
	if gitcommit != "" {
		return gitcommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

// KeysAndValues is meant for a structured startup log line.
func KeysAndValues() []interface{} {
	return []interface{}{"version", Version(), "commit", Commit(), "go", runtime.Version()}
}
