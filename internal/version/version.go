// Package version reports build metadata. Version, Commit and Date are set with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

//nolint:gochecknoglobals // ldflags targets.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the build description printed by `hwfinder version` and logged at startup.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build info. A binary built without ldflags falls back to the VCS
// revision the Go toolchain stamped into it.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Built: Date, GoVersion: runtime.Version()}
	if info.Commit != "unknown" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.time":
				if info.Built == "unknown" {
					info.Built = s.Value
				}
			}
		}
	}
	return info
}

// String renders "hwfinder <version> (<commit>)".
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("hwfinder %s (%s)", i.Version, commit)
}
