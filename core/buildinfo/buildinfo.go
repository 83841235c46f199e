// Package buildinfo carries version metadata stamped at link time:
//
//	-ldflags "-X github.com/m3rciful/kinobot/core/buildinfo.Version=v1.2.3
//	          -X github.com/m3rciful/kinobot/core/buildinfo.Commit=abcdef0"
//
// Unstamped builds fall back to the VCS settings recorded by the Go toolchain.
package buildinfo

import "runtime/debug"

var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the source revision.
	Commit = "local"
	// Date is the commit or build time in RFC3339.
	Date = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fillFromVCS(info.Settings)
}

func fillFromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "local" && s.Value != "" {
				Commit = s.Value
				if len(Commit) > 12 {
					Commit = Commit[:12]
				}
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}
