// Package version reports what build of vaultscribe is running.
package version

import (
	"runtime/debug"
	"strings"
)

// Set by the release build through -ldflags.
var (
	Version = "0.1.0"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

func (i Info) String() string {
	out := i.Version
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		out += " (" + commit
		if i.Dirty {
			out += ", modified"
		}
		if i.Date != "" {
			out += ", " + i.Date
		}
		out += ")"
	}
	return out
}

// Resolve combines the link-time values with the VCS stamp the Go
// toolchain embeds when building from a checkout.
func Resolve() Info {
	return resolve(Version, Commit, Date, debug.ReadBuildInfo)
}

func resolve(base, commit, date string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: strings.TrimPrefix(base, "v"), Commit: commit, Date: date}
	if info.Version == "" {
		info.Version = "0.0.0"
	}

	build, ok := read()
	if !ok || build == nil {
		return info
	}
	if mod := build.Main.Version; mod != "" && mod != "(devel)" && base == "" {
		info.Version = strings.TrimPrefix(mod, "v")
	}
	for _, s := range build.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}
