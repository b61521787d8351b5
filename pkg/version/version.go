package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version returns the released fetchverify version.
func Version() string {
	return strings.TrimSpace(versionFile)
}

// BuildID is the version plus the VCS revision when the binary carries one.
func BuildID() string {
	v := Version()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return withRevision(v, rev, dirty)
}

func withRevision(v, rev string, dirty bool) string {
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return v + "+" + rev
}
