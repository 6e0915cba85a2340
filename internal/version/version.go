package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/vladislavdragonenkov/salesorders/internal/version.version=..."
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns the build version, commit and date. When the binary was built
// without ldflags, the commit and date fall back to the VCS stamp of the build.
func Info() (v, c, d string) {
	v, c, d = version, commit, date
	if c != "unknown" {
		return v, c, d
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v, c, d
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if s.Value != "" {
				c = s.Value
			}
		case "vcs.time":
			if s.Value != "" {
				d = s.Value
			}
		}
	}
	return v, c, d
}

// GetVersion returns the release version.
func GetVersion() string {
	return version
}

func String() string {
	v, c, d := Info()
	return fmt.Sprintf("version=%s commit=%s date=%s", v, c, d)
}
