//nolint:gochecknoglobals // version info set via ldflags
package version

import "runtime"

// These variables are intended to be set via -ldflags at build time.
// Example:
//
//	-X github.com/bavix/presence/internal/version.Version=v1.2.3 \
//	-X github.com/bavix/presence/internal/version.BuildTime=2025-09-24T12:00:00Z
var (
	Version   = "dev"
	BuildTime = ""
)

// Info is the build identity reported by the CLI and the stats endpoint.
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	Go        string `json:"go"`
}

func Get() Info {
	return Info{Version: Version, BuildTime: BuildTime, Go: runtime.Version()}
}

func (i Info) String() string {
	if i.BuildTime == "" {
		return i.Version
	}

	return i.Version + " (" + i.BuildTime + ")"
}
