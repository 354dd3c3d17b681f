package version

import (
	"fmt"
	"runtime"
)

var (
	version = "v0.1.0"
	// gitCommit is injected with -ldflags at release time
	gitCommit = "none"
)

func GetVersion() string {
	return version
}

// BuildInfo describes the compiled time information.
type BuildInfo struct {
	Version   string `json:"version,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("stationcore %s (commit %s, %s, %s)", b.Version, b.GitCommit, b.GoVersion, b.Platform)
}

// Get returns build info
func Get() BuildInfo {
	return BuildInfo{
		Version:   GetVersion(),
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
