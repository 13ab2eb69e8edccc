// Package version carries the build identity stamped in via ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with
// -ldflags "-X .../internal/version.Version=... -X .../internal/version.GitCommit=...".
// A binary built without them reports the dev defaults, which the updater
// treats as always outdated.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build identity block served by /api/status and --version.
type Info struct {
	Version   string `json:"version" example:"1.4.0" doc:"Release version"`
	GitCommit string `json:"git_commit" doc:"Git commit the binary was built from"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Toolchain that built the binary"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the bare version for cobra's --version and the OpenAPI info
// block.
func String() string {
	return Version
}
