// Package version exposes build provenance stamped in via ldflags:
//
//	go build -ldflags "-X github.com/stratumdb/stratum/version.Version=..."
package version

import (
	"fmt"
	"runtime"
)

// Set at build time; the zero build is a dev build.
var (
	Version    = "dev"
	CommitHash = "dev"
	BuildTime  = "unknown"
)

// Info is the full build record, JSON-ready for the version command.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get snapshots the stamped build variables plus the runtime platform.
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// IsRelease reports whether the binary was built from a tagged version.
func (i Info) IsRelease() bool {
	return i.Version != "dev"
}

// String renders the one-line human form.
func (i Info) String() string {
	version := "dev"
	if i.IsRelease() {
		version = i.Version
	}
	return fmt.Sprintf("stratum %s (commit %s, built %s)", version, i.CommitHash, i.BuildTime)
}

// Short is the abbreviated commit hash.
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
