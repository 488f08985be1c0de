// Package buildinfo reports how the running binary was built.
//
// BuildTime and GitCommit are injected with ldflags:
//
//	go build -ldflags "-X github.com/nomis52/vetflow/buildinfo.gitCommit=$(git rev-parse HEAD)"
//
// The module version and Go version come from the binary's embedded build
// information.
package buildinfo

import "runtime/debug"

// Properties describes the running binary.
type Properties struct {
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	Version   string `json:"version,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

var (
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties.
func Get() Properties {
	p := Properties{
		BuildTime: buildTime,
		GitCommit: gitCommit,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		p.Version = info.Main.Version
		p.GoVersion = info.GoVersion
	}
	return p
}
