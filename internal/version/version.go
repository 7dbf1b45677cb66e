// Package version resolves the binary's version from, in order, the
// ldflags-injected override, the main module version, and the VCS stamp
// embedded by the Go toolchain.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule   = "pkt.systems/termrun"
	fallbackVersion = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/termrun/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes one build of the binary. Revision and Dirty come from the
// toolchain's VCS stamp and are empty for builds outside a checkout.
type Info struct {
	Module    string
	Version   string
	GoVersion string
	Revision  string
	Dirty     bool
}

// Build assembles the Info for the running binary.
func Build() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		info = nil
	}
	return buildFrom(info)
}

// Current returns the version string alone.
func Current() string {
	return Build().Version
}

// Module returns the main module path.
func Module() string {
	return Build().Module
}

func buildFrom(bi *debug.BuildInfo) Info {
	out := Info{Module: defaultModule, Version: fallbackVersion}
	var stamp vcsStamp
	if bi != nil {
		if path := strings.TrimSpace(bi.Main.Path); path != "" {
			out.Module = path
		}
		out.GoVersion = bi.GoVersion
		stamp = readStamp(bi)
		out.Revision = stamp.revision
		out.Dirty = stamp.dirty
	}
	switch {
	case strings.TrimSpace(buildVersion) != "":
		out.Version = strings.TrimSpace(buildVersion)
	case bi != nil && moduleVersion(bi) != "":
		out.Version = moduleVersion(bi)
	case stamp.usable():
		out.Version = stamp.pseudoVersion()
	}
	return out
}

func moduleVersion(bi *debug.BuildInfo) string {
	v := strings.TrimSpace(bi.Main.Version)
	if v == "" || v == "(devel)" {
		return ""
	}
	return v
}

type vcsStamp struct {
	revision string
	time     time.Time
	dirty    bool
}

func readStamp(bi *debug.BuildInfo) vcsStamp {
	var stamp vcsStamp
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			stamp.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				stamp.time = parsed
			}
		case "vcs.modified":
			stamp.dirty = setting.Value == "true"
		}
	}
	return stamp
}

func (s vcsStamp) usable() bool {
	return s.revision != "" && !s.time.IsZero()
}

// pseudoVersion mirrors the v0.0.0-yyyymmddhhmmss-abcdefabcdef form the Go
// module system uses for untagged commits.
func (s vcsStamp) pseudoVersion() string {
	rev := s.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + s.time.UTC().Format("20060102150405") + "-" + rev
}
