package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func stampedInfo(modified string) *debug.BuildInfo {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	return &debug.BuildInfo{
		GoVersion: "go1.25.2",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: modified},
		},
	}
}

func TestBuildPrefersLDFlagsVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3"
	t.Cleanup(func() { buildVersion = old })

	info := buildFrom(stampedInfo("false"))
	if info.Version != "v1.2.3" {
		t.Fatalf("expected ldflags version, got %q", info.Version)
	}
	if info.Revision != "1234567890abcdef" {
		t.Fatalf("expected revision from stamp, got %q", info.Revision)
	}
}

func TestBuildUsesModuleVersion(t *testing.T) {
	bi := stampedInfo("false")
	bi.Main.Version = "v0.9.0"
	info := buildFrom(bi)
	if info.Version != "v0.9.0" {
		t.Fatalf("expected module version, got %q", info.Version)
	}
}

func TestBuildFallsBackToPseudoVersion(t *testing.T) {
	info := buildFrom(stampedInfo("true"))
	if want := "v0.0.0-20250102030405-1234567890ab"; info.Version != want {
		t.Fatalf("expected pseudo version %q, got %q", want, info.Version)
	}
	if !info.Dirty {
		t.Fatalf("expected dirty build")
	}
}

func TestBuildWithoutBuildInfo(t *testing.T) {
	info := buildFrom(nil)
	if info.Version != fallbackVersion {
		t.Fatalf("expected fallback version, got %q", info.Version)
	}
	if info.Module != defaultModule {
		t.Fatalf("expected default module, got %q", info.Module)
	}
}

func TestStampUnusableWithoutTime(t *testing.T) {
	stamp := vcsStamp{revision: "abc"}
	if stamp.usable() {
		t.Fatalf("expected stamp without time to be unusable")
	}
}
