package version

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "gibbon ")
	assert.Contains(t, info.String(), "Go Version:")
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		BuildDate: "2026-01-01T00:00:00Z",
		GitCommit: "abc123def456",
		GoVersion: "go1.24.4",
		Deps:      []Module{{Path: "github.com/apache/arrow-go/v18", Version: "v18.3.1"}},
	}

	str := info.String()
	assert.Contains(t, str, "gibbon v1.0.0\n")
	assert.Contains(t, str, "Build Date: 2026-01-01T00:00:00Z")
	assert.Contains(t, str, "Git Commit: abc123d")
	assert.Contains(t, str, "Go Version: go1.24.4")
	assert.Contains(t, str, "Arrow: v18.3.1")
}

func TestBuildInfoStringUnknownFields(t *testing.T) {
	info := BuildInfo{Version: "dev", GitCommit: unknownValue, BuildDate: unknownValue, Dirty: true}

	str := info.String()
	assert.Contains(t, str, "gibbon dev (dirty)")
	assert.NotContains(t, str, "Git Commit")
	assert.NotContains(t, str, "Build Date")
	assert.NotContains(t, str, "Arrow")
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "abc123d", BuildInfo{GitCommit: "abc123def456-dirty"}.ShortCommit())
	assert.Equal(t, "abc", BuildInfo{GitCommit: "abc"}.ShortCommit())
}

func TestDependency(t *testing.T) {
	info := BuildInfo{Deps: []Module{{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"}}}

	v, ok := info.Dependency("gopkg.in/yaml.v3")
	assert.True(t, ok)
	assert.Equal(t, "v3.0.1", v)

	_, ok = info.Dependency("github.com/missing/module")
	assert.False(t, ok)
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("starting", "build", BuildInfo{Version: "v0.3.0", GitCommit: "0123456789", GoVersion: "go1.24.4"})

	assert.Contains(t, buf.String(), "build.version=v0.3.0")
	assert.Contains(t, buf.String(), "build.commit=0123456")
	assert.Contains(t, buf.String(), "build.go=go1.24.4")
}

func TestIsRelease(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	tests := []struct {
		version string
		want    bool
	}{
		{"dev", false},
		{"v1.0.0", true},
		{"v1.0.0-rc.1", false},
		{"1.2.3", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.want, IsRelease())
		})
	}
}
