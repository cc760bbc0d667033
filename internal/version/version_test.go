package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetInfo(t *testing.T) {
	origVersion, origBuild, origCommit, origGo := Version, BuildTime, GitCommit, GoVersion
	defer func() {
		Version, BuildTime, GitCommit, GoVersion = origVersion, origBuild, origCommit, origGo
	}()

	SetInfo("1.2.0", "2026-01-01T00:00:00Z", "abc123", "go1.26")

	assert.Equal(t, "1.2.0", Version)
	assert.Equal(t, "2026-01-01T00:00:00Z", BuildTime)
	assert.Equal(t, "abc123", GitCommit)
	assert.Equal(t, "go1.26", GoVersion)
	assert.Equal(t, "cmsjobs 1.2.0 (commit abc123, built 2026-01-01T00:00:00Z, go1.26)", String())
}

func TestSetInfo_EmptyValuesKeepCurrent(t *testing.T) {
	origVersion := Version
	defer func() { Version = origVersion }()

	SetInfo("", "", "", "")
	assert.Equal(t, origVersion, Version)
}
