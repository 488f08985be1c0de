package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	p := Get()
	assert.Equal(t, "unknown", p.BuildTime)
	assert.Equal(t, "unknown", p.GitCommit)
	assert.Equal(t, runtime.Version(), p.GoVersion)
}
