package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentDefaults(t *testing.T) {
	prevV, prevC := Version, Commit
	t.Cleanup(func() { Version, Commit = prevV, prevC })

	Version, Commit = "  ", "abc123"
	info := Current()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.NotEmpty(t, info.GoVersion)
}
