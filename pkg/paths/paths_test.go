package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"splitstream/pkg/env"
)

func TestGetDataDirOverride(t *testing.T) {
	t.Setenv(env.DataDir, "/srv/splitstream")
	assert.Equal(t, "/srv/splitstream", GetDataDir())
}
