package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("BOARDSYNC_UTIL_TEST", "")
	assert.Equal(t, "fallback", EnvOrDefault("BOARDSYNC_UTIL_TEST", "fallback"))
	t.Setenv("BOARDSYNC_UTIL_TEST", "set")
	assert.Equal(t, "set", EnvOrDefault("BOARDSYNC_UTIL_TEST", "fallback"))
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("BOARDSYNC_UTIL_DUR", "")
	d, err := EnvDuration("BOARDSYNC_UTIL_DUR", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	t.Setenv("BOARDSYNC_UTIL_DUR", "250ms")
	d, err = EnvDuration("BOARDSYNC_UTIL_DUR", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	t.Setenv("BOARDSYNC_UTIL_DUR", "soon")
	_, err = EnvDuration("BOARDSYNC_UTIL_DUR", time.Second)
	assert.ErrorContains(t, err, "BOARDSYNC_UTIL_DUR")
}
