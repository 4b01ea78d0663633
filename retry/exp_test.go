package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testExpConfig = ExpConfig{
	Min:   1 * time.Minute,
	Max:   10 * time.Minute,
	Scale: 2.0,
}

func TestBackoff(t *testing.T) {
	backoff := NewExpBackoff(testExpConfig)
	require.Equal(t, testExpConfig.Min, backoff.Backoff())
	require.Equal(t, 2*testExpConfig.Min, backoff.Backoff())
	require.Equal(t, 4*testExpConfig.Min, backoff.Backoff())
	require.Equal(t, 8*testExpConfig.Min, backoff.Backoff())
	require.Equal(t, testExpConfig.Max, backoff.Backoff())

	backoff.Reset()
	require.Equal(t, testExpConfig.Min, backoff.Backoff())
}

func TestExpDelays(t *testing.T) {
	delays := testExpConfig.Delays()
	d, ok := delays()
	require.True(t, ok)
	require.Zero(t, d)
	d, ok = delays()
	require.True(t, ok)
	require.Equal(t, testExpConfig.Min, d)
}

func TestExpDelaysLimited(t *testing.T) {
	c := testExpConfig
	c.MaxAttempts = 2
	c.Instant = true
	delays := c.Delays()
	d, ok := delays()
	require.True(t, ok)
	require.Equal(t, c.Min, d)
	_, ok = delays()
	require.True(t, ok)
	_, ok = delays()
	require.False(t, ok)
}
