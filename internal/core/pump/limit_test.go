package pump

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimitTaggedVariants(t *testing.T) {
	fixed := Fixed(2048)
	size, ok := fixed.Value()
	require.True(t, ok)
	require.EqualValues(t, 2048, size)
	require.False(t, fixed.IsAdaptive())
	require.Equal(t, "2048/period", fixed.String())

	adaptive := Adaptive()
	_, ok = adaptive.Value()
	require.False(t, ok)
	require.True(t, adaptive.IsAdaptive())
	require.Equal(t, "adaptive", adaptive.String())

	var zero Limit
	_, ok = zero.Value()
	require.False(t, ok)
	require.False(t, zero.IsAdaptive(), "zero value selects the default fixed limit, not adaptive")
}
