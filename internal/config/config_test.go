package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIntervals(t *testing.T) {
	t.Parallel()

	c := New()
	require.Equal(t, DefaultScanInterval, c.ScanInterval())
	require.Equal(t, DefaultImportInterval, c.ImportInterval())
}

func TestSetScanIntervalValidatesRange(t *testing.T) {
	t.Parallel()

	c := New()

	t.Run("below_minimum", func(t *testing.T) {
		_, err := c.SetScanInterval(4)
		require.Error(t, err)
	})

	t.Run("above_maximum", func(t *testing.T) {
		_, err := c.SetScanInterval(61)
		require.Error(t, err)
	})

	t.Run("in_range", func(t *testing.T) {
		changed, err := c.SetScanInterval(10)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, 10*time.Second, c.ScanInterval())
	})
}

func TestSetScanIntervalReturnsFalseWhenUnchanged(t *testing.T) {
	t.Parallel()

	c := New()
	changed, err := c.SetScanInterval(int(DefaultScanInterval.Seconds()))
	require.NoError(t, err)
	require.False(t, changed)
}

func TestResetScanIntervalRestoresDefault(t *testing.T) {
	t.Parallel()

	c := New()
	_, err := c.SetScanInterval(30)
	require.NoError(t, err)

	changed, err := c.ResetScanInterval()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, DefaultScanInterval, c.ScanInterval())
}

func TestWriteConfigOmitsDefault(t *testing.T) {
	t.Parallel()

	c := New()
	require.Empty(t, c.WriteConfig())

	_, err := c.SetScanInterval(20)
	require.NoError(t, err)
	require.Equal(t, []string{"bgp scan-time 20"}, c.WriteConfig())
}
