package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/grantscout/internal/config"
)

func TestAllocatorOptions(t *testing.T) {
	t.Run("defaults are extended, not replaced", func(t *testing.T) {
		opts, err := AllocatorOptions(config.BrowserConfig{})
		require.NoError(t, err)
		assert.Greater(t, len(opts), len(chromedp.DefaultExecAllocatorOptions))
	})

	t.Run("extra args", func(t *testing.T) {
		withArgs, err := AllocatorOptions(config.BrowserConfig{Args: []string{"--lang=en-US", "mute-audio", "--"}})
		require.NoError(t, err)
		without, err := AllocatorOptions(config.BrowserConfig{})
		require.NoError(t, err)
		assert.Len(t, withArgs, len(without)+2)
	})

	t.Run("viewport requires both dimensions", func(t *testing.T) {
		full, err := AllocatorOptions(config.BrowserConfig{Viewport: map[string]int{"width": 1280, "height": 1100}})
		require.NoError(t, err)
		partial, err := AllocatorOptions(config.BrowserConfig{Viewport: map[string]int{"width": 1280}})
		require.NoError(t, err)
		assert.Len(t, full, len(partial)+1)
	})

	t.Run("user data dir", func(t *testing.T) {
		opts, err := AllocatorOptions(config.BrowserConfig{UserDataDir: "~/.grantscout/profile"})
		require.NoError(t, err)
		base, err := AllocatorOptions(config.BrowserConfig{})
		require.NoError(t, err)
		assert.Len(t, opts, len(base)+1)

		_, err = AllocatorOptions(config.BrowserConfig{UserDataDir: "~someone/profile"})
		assert.ErrorContains(t, err, "failed to expand user data dir")
	})
}
