package decompress

import (
	"runtime"
	"testing"

	"github.com/jmgilman/go/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := newConfig()

	assert.Equal(t, 0, cfg.strip)
	assert.Nil(t, cfg.filter)
	assert.Nil(t, cfg.mapper)
	assert.Equal(t, Limits{}, cfg.limits, "no limits by default")
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.concurrency)
	assert.False(t, cfg.preserve)
	assert.True(t, cfg.localFS)
	require.NotNil(t, cfg.fs)
	require.NotNil(t, cfg.logger)

	names := make([]string, 0, len(cfg.plugins))
	for _, p := range cfg.plugins {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"tar", "tar.bz2", "tar.gz", "tar.zst", "zip"}, names)
}

func TestNewConfig_Options(t *testing.T) {
	memFS := billy.NewMemory()
	limits := Limits{MaxFiles: 3}

	cfg := newConfig(
		WithStrip(-2),
		WithConcurrency(0),
		WithLimits(limits),
		WithFilesystem(memFS),
		WithPreservePermissions(true),
		WithValidators(&countingValidator{}),
		WithValidators(NewFileCountValidator(5)),
		nil,
	)

	assert.Equal(t, 0, cfg.strip, "negative strip is treated as zero")
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.concurrency)
	assert.Equal(t, limits, cfg.limits)
	assert.Same(t, memFS, cfg.fs)
	assert.False(t, cfg.localFS)
	assert.True(t, cfg.preserve)

	assert.Len(t, cfg.validators, 2, "validators accumulate across options")

	popts := cfg.pluginOptions()
	assert.Equal(t, limits, popts.Limits)
	assert.Equal(t, cfg.validators, popts.Validators)
	assert.Same(t, cfg.logger, popts.Logger)
}

func TestWithPlugins(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		cfg := newConfig(WithPlugins())
		assert.Empty(t, cfg.plugins)
	})

	t.Run("copies the list", func(t *testing.T) {
		plugins := []FormatPlugin{TarPlugin(), ZipPlugin()}
		cfg := newConfig(WithPlugins(plugins...))
		plugins[0] = TarXzPlugin()

		require.Len(t, cfg.plugins, 2)
		assert.Equal(t, "tar", cfg.plugins[0].Name())
	})
}
