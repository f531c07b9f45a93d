package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/paveg/prepkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, "_cat", cfg.IndexedSuffix)
	assert.Equal(t, "_vec", cfg.OneHotSuffix)
	assert.Equal(t, "features", cfg.FeaturesColumn)
	assert.Equal(t, "label", cfg.LabelColumn)
	assert.Equal(t, " ", cfg.StripChars)
	assert.Equal(t, config.OrderFrequencyDesc, cfg.StringOrderType)
	assert.Equal(t, config.HandleError, cfg.HandleInvalid)
	assert.False(t, cfg.OneHotDropLast)
	assert.Equal(t, 0, cfg.WorkerPoolSize) // 0 means auto-detect
	assert.Equal(t, 1000, cfg.ParallelThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, config.LogFormatText, cfg.LogFormat)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:          "valid config",
			mutate:        func(*config.Config) {},
			expectedError: "",
		},
		{
			name:          "empty indexed suffix",
			mutate:        func(c *config.Config) { c.IndexedSuffix = "" },
			expectedError: "IndexedSuffix must not be empty",
		},
		{
			name:          "label equals features",
			mutate:        func(c *config.Config) { c.LabelColumn = c.FeaturesColumn },
			expectedError: `FeaturesColumn and LabelColumn must differ, both are "features"`,
		},
		{
			name:          "unknown order type",
			mutate:        func(c *config.Config) { c.StringOrderType = "random" },
			expectedError: `got "random"`,
		},
		{
			name:          "unknown invalid handling",
			mutate:        func(c *config.Config) { c.HandleInvalid = "ignore" },
			expectedError: `HandleInvalid must be one of error, skip, keep, got "ignore"`,
		},
		{
			name:          "negative worker pool size",
			mutate:        func(c *config.Config) { c.WorkerPoolSize = -1 },
			expectedError: "WorkerPoolSize must be non-negative, got -1",
		},
		{
			name:          "zero parallel threshold",
			mutate:        func(c *config.Config) { c.ParallelThreshold = 0 },
			expectedError: "ParallelThreshold must be positive, got 0",
		},
		{
			name:          "bad log format",
			mutate:        func(c *config.Config) { c.LogFormat = "xml" },
			expectedError: `LogFormat must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := config.Config{IndexedSuffix: "_idx", OneHotDropLast: true}.WithDefaults()

	assert.Equal(t, "_idx", cfg.IndexedSuffix)
	assert.Equal(t, "_vec", cfg.OneHotSuffix)
	assert.Equal(t, config.HandleError, cfg.HandleInvalid)
	assert.True(t, cfg.OneHotDropLast)
	require.NoError(t, cfg.Validate())
}

func TestConfig_LoadFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "prepkit.yaml")
		content := "indexed_suffix: _idx\nhandle_invalid: keep\none_hot_drop_last: true\nworker_pool_size: 2\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := config.LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "_idx", cfg.IndexedSuffix)
		assert.Equal(t, config.HandleKeep, cfg.HandleInvalid)
		assert.True(t, cfg.OneHotDropLast)
		assert.Equal(t, 2, cfg.WorkerPoolSize)
		assert.Equal(t, "features", cfg.FeaturesColumn)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "prepkit.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"label_column": "y", "log_format": "json"}`), 0o600))

		cfg, err := config.LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "y", cfg.LabelColumn)
		assert.Equal(t, config.LogFormatJSON, cfg.LogFormat)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "prepkit.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

		_, err := config.LoadFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported config file format: .toml")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadFromFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestConfig_LoadFromJSON(t *testing.T) {
	cfg, err := config.LoadFromJSON([]byte(`{"string_order_type": "alphabetAsc"}`))
	require.NoError(t, err)
	assert.Equal(t, config.OrderAlphabetAsc, cfg.StringOrderType)

	_, err = config.LoadFromJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("PREPKIT_INDEXED_SUFFIX", "_code")
	t.Setenv("PREPKIT_ONE_HOT_DROP_LAST", "true")
	t.Setenv("PREPKIT_WORKER_POOL_SIZE", "3")
	t.Setenv("PREPKIT_PARALLEL_THRESHOLD", "not-a-number")

	cfg := config.LoadFromEnv()
	assert.Equal(t, "_code", cfg.IndexedSuffix)
	assert.True(t, cfg.OneHotDropLast)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
	assert.Equal(t, config.DefaultParallelThreshold, cfg.ParallelThreshold)
}

func TestConfig_GlobalConfig(t *testing.T) {
	original := config.GetGlobalConfig()
	defer config.SetGlobalConfig(original)

	custom := config.NewConfig()
	custom.LabelColumn = "target"
	config.SetGlobalConfig(custom)

	assert.Equal(t, "target", config.GetGlobalConfig().LabelColumn)
}

func TestConfig_Workers(t *testing.T) {
	cfg := config.NewConfig()
	assert.Equal(t, runtime.NumCPU(), cfg.Workers())

	cfg.WorkerPoolSize = 5
	assert.Equal(t, 5, cfg.Workers())
}
