// Package config provides configuration management for preprocessing runs
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// String order types for categorical indexing.
const (
	OrderFrequencyDesc = "frequencyDesc"
	OrderFrequencyAsc  = "frequencyAsc"
	OrderAlphabetDesc  = "alphabetDesc"
	OrderAlphabetAsc   = "alphabetAsc"
)

// Invalid value handling strategies.
const (
	HandleError = "error"
	HandleSkip  = "skip"
	HandleKeep  = "keep"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the configuration of a preprocessing run
type Config struct {
	// Column naming
	IndexedSuffix  string `json:"indexed_suffix" yaml:"indexed_suffix"`   // Appended to string-indexed columns
	OneHotSuffix   string `json:"one_hot_suffix" yaml:"one_hot_suffix"`   // Appended to one-hot encoded columns
	FeaturesColumn string `json:"features_column" yaml:"features_column"` // Name of the assembled vector column
	LabelColumn    string `json:"label_column" yaml:"label_column"`       // Name the target is renamed to
	StripChars     string `json:"strip_chars" yaml:"strip_chars"`         // Characters trimmed from factor values

	// Encoding behaviour
	StringOrderType string `json:"string_order_type" yaml:"string_order_type"` // Label ordering for string indexing
	HandleInvalid   string `json:"handle_invalid" yaml:"handle_invalid"`       // error, skip or keep
	OneHotDropLast  bool   `json:"one_hot_drop_last" yaml:"one_hot_drop_last"` // Drop the last category slot

	// Parallel Processing Configuration
	WorkerPoolSize    int `json:"worker_pool_size" yaml:"worker_pool_size"`     // Number of worker goroutines (0 = auto-detect)
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows to fan out per-column work

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`   // logrus level name
	LogFormat string `json:"log_format" yaml:"log_format"` // text or json
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultIndexedSuffix     = "_cat"
	DefaultOneHotSuffix      = "_vec"
	DefaultFeaturesColumn    = "features"
	DefaultLabelColumn       = "label"
	DefaultStripChars        = " "
	DefaultParallelThreshold = 1000
	DefaultLogLevel          = "info"
)

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		IndexedSuffix:  DefaultIndexedSuffix,
		OneHotSuffix:   DefaultOneHotSuffix,
		FeaturesColumn: DefaultFeaturesColumn,
		LabelColumn:    DefaultLabelColumn,
		StripChars:     DefaultStripChars,

		StringOrderType: OrderFrequencyDesc,
		HandleInvalid:   HandleError,
		OneHotDropLast:  false,

		WorkerPoolSize:    0, // Auto-detect
		ParallelThreshold: DefaultParallelThreshold,

		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatText,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.IndexedSuffix == "" {
		return fmt.Errorf("IndexedSuffix must not be empty")
	}

	if c.OneHotSuffix == "" {
		return fmt.Errorf("OneHotSuffix must not be empty")
	}

	if c.FeaturesColumn == "" || c.LabelColumn == "" {
		return fmt.Errorf("FeaturesColumn and LabelColumn must not be empty")
	}

	if c.FeaturesColumn == c.LabelColumn {
		return fmt.Errorf("FeaturesColumn and LabelColumn must differ, both are %q", c.LabelColumn)
	}

	switch c.StringOrderType {
	case OrderFrequencyDesc, OrderFrequencyAsc, OrderAlphabetDesc, OrderAlphabetAsc:
	default:
		return fmt.Errorf("StringOrderType must be one of %s, %s, %s, %s, got %q",
			OrderFrequencyDesc, OrderFrequencyAsc, OrderAlphabetDesc, OrderAlphabetAsc, c.StringOrderType)
	}

	switch c.HandleInvalid {
	case HandleError, HandleSkip, HandleKeep:
	default:
		return fmt.Errorf("HandleInvalid must be one of error, skip, keep, got %q", c.HandleInvalid)
	}

	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}

	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("LogFormat must be text or json, got %q", c.LogFormat)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.IndexedSuffix == "" {
		c.IndexedSuffix = defaults.IndexedSuffix
	}
	if c.OneHotSuffix == "" {
		c.OneHotSuffix = defaults.OneHotSuffix
	}
	if c.FeaturesColumn == "" {
		c.FeaturesColumn = defaults.FeaturesColumn
	}
	if c.LabelColumn == "" {
		c.LabelColumn = defaults.LabelColumn
	}
	if c.StripChars == "" {
		c.StripChars = defaults.StripChars
	}
	if c.StringOrderType == "" {
		c.StringOrderType = defaults.StringOrderType
	}
	if c.HandleInvalid == "" {
		c.HandleInvalid = defaults.HandleInvalid
	}
	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = defaults.ParallelThreshold
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}

	// OneHotDropLast keeps its value: false is both the zero value and the default

	return c
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a file (supports JSON, YAML)
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from PREPKIT_* environment variables on top of the defaults
func LoadFromEnv() Config {
	return ApplyEnv(NewConfig())
}

// ApplyEnv overrides fields of config with any PREPKIT_* environment variables that are set
func ApplyEnv(config Config) Config {
	strs := map[string]*string{
		"PREPKIT_INDEXED_SUFFIX":    &config.IndexedSuffix,
		"PREPKIT_ONE_HOT_SUFFIX":    &config.OneHotSuffix,
		"PREPKIT_FEATURES_COLUMN":   &config.FeaturesColumn,
		"PREPKIT_LABEL_COLUMN":      &config.LabelColumn,
		"PREPKIT_STRIP_CHARS":       &config.StripChars,
		"PREPKIT_STRING_ORDER_TYPE": &config.StringOrderType,
		"PREPKIT_HANDLE_INVALID":    &config.HandleInvalid,
		"PREPKIT_LOG_LEVEL":         &config.LogLevel,
		"PREPKIT_LOG_FORMAT":        &config.LogFormat,
	}
	for key, field := range strs {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			*field = val
		}
	}

	if val := os.Getenv("PREPKIT_ONE_HOT_DROP_LAST"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.OneHotDropLast = parsed
		}
	}

	if val := os.Getenv("PREPKIT_WORKER_POOL_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.WorkerPoolSize = parsed
		}
	}

	if val := os.Getenv("PREPKIT_PARALLEL_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ParallelThreshold = parsed
		}
	}

	return config
}

// Workers resolves WorkerPoolSize, mapping 0 to the CPU count
func (c Config) Workers() int {
	if c.WorkerPoolSize > 0 {
		return c.WorkerPoolSize
	}
	return runtime.NumCPU()
}
