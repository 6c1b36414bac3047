package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	DataDir  string `yaml:"data_dir"`  // Root directory containing one subdirectory per workspace
	CacheDir string `yaml:"cache_dir"` // Root directory containing the shared bare mirrors
	Workers  int    `yaml:"workers"`   // Bounded concurrency for batch operations
}

// configFile represents the YAML config file structure
type configFile struct {
	Version  string `yaml:"version"`
	DataDir  string `yaml:"data_dir"`
	CacheDir string `yaml:"cache_dir"`
	Workers  int    `yaml:"workers"`
}

const (
	// CurrentConfigVersion is the current version of the config file format
	CurrentConfigVersion = "1"

	// MaxWorkers caps the worker pool regardless of configuration
	MaxWorkers = 16
)

// GetConfigDir returns the OS-specific config directory for grove
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", eris.Wrap(err, "failed to get user home directory")
		}
		baseDir = filepath.Join(home, "Library", "Application Support")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", eris.New("APPDATA environment variable not set")
		}
		baseDir = appData
	default: // linux and others
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = xdgConfigHome
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", eris.Wrap(err, "failed to get user home directory")
			}
			baseDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(baseDir, "grove"), nil
}

// GetDataDir returns the workspace data root with configuration hierarchy
func GetDataDir() (string, error) {
	// 1. Environment variable (highest priority)
	if envDir := os.Getenv("GROVE_DATA_DIR"); envDir != "" {
		return expandHome(envDir)
	}

	// 2. Config file
	config, err := loadConfigFile()
	if err == nil && config.DataDir != "" {
		return expandHome(config.DataDir)
	}

	// 3. Default (lowest priority)
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get user home directory")
	}

	return filepath.Join(home, ".grove", "workspaces"), nil
}

// GetCacheDir returns the mirror cache root with configuration hierarchy
func GetCacheDir() (string, error) {
	// 1. Environment variable (highest priority)
	if envDir := os.Getenv("GROVE_CACHE_DIR"); envDir != "" {
		return expandHome(envDir)
	}

	// 2. Config file
	config, err := loadConfigFile()
	if err == nil && config.CacheDir != "" {
		return expandHome(config.CacheDir)
	}

	// 3. Default (lowest priority)
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get user home directory")
	}

	return filepath.Join(home, ".grove", "cache"), nil
}

// GetWorkers returns the worker pool size with configuration hierarchy
func GetWorkers() (int, error) {
	// 1. Environment variable (highest priority)
	if envWorkers := os.Getenv("GROVE_WORKERS"); envWorkers != "" {
		n, err := strconv.Atoi(envWorkers)
		if err != nil || n < 1 {
			return 0, eris.Errorf("invalid GROVE_WORKERS value: %s", envWorkers)
		}
		return clampWorkers(n), nil
	}

	// 2. Config file
	config, err := loadConfigFile()
	if err == nil && config.Workers > 0 {
		return clampWorkers(config.Workers), nil
	}

	// 3. Default: available parallelism
	return clampWorkers(runtime.NumCPU()), nil
}

func clampWorkers(n int) int {
	if n > MaxWorkers {
		return MaxWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// GetDBPath returns the full path to the SQLite database used for cache bookkeeping
func GetDBPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get config directory")
	}

	return filepath.Join(configDir, "grove.db"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return eris.Wrap(err, "failed to get config directory")
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return eris.Wrapf(err, "failed to create config directory: %s", configDir)
	}

	return nil
}

// EnsureDataDir creates the workspace data root if it doesn't exist
func EnsureDataDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "failed to create data directory: %s", dataDir)
	}

	return dataDir, nil
}

// EnsureCacheDir creates the mirror cache root if it doesn't exist
func EnsureCacheDir() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "failed to create cache directory: %s", cacheDir)
	}

	return cacheDir, nil
}

// LoadConfig loads the full configuration with all settings resolved
func LoadConfig() (*Config, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return nil, eris.Wrap(err, "failed to get data directory")
	}

	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, eris.Wrap(err, "failed to get cache directory")
	}

	workers, err := GetWorkers()
	if err != nil {
		return nil, eris.Wrap(err, "failed to get worker count")
	}

	return &Config{
		DataDir:  dataDir,
		CacheDir: cacheDir,
		Workers:  workers,
	}, nil
}

// loadConfigFile loads the config file from disk (internal helper)
func loadConfigFile() (*configFile, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, eris.Wrap(err, "failed to get config directory")
	}

	configPath := filepath.Join(configDir, "config.yaml")

	// If config file doesn't exist, return empty config (not an error)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &configFile{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read config file: %s", configPath)
	}

	var config configFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, eris.Wrapf(err, "failed to parse config file: %s", configPath)
	}

	return &config, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get config directory")
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return eris.Wrap(err, "failed to get config path")
	}

	if err := EnsureConfigDir(); err != nil {
		return eris.Wrap(err, "failed to ensure config directory")
	}

	cf := configFile{
		Version:  CurrentConfigVersion,
		DataDir:  config.DataDir,
		CacheDir: config.CacheDir,
		Workers:  config.Workers,
	}

	data, err := yaml.Marshal(&cf)
	if err != nil {
		return eris.Wrap(err, "failed to marshal config to YAML")
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write config file: %s", configPath)
	}

	return nil
}

// ValidateConfig validates the configuration settings
func ValidateConfig(config *configFile) error {
	if config.Workers < 0 {
		return eris.Errorf("invalid workers: %d (must be positive)", config.Workers)
	}

	if config.DataDir != "" {
		if _, err := expandHome(config.DataDir); err != nil {
			return eris.Wrap(err, "invalid data_dir")
		}
	}

	if config.CacheDir != "" {
		if _, err := expandHome(config.CacheDir); err != nil {
			return eris.Wrap(err, "invalid cache_dir")
		}
	}

	return nil
}

// ValidateConfigFile validates a config file at the given path
func ValidateConfigFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return eris.Wrapf(err, "failed to read config file: %s", configPath)
	}

	var config configFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return eris.Wrapf(err, "failed to parse config file: %s", configPath)
	}

	return ValidateConfig(&config)
}

// expandHome expands ~ to the user's home directory in a path
func expandHome(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get user home directory")
	}

	if len(path) == 1 {
		return home, nil
	}

	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:]), nil
	}

	return path, nil
}
