// Package config loads the engine's global configuration document and
// workflow documents. Both accept JSON (the canonical format) or YAML
// by file extension, and the global document's scalar fields can be
// overridden by environment variables: file, then defaults, then env.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	apperrors "inlook-corpus/pkg/errors"
)

// Config is the engine's global configuration document. The flat
// LogDir/Hostname/Port fields are the document's original top-level
// keys, still recognized for compatibility; Hostname and Port feed the
// control API bind address when its own section leaves them unset.
type Config struct {
	LogDir   string `json:"log_dir" yaml:"log_dir"`
	Hostname string `json:"hostname" yaml:"hostname"`
	Port     int    `json:"port" yaml:"port"`

	App        AppConfig        `json:"app" yaml:"app"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Parser     ParserConfig     `json:"parser" yaml:"parser"`
	ControlAPI ControlAPIConfig `json:"control_api" yaml:"control_api"`
	Plugins    PluginsConfig    `json:"plugins" yaml:"plugins"`
	HotReload  HotReloadConfig  `json:"hot_reload" yaml:"hot_reload"`
}

// AppConfig names the running process for logging/metrics labels.
type AppConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// LoggingConfig controls the logrus logger's verbosity and encoding.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// ParserConfig controls the ingestion pipeline's input source.
type ParserConfig struct {
	InputDirectory string `json:"input_directory" yaml:"input_directory"`
}

// ControlAPIConfig controls the HTTP/WebSocket control surface.
type ControlAPIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
}

// PluginsConfig names the directory the stage registry scans for
// plugin manifests (see Registry.LoadAll) and the active workflow file.
type PluginsConfig struct {
	Directory    string `json:"directory" yaml:"directory"`
	WorkflowFile string `json:"workflow_file" yaml:"workflow_file"`
}

// HotReloadConfig controls whether the engine watches the active
// workflow file and plugin directory for changes and rebuilds the
// stage tree automatically.
type HotReloadConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	WatchInterval    time.Duration `json:"watch_interval" yaml:"watch_interval"`
	DebounceInterval time.Duration `json:"debounce_interval" yaml:"debounce_interval"`
}

// Load reads path (JSON or YAML by extension), applies defaults for
// unset fields, then applies environment variable overrides. An empty
// path returns defaults with env overrides applied, no error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.ConfigInvalid("config", "load", fmt.Sprintf("read %s: %v", path, err))
	}

	if isYAMLExt(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return apperrors.ConfigInvalid("config", "load", fmt.Sprintf("parse yaml %s: %v", path, err))
		}
		return nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return apperrors.ConfigInvalid("config", "load", fmt.Sprintf("parse json %s: %v", path, err))
	}
	return nil
}

func isYAMLExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyDefaults(cfg *Config) {
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if cfg.ControlAPI.Host == "" && cfg.Hostname != "" {
		cfg.ControlAPI.Host = cfg.Hostname
	}
	if cfg.ControlAPI.Port == 0 && cfg.Port > 0 && cfg.Port <= 65535 {
		cfg.ControlAPI.Port = cfg.Port
	}
	if cfg.App.Name == "" {
		cfg.App.Name = "corpusctl"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "0.0.0.0"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9400
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.ControlAPI.Host == "" {
		cfg.ControlAPI.Host = "0.0.0.0"
	}
	if cfg.ControlAPI.Port == 0 {
		cfg.ControlAPI.Port = 8401
	}
	if cfg.Plugins.Directory == "" {
		cfg.Plugins.Directory = "./plugins"
	}
	if cfg.Plugins.WorkflowFile == "" {
		cfg.Plugins.WorkflowFile = "./workflow.json"
	}
	if cfg.HotReload.WatchInterval == 0 {
		cfg.HotReload.WatchInterval = 5 * time.Second
	}
	if cfg.HotReload.DebounceInterval == 0 {
		cfg.HotReload.DebounceInterval = 500 * time.Millisecond
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.LogDir = getEnvString("CORPUSCTL_LOG_DIR", cfg.LogDir)

	cfg.App.Name = getEnvString("CORPUSCTL_APP_NAME", cfg.App.Name)
	cfg.App.Version = getEnvString("CORPUSCTL_APP_VERSION", cfg.App.Version)

	cfg.Logging.Level = getEnvString("CORPUSCTL_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvString("CORPUSCTL_LOG_FORMAT", cfg.Logging.Format)

	cfg.Metrics.Enabled = getEnvBool("CORPUSCTL_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Host = getEnvString("CORPUSCTL_METRICS_HOST", cfg.Metrics.Host)
	cfg.Metrics.Port = getEnvInt("CORPUSCTL_METRICS_PORT", cfg.Metrics.Port)
	cfg.Metrics.Path = getEnvString("CORPUSCTL_METRICS_PATH", cfg.Metrics.Path)

	cfg.Parser.InputDirectory = getEnvString("CORPUSCTL_INPUT_DIRECTORY", cfg.Parser.InputDirectory)

	cfg.ControlAPI.Enabled = getEnvBool("CORPUSCTL_CONTROL_API_ENABLED", cfg.ControlAPI.Enabled)
	cfg.ControlAPI.Host = getEnvString("CORPUSCTL_CONTROL_API_HOST", cfg.ControlAPI.Host)
	cfg.ControlAPI.Port = getEnvInt("CORPUSCTL_CONTROL_API_PORT", cfg.ControlAPI.Port)

	cfg.Plugins.Directory = getEnvString("CORPUSCTL_PLUGINS_DIR", cfg.Plugins.Directory)
	cfg.Plugins.WorkflowFile = getEnvString("CORPUSCTL_WORKFLOW_FILE", cfg.Plugins.WorkflowFile)

	cfg.HotReload.Enabled = getEnvBool("CORPUSCTL_HOT_RELOAD_ENABLED", cfg.HotReload.Enabled)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
