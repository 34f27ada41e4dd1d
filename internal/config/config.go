// Package config holds clipcat's configuration surface: a YAML file under
// the user's config directory, overridable by environment variables, the
// way a single package-global config file is loaded and saved.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every configurable knob of a clipcatd instance.
type Config struct {
	SystemPaths SystemPaths     `yaml:"-"`
	Log         LogConfig       `yaml:"log"`
	Watcher     WatcherConfig   `yaml:"watcher"`
	History     HistoryConfig   `yaml:"history"`
	RPC         RPCConfig       `yaml:"rpc"`
	Local       LocalConfig     `yaml:"local"`
	DBus        DBusConfig      `yaml:"dbus"`
	Snippet     SnippetConfig   `yaml:"snippet"`
}

// LogConfig controls clipcat's zap-based logging.
type LogConfig struct {
	Level             string `yaml:"level"`
	Format            string `yaml:"format"` // "json" or "text"
	EnableFileLogging bool   `yaml:"enable_file_logging"`
}

// WatcherConfig controls what the watcher captures and how it filters it.
type WatcherConfig struct {
	LoadCurrent            bool     `yaml:"load_current"`
	EnableClipboard        bool     `yaml:"enable_clipboard"`
	EnablePrimary          bool     `yaml:"enable_primary"`
	EnableSecondary        bool     `yaml:"enable_secondary"`
	CaptureImage           bool     `yaml:"capture_image"`
	FilterTextMinLength    int      `yaml:"filter_text_min_length"`
	FilterTextMaxLength    int      `yaml:"filter_text_max_length"`
	FilterImageMaxSize     int64    `yaml:"filter_image_max_size"`
	DeniedTextRegexPatterns []string `yaml:"denied_text_regex_patterns"`
	SensitiveMimeTypes     []string `yaml:"sensitive_mime_types"`
}

// HistoryConfig controls the bounded history manager and its store.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// RPCConfig controls the gRPC-shaped remote surface.
type RPCConfig struct {
	GRPCAddress           string `yaml:"grpc_address"`
	MaxDecodedMessageSize int    `yaml:"max_decoded_message_size"`
	AccessToken           string `yaml:"access_token"`
}

// LocalConfig controls the Unix-domain-socket transport.
type LocalConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SocketPath string `yaml:"socket_path"`
}

// DBusConfig controls the optional D-Bus surface (Linux only).
type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SnippetConfig controls the optional snippet-source file watcher.
type SnippetConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Directories  []string      `yaml:"directories"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns a Config with clipcat's documented defaults.
func Default() *Config {
	paths, _ := GetSystemPaths()
	cfg := &Config{
		Log: LogConfig{
			Level:             "info",
			Format:            "text",
			EnableFileLogging: true,
		},
		Watcher: WatcherConfig{
			LoadCurrent:         true,
			EnableClipboard:     true,
			EnablePrimary:       true,
			EnableSecondary:     false,
			CaptureImage:        true,
			FilterTextMinLength: 1,
			FilterTextMaxLength: 4 * 1024 * 1024,
			FilterImageMaxSize:  20 * 1024 * 1024,
		},
		History: HistoryConfig{
			Capacity: 500,
		},
		RPC: RPCConfig{
			GRPCAddress:           "127.0.0.1:45045",
			MaxDecodedMessageSize: 16 * 1024 * 1024,
		},
		Local: LocalConfig{
			Enabled: true,
		},
		DBus: DBusConfig{
			Enabled: false,
		},
		Snippet: SnippetConfig{
			Enabled:      false,
			PollInterval: 2 * time.Second,
		},
	}
	if paths != nil {
		cfg.SystemPaths = *paths
		cfg.Local.SocketPath = paths.SocketPath
	}
	return cfg
}

// Load reads configPath, creating a default config file there if missing.
func Load(configPath string) (*Config, error) {
	paths, err := GetSystemPaths()
	if err != nil {
		return nil, fmt.Errorf("config: resolve system paths: %w", err)
	}
	if configPath == "" {
		configPath = paths.ActiveConfig
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.SystemPaths = *paths
			if err := cfg.Save(configPath); err != nil {
				return nil, fmt.Errorf("config: write default config: %w", err)
			}
			overrideFromEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	cfg := Default()
	cfg.SystemPaths = *paths
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	if cfg.Local.SocketPath == "" {
		cfg.Local.SocketPath = paths.SocketPath
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// Save writes c to configPath as YAML, creating parent directories as needed.
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", configPath, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("CLIPCAT_ACCESS_TOKEN"); v != "" {
		cfg.RPC.AccessToken = v
	}
	if v := os.Getenv("CLIPCAT_SOCKET_PATH"); v != "" {
		cfg.Local.SocketPath = v
	}
	if v := os.Getenv("CLIPCAT_GRPC_ADDRESS"); v != "" {
		cfg.RPC.GRPCAddress = v
	}
	if v := os.Getenv("CLIPCAT_HISTORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.Capacity = n
		}
	}
	if v := os.Getenv("CLIPCAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
