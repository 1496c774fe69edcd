package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TABWRANGLER_SAVE_DIR
// or TABWRANGLER_BRIDGE_PORT.
const EnvPrefix = "TABWRANGLER"

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("source", cfg.Source)
	v.SetDefault("save_dir", cfg.SaveDir)
	v.SetDefault("ignored_urls", cfg.IgnoredURLs)
	v.SetDefault("placeholder_url", cfg.PlaceholderURL)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("bridge.port", cfg.Bridge.Port)
	v.SetDefault("bridge.timeout_seconds", cfg.Bridge.TimeoutSeconds)
	v.SetDefault("brotab.addr", cfg.Brotab.Addr)
	v.SetDefault("brotab.prefix", cfg.Brotab.Prefix)
	v.SetDefault("firefox.profile", cfg.Firefox.Profile)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigPaths(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func Validate(cfg Config) error {
	if !slices.Contains(Sources, cfg.Source) {
		return fmt.Errorf("unsupported source %q; expected one of %s", cfg.Source, strings.Join(Sources, ", "))
	}
	if strings.TrimSpace(cfg.SaveDir) == "" {
		return fmt.Errorf("save_dir is required")
	}
	if cfg.Bridge.Port <= 0 || cfg.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port %d out of range", cfg.Bridge.Port)
	}
	if cfg.Bridge.TimeoutSeconds <= 0 {
		return fmt.Errorf("bridge.timeout_seconds must be positive")
	}
	if strings.Contains(cfg.Brotab.Prefix, ".") {
		return fmt.Errorf("brotab.prefix %q must not contain dots", cfg.Brotab.Prefix)
	}
	return nil
}

func expandConfigPaths(cfg *Config) {
	cfg.SaveDir = expandPath(cfg.SaveDir)
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.DBPath = expandPath(cfg.DBPath)
}

// expandPath resolves a leading ~ and $VAR references. Unknown variables
// are left in place.
func expandPath(value string) string {
	if value == "" {
		return value
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, value[1:])
		}
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
