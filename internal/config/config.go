// Package config loads tabwrangler settings from an optional YAML file and
// TABWRANGLER_* environment variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/lotas/tabwrangler/internal/applog"
	"github.com/lotas/tabwrangler/internal/brotab"
	"github.com/lotas/tabwrangler/internal/server"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/storage"
	"github.com/lotas/tabwrangler/internal/urlfilter"
)

// Tab sources selectable with the source key.
const (
	SourceBridge  = "bridge"
	SourceBrotab  = "brotab"
	SourceSession = "session"
	SourceDemo    = "demo"
)

// Sources lists every valid source value.
var Sources = []string{SourceBridge, SourceBrotab, SourceSession, SourceDemo}

// Config is the top-level application configuration.
type Config struct {
	Source         string        `mapstructure:"source" yaml:"source"`
	SaveDir        string        `mapstructure:"save_dir" yaml:"save_dir"`
	IgnoredURLs    []string      `mapstructure:"ignored_urls" yaml:"ignored_urls"`
	PlaceholderURL string        `mapstructure:"placeholder_url" yaml:"placeholder_url"`
	LogDir         string        `mapstructure:"log_dir" yaml:"log_dir"`
	DBPath         string        `mapstructure:"db_path" yaml:"db_path"`
	Bridge         BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Brotab         BrotabConfig  `mapstructure:"brotab" yaml:"brotab"`
	Firefox        FirefoxConfig `mapstructure:"firefox" yaml:"firefox"`
}

// BridgeConfig configures the WebSocket bridge to the browser extension.
type BridgeConfig struct {
	Port           int `mapstructure:"port" yaml:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// BrotabConfig points at a brotab mediator.
type BrotabConfig struct {
	Addr   string `mapstructure:"addr" yaml:"addr"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// FirefoxConfig selects the profile whose session file is read.
type FirefoxConfig struct {
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Source:         SourceBridge,
		SaveDir:        filepath.Join(home, "urls-tab_wrangler"),
		IgnoredURLs:    append([]string(nil), urlfilter.DefaultIgnored...),
		PlaceholderURL: source.PlaceholderURL,
		LogDir:         applog.DefaultDir(),
		DBPath:         dbPath,
		Bridge: BridgeConfig{
			Port:           server.DefaultPort,
			TimeoutSeconds: int(server.DefaultTimeout.Seconds()),
		},
		Brotab: BrotabConfig{
			Addr:   brotab.DefaultAddr,
			Prefix: brotab.DefaultPrefix,
		},
	}, nil
}

// DefaultConfigPath returns ~/.config/tabwrangler/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tabwrangler", "config.yaml"), nil
}
