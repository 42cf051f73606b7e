package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/sorter"
)

// EnvPrefix prefixes environment overrides, e.g. TORQ_QBITTORRENT_URL.
const EnvPrefix = "TORQ"

// ErrNoConfigFile is returned by Watch when no config file was read.
var ErrNoConfigFile = errors.New("no config file to watch")

// Load loads the configuration from file. Without an explicit path a missing
// config file is not an error: defaults and environment are used.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".torq"))
		}

		// Check /etc
		v.AddConfigPath("/etc/torq/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// qBittorrent defaults
	v.SetDefault("qbittorrent.url", "http://localhost:8080")
	v.SetDefault("qbittorrent.username", "")
	v.SetDefault("qbittorrent.password", "")
	v.SetDefault("qbittorrent.basic_user", "")
	v.SetDefault("qbittorrent.basic_pass", "")
	v.SetDefault("qbittorrent.tls_skip_verify", false)
	v.SetDefault("qbittorrent.timeout", 30*time.Second)

	// Poll defaults
	v.SetDefault("poll.interval", 5*time.Second)
	v.SetDefault("poll.concurrency", 8)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.QBittorrent.URL == "" {
		return fmt.Errorf("qbittorrent.url is required")
	}
	u, err := url.Parse(cfg.QBittorrent.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("qbittorrent.url must be an http(s) URL: %s", cfg.QBittorrent.URL)
	}
	if cfg.QBittorrent.Timeout <= 0 {
		return fmt.Errorf("qbittorrent.timeout must be positive")
	}

	if cfg.Poll.Interval < 100*time.Millisecond {
		return fmt.Errorf("poll.interval must be at least 100ms, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.Concurrency < 1 {
		return fmt.Errorf("poll.concurrency must be at least 1")
	}

	for domain, expression := range cfg.Filter.Defaults {
		r, ok := filter.ForDomain(filter.Domain(domain))
		if !ok {
			return fmt.Errorf("unknown domain in filter.defaults: %s", domain)
		}
		if _, err := r.ParseLine(expression); err != nil {
			return fmt.Errorf("invalid filter.defaults.%s: %w", domain, err)
		}
	}

	presets := filter.NewPresets(filter.Torrents)
	if err := presets.RegisterAll(cfg.Filter.Presets); err != nil {
		return fmt.Errorf("invalid filter.presets: %w", err)
	}
	cfg.Presets = presets

	for domain, spec := range cfg.Sort {
		r, ok := sorter.ForDomain(filter.Domain(domain))
		if !ok {
			return fmt.Errorf("unknown domain in sort: %s", domain)
		}
		if _, err := sorter.Parse(r, spec); err != nil {
			return fmt.Errorf("invalid sort.%s: %w", domain, err)
		}
	}

	// Validate logging level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	if cfg.Logging.File != "" && cfg.Logging.MaxSize <= 0 {
		return fmt.Errorf("logging.max_size must be positive when logging.file is set")
	}

	return nil
}

// Watch reloads cfg's file on every write and passes each valid result to
// onChange. Invalid edits are logged and skipped.
func Watch(cfg *Config, logger zerolog.Logger, onChange func(*Config)) error {
	if cfg.File == "" {
		return ErrNoConfigFile
	}

	v := newViper()
	v.SetConfigFile(cfg.File)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			logger.Warn().Err(err).Str("file", e.Name).Msg("Ignoring config change")
			return
		}
		logger.Info().Str("file", e.Name).Msg("Config reloaded")
		onChange(next)
	})
	v.WatchConfig()

	return nil
}

// Domain returns the configured default filter and sort of a domain.
func (c *Config) Domain(d filter.Domain) (filterExpr, sortSpec string) {
	return c.Filter.Defaults[string(d)], c.Sort[string(d)]
}
