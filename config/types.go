package config

import (
	"time"

	"github.com/s0up4200/torq/filter"
)

// Config represents the complete configuration structure
type Config struct {
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Poll        PollConfig        `mapstructure:"poll"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Sort        SortConfig        `mapstructure:"sort"`
	Logging     LoggingConfig     `mapstructure:"logging"`

	// File is the config file that was read, empty when running on
	// defaults and environment only.
	File string `mapstructure:"-"`

	// Presets holds Filter.Presets once validated.
	Presets *filter.Presets `mapstructure:"-"`
}

// QBittorrentConfig holds qBittorrent Web UI connection details
type QBittorrentConfig struct {
	URL           string        `mapstructure:"url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	BasicUser     string        `mapstructure:"basic_user"`
	BasicPass     string        `mapstructure:"basic_pass"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PollConfig controls the request pool
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// FilterConfig contains default filters per item domain and named presets
// of torrent filters.
type FilterConfig struct {
	Defaults map[string]string `mapstructure:"defaults"`
	Presets  map[string]string `mapstructure:"presets"`
}

// SortConfig maps item domains to their default sort order.
type SortConfig map[string]string

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
}
