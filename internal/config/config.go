// Package config provides structures and utilities for loading the gridpulse
// application configuration from the embedded YAML file and the environment.
package config

import "time"

// EmbeddedConfig holds the raw bytes of the configuration file, passed from main.go.
type EmbeddedConfig []byte

// PoolConfig holds connection pool settings for the persistent store.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	AcquireTimeoutSeconds  int `yaml:"acquire_timeout_seconds" mapstructure:"acquire_timeout_seconds"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds the persistent store connection settings. The YAML
// "database" section is decoded into this struct via mapstructure so that
// backend-specific keys can coexist under one section.
type DatabaseConfig struct {
	Type     string     `mapstructure:"type" validate:"required,oneof=sqlite postgres mysql"`
	Host     string     `mapstructure:"host"`
	Port     int        `mapstructure:"port"`
	User     string     `mapstructure:"user"`
	Password string     `mapstructure:"password"`
	Database string     `mapstructure:"database" validate:"required"`
	Sslmode  string     `mapstructure:"sslmode"`
	Pool     PoolConfig `mapstructure:"pool"`
}

// AcquireTimeout returns the connection acquisition timeout as a Duration.
func (c DatabaseConfig) AcquireTimeout() time.Duration {
	if c.Pool.AcquireTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Pool.AcquireTimeoutSeconds) * time.Second
}

// LoadConfig holds settings for the grid-load source and its sync windows.
type LoadConfig struct {
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	Dataset         string   `yaml:"dataset" validate:"required"`
	Columns         []string `yaml:"columns" validate:"min=1"`
	Limit           int      `yaml:"limit" validate:"gt=0"`
	InitialDaysBack int      `yaml:"initial_days_back" validate:"gt=0"`
	DaysBack        int      `yaml:"days_back" validate:"gt=0"`
	ChunkDays       int      `yaml:"chunk_days" validate:"gt=0"`
}

// NRCConfig holds settings for the reactor-status feed.
type NRCConfig struct {
	URL string `yaml:"url" validate:"required,url"`
	// Units is the allow-list of unit names to retain from the feed.
	Units []string `yaml:"units" validate:"min=1"`
	// SourceTimezone is the civil time zone of the feed's collection process.
	SourceTimezone string `yaml:"source_timezone" validate:"required"`
	// CollectionHourOffset is added to the feed's midnight-stamped report date
	// to recover the true collection time before localization.
	CollectionHourOffset int `yaml:"collection_hour_offset"`
}

// PlantMapping links one plant's EIA identity to its NRC unit names.
type PlantMapping struct {
	EIAPlantID int      `yaml:"eia_plant_id" validate:"gt=0"`
	NRCNames   []string `yaml:"nrc_names" validate:"min=1"`
}

// EIAConfig holds settings for the generator-capacity feed.
type EIAConfig struct {
	BaseURL       string                  `yaml:"base_url" validate:"required,url"`
	APIKey        string                  `yaml:"api_key"`
	PlantIDs      []int                   `yaml:"plant_ids" validate:"min=1"`
	PlantMappings map[string]PlantMapping `yaml:"plant_mappings" validate:"min=1,dive"`
	// WindowDays is the look-back span for the monthly period range, sized so
	// the newest period is captured even when upstream delays publication.
	WindowDays int `yaml:"window_days"`
}

// NuclearConfig groups the two nuclear-data feeds.
type NuclearConfig struct {
	NRC NRCConfig `yaml:"nrc"`
	EIA EIAConfig `yaml:"eia"`
}

// ProcessConfig holds per-sub-task posting settings.
type ProcessConfig struct {
	Enabled bool `yaml:"enabled"`
	// RequireRecentNRCData gates the nuclear report on feed freshness (24h).
	RequireRecentNRCData bool `yaml:"require_recent_nrc_data"`
}

// PostingConfig holds the social-posting settings.
type PostingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ServiceURL string `yaml:"service_url"`
	Handle     string `yaml:"handle"`
	Password   string `yaml:"password"`
	Processes  struct {
		Load    ProcessConfig `yaml:"load"`
		Nuclear ProcessConfig `yaml:"nuclear"`
	} `yaml:"processes"`
}

// ExportConfig holds the optional Parquet export settings.
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	// GCSBucket, when set, mirrors exported files to Cloud Storage.
	GCSBucket       string `yaml:"gcs_bucket"`
	GCSPrefix       string `yaml:"gcs_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// MetricsConfig holds the Prometheus settings. PushgatewayURL may be empty,
// in which case metrics are collected but not pushed.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	JobName        string `yaml:"job_name"`
}

// RetentionConfig holds the optional age-based cleanup settings.
type RetentionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Days is the number of days of load history to keep.
	Days int `yaml:"days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the display time zone for report text and chart axes.
	Timezone string        `yaml:"timezone" validate:"required"`
	Logging  LoggingConfig `yaml:"logging"`
}

// GridpulseConfig holds all configuration under the "gridpulse" top-level key.
type GridpulseConfig struct {
	System   SystemConfig           `yaml:"system"`
	Database map[string]interface{} `yaml:"database"`
	Load     LoadConfig             `yaml:"load"`
	Nuclear  NuclearConfig          `yaml:"nuclear"`
	Posting  PostingConfig          `yaml:"posting"`
	Export   ExportConfig           `yaml:"export"`
	Metrics  MetricsConfig          `yaml:"metrics"`
	Retention RetentionConfig       `yaml:"retention"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Gridpulse GridpulseConfig `yaml:"gridpulse"`
	// DB is the typed database configuration decoded from the Database section.
	DB DatabaseConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults. YAML and environment
// values are merged on top by the loader.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.Gridpulse.System.Timezone = "UTC"
	cfg.Gridpulse.System.Logging.Level = "INFO"
	cfg.Gridpulse.Load.BaseURL = "https://api.gridstatus.io"
	cfg.Gridpulse.Load.Limit = 10000
	cfg.Gridpulse.Load.InitialDaysBack = 30
	cfg.Gridpulse.Load.DaysBack = 2
	cfg.Gridpulse.Load.ChunkDays = 5
	cfg.Gridpulse.Nuclear.NRC.SourceTimezone = "America/New_York"
	cfg.Gridpulse.Nuclear.NRC.CollectionHourOffset = 9
	cfg.Gridpulse.Nuclear.EIA.WindowDays = 90
	cfg.Gridpulse.Posting.ServiceURL = "https://bsky.social"
	cfg.Gridpulse.Metrics.JobName = "gridpulse"
	cfg.Gridpulse.Retention.Days = 90
	cfg.DB = DatabaseConfig{
		Type:     "sqlite",
		Database: "data/gridpulse.db",
		Pool: PoolConfig{
			MaxOpenConns:          5,
			MaxIdleConns:          5,
			AcquireTimeoutSeconds: 5,
		},
	}
	return cfg
}
