package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// Load loads configuration from the embedded YAML file and the environment.
// ${VAR} references inside the YAML are expanded from the environment after
// the optional .env file has been loaded, so API keys never live in the file.
func Load(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded := os.ExpandEnv(string(embeddedConfig))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errs.ConfigError(moduleName, "failed to unmarshal embedded config", err)
	}

	// The database section is schemaless YAML so backend-specific keys can
	// coexist; decode it into the typed DatabaseConfig.
	if len(cfg.Gridpulse.Database) > 0 {
		db := cfg.DB
		if err := mapstructure.Decode(cfg.Gridpulse.Database, &db); err != nil {
			return nil, errs.ConfigError(moduleName, "failed to decode database configuration", err)
		}
		cfg.DB = db
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints plus the credential preconditions:
// an enabled sub-task with a missing API key is fatal at startup, not a
// per-cycle error.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg.Gridpulse); err != nil {
		return errs.ConfigError(moduleName, "configuration validation failed", err)
	}
	if err := v.Struct(cfg.DB); err != nil {
		return errs.ConfigError(moduleName, "database configuration validation failed", err)
	}

	if cfg.Gridpulse.Load.APIKey == "" {
		return errs.Newf(errs.KindConfig, moduleName, "load API key is not set (GRIDSTATUS_API_KEY)")
	}
	if cfg.Gridpulse.Posting.Processes.Nuclear.Enabled && cfg.Gridpulse.Nuclear.EIA.APIKey == "" {
		return errs.Newf(errs.KindConfig, moduleName, "EIA API key is not set (EIA_API_KEY) but the nuclear sub-task is enabled")
	}
	if cfg.Gridpulse.Posting.Enabled {
		if cfg.Gridpulse.Posting.Handle == "" || cfg.Gridpulse.Posting.Password == "" {
			return errs.Newf(errs.KindConfig, moduleName, "posting is enabled but Bluesky credentials are not set")
		}
	}
	return nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config, and
// applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := Load(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Gridpulse.System.Logging.Level)
	return cfg, nil
}

// Module provides the configuration to the Fx container.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
