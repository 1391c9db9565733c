// Package config assembles the runtime configuration of the finance server
// from defaults, an optional config file and FINANCE_* environment variables.
package config

import (
	"strings"
	"time"

	"church-finance-service/internal/api"
	"church-finance-service/internal/jobs"
	"church-finance-service/internal/matcher"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"

	"github.com/spf13/viper"
)

// MongoConfig locates the backing database.
type MongoConfig struct {
	URI            string        `json:"uri" mapstructure:"uri"`
	Database       string        `json:"database" mapstructure:"database"`
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
}

// Validate checks the database settings.
func (c *MongoConfig) Validate() error {
	if c.URI == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "mongo.uri", c.URI, nil)
	}
	if c.Database == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "mongo.database", c.Database, nil)
	}
	if c.ConnectTimeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "mongo.connect_timeout", c.ConnectTimeout.String(), nil)
	}
	return nil
}

// EventsConfig bounds the status-event dispatcher.
type EventsConfig struct {
	Capacity int `json:"capacity" mapstructure:"capacity"`
	Workers  int `json:"workers" mapstructure:"workers"`
}

// Validate checks the dispatcher bounds.
func (c *EventsConfig) Validate() error {
	if c.Capacity < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "events.capacity", c.Capacity, nil)
	}
	if c.Workers < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "events.workers", c.Workers, nil)
	}
	return nil
}

// AppConfig is the full runtime configuration.
type AppConfig struct {
	Mongo    MongoConfig            `json:"mongo" mapstructure:"mongo"`
	HTTP     api.Config             `json:"http" mapstructure:"http"`
	Queue    jobs.Config            `json:"queue" mapstructure:"queue"`
	Matching matcher.MatchingConfig `json:"matching" mapstructure:"matching"`
	Events   EventsConfig           `json:"events" mapstructure:"events"`
	Log      logger.Config          `json:"log" mapstructure:"log"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *AppConfig {
	return &AppConfig{
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "church_finance",
			ConnectTimeout: 10 * time.Second,
		},
		HTTP:     *api.DefaultConfig(),
		Queue:    *jobs.DefaultConfig(),
		Matching: *matcher.DefaultMatchingConfig(),
		Events: EventsConfig{
			Capacity: 256,
			Workers:  2,
		},
		Log: *logger.ProductionConfig(),
	}
}

// Load builds the configuration from defaults overlaid with the config file
// viper has read and FINANCE_* environment variables, so FINANCE_MONGO_URI
// overrides mongo.uri.
func Load() (*AppConfig, error) {
	config := Default()
	bindDefaults(config)

	viper.SetEnvPrefix("FINANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", viper.ConfigFileUsed(), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// bindDefaults registers every key with viper. Unmarshal only consults keys
// viper knows about, so environment overrides need the full key set
// registered up front.
func bindDefaults(defaults *AppConfig) {
	viper.SetDefault("mongo.uri", defaults.Mongo.URI)
	viper.SetDefault("mongo.database", defaults.Mongo.Database)
	viper.SetDefault("mongo.connect_timeout", defaults.Mongo.ConnectTimeout)
	viper.SetDefault("http.addr", defaults.HTTP.Addr)
	viper.SetDefault("http.body_limit", defaults.HTTP.BodyLimit)
	viper.SetDefault("queue.workers", defaults.Queue.Workers)
	viper.SetDefault("queue.capacity", defaults.Queue.Capacity)
	viper.SetDefault("queue.max_attempts", defaults.Queue.MaxAttempts)
	viper.SetDefault("queue.retry_backoff", defaults.Queue.RetryBackoff)
	viper.SetDefault("matching.date_window_days", defaults.Matching.DateWindowDays)
	viper.SetDefault("events.capacity", defaults.Events.Capacity)
	viper.SetDefault("events.workers", defaults.Events.Workers)
	viper.SetDefault("log.level", string(defaults.Log.Level))
	viper.SetDefault("log.format", string(defaults.Log.Format))
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.Mongo.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.Matching.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
