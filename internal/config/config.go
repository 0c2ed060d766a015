// Package config loads service configuration from defaults, an optional
// YAML file and TUTORMATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/database"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "TUTORMATCH"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type StoreConfig struct {
	Driver   string                  `mapstructure:"driver" validate:"oneof=memory postgres sqlite"`
	Postgres database.PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig            `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "postgres")
	v.SetDefault("store.postgres.dbname", "tutormatch")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.postgres.max_conns", 20)
	v.SetDefault("store.postgres.min_conns", 2)
	v.SetDefault("store.sqlite.path", "./tutormatch.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. configFile may be empty, in which case only
// defaults and environment variables apply. Nested keys map to env vars
// with dots replaced: store.postgres.host is TUTORMATCH_STORE_POSTGRES_HOST.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the driver-specific settings.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	if c.Store.Driver == DriverSQLite && strings.TrimSpace(c.Store.SQLite.Path) == "" {
		return errors.New("invalid config: store.sqlite.path is required for the sqlite driver")
	}
	return nil
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// SetupLogging applies the log level and format to the standard logrus logger.
func SetupLogging(c LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
