package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/hwapi"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval = 3
	DefaultLogLevel = "info"

	defaultDatabase = "/var/lib/psud/state.db"
	configName      = "psud.conf"
	configEnvVar    = "PSUD_CONFIG"
)

type Config struct {
	Interval int    `mapstructure:"interval"`
	Platform string `mapstructure:"platform"`
	Database string `mapstructure:"database"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

// Load resolves configuration from defaults, /etc/psud.conf (or the
// file named by PSUD_CONFIG), and command line flags, in ascending
// precedence.
func Load() (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	flags := pflag.NewFlagSet("psud", pflag.ContinueOnError)
	flags.Int("interval", DefaultInterval, "Seconds between polling cycles")
	flags.String("platform", hwapi.DefaultRoot, "Root of the platform capability tree")
	flags.String("database", defaultDatabase, "Path of the published state store")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("platform", hwapi.DefaultRoot)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)

	if path := os.Getenv(configEnvVar); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Flags given on the command line override the file.
	flags.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the loaded configuration for usable values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Database == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "database path must not be empty")
	}

	return nil
}
