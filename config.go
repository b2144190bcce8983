package main

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"clientbench/bench"
	"clientbench/my"
	"clientbench/pg"
)

const envPrefix = "CLIENTBENCH"

type Config struct {
	Driver         string        `mapstructure:"driver"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	DSN            string        `mapstructure:"dsn"`
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	Output         string        `mapstructure:"output"`
	MetricsAddr    string        `mapstructure:"metrics-addr"`
	LogLevel       string        `mapstructure:"log-level"`
}

func addConfigFlags(cmd *cobra.Command) {
	registerConfigFlags(cmd.PersistentFlags())
}

func registerConfigFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "YAML config file")
	flags.String("driver", "postgres", "Database driver: postgres, mysql")
	flags.String("host", "localhost", "Database host")
	flags.Int("port", 0, "Database port (default: driver's standard port)")
	flags.String("user", "", "Database user")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name")
	flags.String("dsn", "", "Full connection string, overrides host/port/user/password/database")
	flags.String("sslmode", "disable", "PostgreSQL sslmode")
	flags.Duration("connect-timeout", 10*time.Second, "Connect timeout")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
}

// loadConfig merges flags, CLIENTBENCH_* environment variables and the
// optional config file, in that order of precedence.
func loadConfig(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, errors.Wrap(err, "bind flags")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if cfg.Port == 0 {
		switch cfg.Driver {
		case "mysql":
			cfg.Port = 3306
		default:
			cfg.Port = 5432
		}
	}
	return cfg, nil
}

func (c Config) connConfig() bench.ConnConfig {
	return bench.ConnConfig{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		SSLMode:        c.SSLMode,
		DSN:            c.DSN,
		ConnectTimeout: c.ConnectTimeout,
	}
}

func openBackend(c Config) (bench.Backend, error) {
	switch c.Driver {
	case "postgres":
		return pg.New(c.connConfig())
	case "mysql":
		return my.New(c.connConfig())
	default:
		return nil, errors.Errorf("database driver '%s' not supported", c.Driver)
	}
}

// configureLogging sends diagnostics to stderr; stdout is reserved for
// benchmark output.
func configureLogging(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	log.SetLevel(lvl)
	return nil
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// logFatal reports err on one line, with its stack trace at debug level, and
// exits.
func logFatal(err error) {
	entry := log.WithError(err)
	var st stackTracer
	if log.IsLevelEnabled(log.DebugLevel) && errors.As(err, &st) {
		entry = entry.WithField("stacktrace", st.StackTrace())
	}
	entry.Error("clientbench failed")
	os.Exit(1)
}
