package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FUNNEL_HEALTH"

// Config holds process configuration. CLI flags override the environment.
type Config struct {
	DSN            string        `envconfig:"DSN"`
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:":4000"`
	FunnelsFile    string        `envconfig:"FUNNELS_FILE" default:".local/funnels.json"`
	SandboxSeed    string        `envconfig:"SANDBOX_SEED"`
	Concurrency    int           `envconfig:"CONCURRENCY" default:"4"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON        bool          `envconfig:"LOG_JSON" default:"true"`
	MaxOpenConns   int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// Load reads the configuration from FUNNEL_HEALTH_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}

// UsesSandbox reports whether reports read the seeded in-memory ledger instead of MySQL.
func (c *Config) UsesSandbox() bool {
	return c.SandboxSeed != ""
}

// SetupLogging configures the standard logrus logger.
func SetupLogging(cfg *Config) error {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	log.SetLevel(level)
	return nil
}
