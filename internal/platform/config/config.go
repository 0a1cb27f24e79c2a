// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	pstrings "github.com/Ziel-Global/community-healers-sub001/pkg/platform/strings"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server      Server
	WaitingRoom WaitingRoom
	ExamPass    ExamPass
	Redis       RedisConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Log         Log
}

// Server captures HTTP listener configuration.
type Server struct {
	Addr            string        `env:"EXAMROOM_ADDR"             envDefault:":8080"`
	MetricsAddr     string        `env:"EXAMROOM_METRICS_ADDR"     envDefault:":9090"`
	ShutdownTimeout time.Duration `env:"EXAMROOM_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AdminToken      string        `env:"EXAMROOM_ADMIN_TOKEN"`
}

// WaitingRoom configures the countdown and the page.
type WaitingRoom struct {
	SessionStore   string        `env:"EXAMROOM_SESSION_STORE"    envDefault:"memory"`
	TickInterval   time.Duration `env:"EXAMROOM_TICK_INTERVAL"    envDefault:"1s"`
	AutoStartDelay time.Duration `env:"EXAMROOM_AUTO_START_DELAY" envDefault:"2s"`
	StartHour      int           `env:"EXAMROOM_START_HOUR"       envDefault:"10"`
	Timezone       string        `env:"EXAMROOM_TIMEZONE"         envDefault:"Local"`
	CenterLabel    string        `env:"EXAMROOM_CENTER_LABEL"     envDefault:"Designated Examination Center"`
	TimeLabel      string        `env:"EXAMROOM_TIME_LABEL"       envDefault:"10:00 AM"`
	SessionTTL     time.Duration `env:"EXAMROOM_SESSION_TTL"      envDefault:"168h"`
	AuditBuffer    int           `env:"EXAMROOM_AUDIT_BUFFER"     envDefault:"256"`
}

// ExamPass configures the signed pass handed out on admission.
type ExamPass struct {
	SigningKey string        `env:"EXAM_PASS_SIGNING_KEY"`
	TTL        time.Duration `env:"EXAM_PASS_TTL"      envDefault:"4h"`
	Issuer     string        `env:"EXAM_PASS_ISSUER"   envDefault:"examroom"`
	Audience   string        `env:"EXAM_PASS_AUDIENCE" envDefault:"exam-delivery"`
}

// RedisConfig configures the Redis session store. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// PostgresConfig configures the session store and the audit table. An empty
// URL disables Postgres.
type PostgresConfig struct {
	URL          string `env:"DATABASE_URL"`
	MaxOpenConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	Migrate      bool   `env:"DATABASE_MIGRATE"   envDefault:"true"`
}

// KafkaConfig configures the audit sink. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS"     envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"examroom.audit"`
}

// Log configures the process logger.
type Log struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (Config, error) {
	return parse(env.Options{})
}

// FromMap reads the configuration from vars instead of the process
// environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = pstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.WaitingRoom.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis session store"))
		}
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.WaitingRoom.SessionStore))
	}
	if c.WaitingRoom.TickInterval <= 0 {
		errs = append(errs, errors.New("EXAMROOM_TICK_INTERVAL must be positive"))
	}
	if c.WaitingRoom.AutoStartDelay < 0 {
		errs = append(errs, errors.New("EXAMROOM_AUTO_START_DELAY cannot be negative"))
	}
	if c.WaitingRoom.StartHour < 0 || c.WaitingRoom.StartHour > 23 {
		errs = append(errs, errors.New("EXAMROOM_START_HOUR must be between 0 and 23"))
	}
	if _, err := c.WaitingRoom.Location(); err != nil {
		errs = append(errs, err)
	}
	if len(c.ExamPass.SigningKey) < 16 {
		errs = append(errs, errors.New("EXAM_PASS_SIGNING_KEY must be at least 16 characters"))
	}
	if c.ExamPass.TTL <= 0 {
		errs = append(errs, errors.New("EXAM_PASS_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// Location resolves the exam timezone.
func (w WaitingRoom) Location() (*time.Location, error) {
	name := strings.TrimSpace(w.Timezone)
	if name == "" || strings.EqualFold(name, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("EXAMROOM_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Enabled reports whether audit events are also produced to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}
