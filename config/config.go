package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // session-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Rooms struct {
	PublicURL  string `yaml:"publicUrl"`  // base for magic links
	Retention  string `yaml:"retention"`  // archive rooms older than this, e.g. "24h"
	SweepEvery string `yaml:"sweepEvery"` // archive sweep interval, e.g. "1h"

	RetentionDur  time.Duration `yaml:"-"`
	SweepEveryDur time.Duration `yaml:"-"`
}

type Observer struct {
	Interval            string `yaml:"interval"`            // periodic tick, e.g. "30s"
	MinMessages         int    `yaml:"minMessages"`         // tick gate
	PromptWindow        int    `yaml:"promptWindow"`        // messages in prompt
	MaxReplyLen         int    `yaml:"maxReplyLen"`         // replies this long are dropped
	GenTimeout          string `yaml:"genTimeout"`          // per-call bound, e.g. "15s"
	RequireMinOnTrigger bool   `yaml:"requireMinOnTrigger"` // gate "@ai" triggers too

	IntervalDur   time.Duration `yaml:"-"`
	GenTimeoutDur time.Duration `yaml:"-"`
}

type GenAI struct {
	// APIKey falls back to GOOGLE_GENAI_API_KEY. Empty disables the observer.
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Rooms    Rooms    `yaml:"rooms"`
	Observer Observer `yaml:"observer"`
	GenAI    GenAI    `yaml:"genai"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "session-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Rooms.PublicURL == "" {
		c.Rooms.PublicURL = "http://localhost:3000"
	}
	c.Rooms.RetentionDur = parseDurationOr(24*time.Hour, c.Rooms.Retention)
	c.Rooms.SweepEveryDur = parseDurationOr(time.Hour, c.Rooms.SweepEvery)
	c.Observer.IntervalDur = parseDurationOr(30*time.Second, c.Observer.Interval)
	c.Observer.GenTimeoutDur = parseDurationOr(15*time.Second, c.Observer.GenTimeout)
	if c.Observer.MinMessages <= 0 {
		c.Observer.MinMessages = 3
	}
	if c.Observer.PromptWindow <= 0 {
		c.Observer.PromptWindow = 8
	}
	if c.Observer.MaxReplyLen <= 0 {
		c.Observer.MaxReplyLen = 500
	}
	if c.GenAI.APIKey == "" {
		c.GenAI.APIKey = os.Getenv("GOOGLE_GENAI_API_KEY")
	}
	if c.GenAI.Model == "" {
		c.GenAI.Model = "gemini-1.5-flash"
	}
	return nil
}

// helper for parsing timeouts
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
