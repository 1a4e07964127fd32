package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`
	School struct {
		ID          string `yaml:"id"`
		GatewayName string `yaml:"gateway_name"`
	} `yaml:"school"`
	Gateway struct {
		Endpoint       string `yaml:"endpoint"`
		APIKey         string `yaml:"api_key"`
		SecretKey      string `yaml:"secret_key"`
		CallbackURL    string `yaml:"callback_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"gateway"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Webhook struct {
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Events struct {
		NATSURL string `yaml:"nats_url"`
		Subject string `yaml:"subject"`
	} `yaml:"events"`
	Sweep struct {
		IntervalSeconds    int64 `yaml:"interval_seconds"`
		OrphanAfterMinutes int64 `yaml:"orphan_after_minutes"`
	} `yaml:"sweep"`
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalSeconds) * time.Second
}

func (c *Config) OrphanAfter() time.Duration {
	return time.Duration(c.Sweep.OrphanAfterMinutes) * time.Minute
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, then
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	switch cfg.DB.Driver {
	case DriverPostgres:
		if cfg.DB.DSN == "" {
			return nil, errors.New("db.dsn is required")
		}
	case DriverMemory:
	default:
		return nil, errors.New("db.driver must be postgres or memory")
	}
	if cfg.School.ID == "" {
		return nil, errors.New("school.id is required")
	}
	if cfg.Gateway.Endpoint == "" || cfg.Gateway.SecretKey == "" || cfg.Gateway.CallbackURL == "" {
		return nil, errors.New("gateway config is incomplete")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverPostgres
	}
	if cfg.School.GatewayName == "" {
		cfg.School.GatewayName = "Edviron-Vanilla"
	}
	if cfg.Gateway.TimeoutSeconds <= 0 {
		cfg.Gateway.TimeoutSeconds = 15
	}
	if cfg.RateLimit.RPS <= 0 {
		cfg.RateLimit.RPS = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "payments.status"
	}
	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 60
	}
	if cfg.Sweep.OrphanAfterMinutes <= 0 {
		cfg.Sweep.OrphanAfterMinutes = 30
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DB.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("SCHOOL_ID"); v != "" {
		cfg.School.ID = v
	}
	if v := os.Getenv("GATEWAY_NAME"); v != "" {
		cfg.School.GatewayName = v
	}
	if v := os.Getenv("PAYMENT_API_URL"); v != "" {
		cfg.Gateway.Endpoint = v
	}
	if v := os.Getenv("PG_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("PG_SECRET_KEY"); v != "" {
		cfg.Gateway.SecretKey = v
	}
	if v := os.Getenv("CALLBACK_URL"); v != "" {
		cfg.Gateway.CallbackURL = v
	}
	if v := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); v != "" {
		cfg.Gateway.TimeoutSeconds = atoiOr(cfg.Gateway.TimeoutSeconds, v)
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		cfg.RateLimit.RPS = atofOr(cfg.RateLimit.RPS, v)
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		cfg.RateLimit.Burst = atoiOr(cfg.RateLimit.Burst, v)
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.Events.Subject = v
	}
	if v := os.Getenv("SWEEP_INTERVAL_SECONDS"); v != "" {
		cfg.Sweep.IntervalSeconds = atoi64Or(cfg.Sweep.IntervalSeconds, v)
	}
	if v := os.Getenv("SWEEP_ORPHAN_AFTER_MINUTES"); v != "" {
		cfg.Sweep.OrphanAfterMinutes = atoi64Or(cfg.Sweep.OrphanAfterMinutes, v)
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func atofOr(fallback float64, v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
