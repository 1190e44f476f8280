package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envPrefix     = "RETAIL"
	configFileEnv = "RETAIL_CONFIG_FILE"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logger    LoggerConfig    `yaml:"logger" envconfig:"LOG"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" default:"localhost"`
	Port            int           `yaml:"port" envconfig:"PORT" default:"8084" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"enable_rate_limit" envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100" validate:"gt=0"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"20" validate:"gt=0"`
	AllowedOrigins  []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
}

// DashboardConfig holds the dashboard defaults and upload limits.
type DashboardConfig struct {
	SheetName      string        `yaml:"sheet_name" envconfig:"SHEET_NAME" default:"Online Retail" validate:"required"`
	DefaultCountry string        `yaml:"default_country" envconfig:"DEFAULT_COUNTRY" default:"United Kingdom" validate:"required"`
	DefaultHorizon int           `yaml:"default_horizon" envconfig:"DEFAULT_HORIZON" default:"14" validate:"min=7,max=60"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"52428800" validate:"gt=0"`
	DatasetTTL     time.Duration `yaml:"dataset_ttl" envconfig:"DATASET_TTL" default:"30m" validate:"gt=0"`
}

// Load reads configuration from RETAIL_* environment variables. When
// RETAIL_CONFIG_FILE names a YAML file, values present in it override the
// environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := os.Getenv(configFileEnv); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func (c *Config) validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %v does not satisfy %s", fe.Namespace(), fe.Value(), strings.TrimSpace(fe.Tag()+" "+fe.Param())))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
