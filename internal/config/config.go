package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RateRule - лимит запросов на окно для одного ключа клиента.
type RateRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	Addr        string `yaml:"addr"`
	Storage     string `yaml:"storage"` // in-memory | postgres
	DatabaseURL string `yaml:"database_url"`
	DBDebug     bool   `yaml:"db_debug"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // console | json
	Production bool   `yaml:"production"`

	CORSOrigins []string `yaml:"cors_origins"`
	RedisAddr   string   `yaml:"redis_addr"`
	NATSURL     string   `yaml:"nats_url"`

	OnlineTracking bool          `yaml:"online_tracking"`
	ActivityEvery  time.Duration `yaml:"activity_every"`

	InviteCodes []string `yaml:"invite_codes"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	RateLimits map[string]RateRule `yaml:"rate_limits"` // api, auth, create
}

func defaults() Config {
	return Config{
		Addr:          ":8080",
		Storage:       "in-memory",
		TokenTTL:      7 * 24 * time.Hour,
		LogLevel:      "info",
		LogFormat:     "console",
		CORSOrigins:   []string{"http://localhost:5173"},
		ActivityEvery: time.Minute,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		RateLimits: map[string]RateRule{
			"api":    {Limit: 100, Window: time.Minute},
			"auth":   {Limit: 10, Window: 5 * time.Minute},
			"create": {Limit: 5, Window: time.Minute},
		},
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML-файл
// (если path не пуст), затем .env и переменные окружения.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		cfg.Addr = ":" + v
	}
	setString(&cfg.Addr, "RUBBHUB_ADDR")
	setString(&cfg.Storage, "RUBBHUB_STORAGE")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setBool(&cfg.DBDebug, "RUBBHUB_DB_DEBUG")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setDuration(&cfg.TokenTTL, "RUBBHUB_TOKEN_TTL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "RUBBHUB_LOG_FORMAT")
	if v, ok := os.LookupEnv("NODE_ENV"); ok {
		cfg.Production = v == "production"
	}
	setBool(&cfg.Production, "RUBBHUB_PRODUCTION")
	setList(&cfg.CORSOrigins, "RUBBHUB_CORS_ORIGINS")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.NATSURL, "NATS_URL")
	setBool(&cfg.OnlineTracking, "ENABLE_ONLINE_TRACKING")
	setList(&cfg.InviteCodes, "RUBBHUB_INVITE_CODES")
}

// Validate проверяет согласованность настроек и подставляет dev-секрет вне продакшна.
func (c *Config) Validate() error {
	switch c.Storage {
	case "in-memory", "postgres":
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.Storage == "postgres" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set for postgres storage")
	}
	if c.JWTSecret == "" {
		if c.Production {
			return errors.New("JWT_SECRET must be set in production")
		}
		c.JWTSecret = "dev-secret"
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
