package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Shield   ShieldConfig   `json:"shield"`
	Redis    RedisConfig    `json:"redis"`
	Postgres PostgresConfig `json:"postgres"`
	LLM      LLMConfig      `json:"llm"`
	Admin    AdminConfig    `json:"admin"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`
}

// ShieldConfig holds the request shield limits. Zero values are replaced by
// the defaults in Load.
type ShieldConfig struct {
	MaxRequestsPerWindow int           `json:"max_requests_per_window"`
	Window               time.Duration `json:"-"`
	BlockDuration        time.Duration `json:"-"`
	SweepInterval        time.Duration `json:"-"`
	MaxMessageLength     int           `json:"max_message_length"`
	MaxReplyLength       int           `json:"max_reply_length"`
	MaxRequestSize       int64         `json:"max_request_size"`
	APIKey               string        `json:"-"`
	Store                string        `json:"store"` // "memory" or "redis"
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type PostgresConfig struct {
	DSN            string        `json:"-"`
	EventRetention time.Duration `json:"-"` // zero keeps security events forever
}

type LLMConfig struct {
	APIKey   string   `json:"-"`
	BaseURLs []string `json:"base_urls"`
	Model    string   `json:"model"`
	Balancer string   `json:"balancer"`
}

type AdminConfig struct {
	PasswordHash string        `json:"-"`
	JWTSecret    string        `json:"-"`
	JWTExpiry    time.Duration `json:"-"`
}

const (
	DefaultMaxRequestsPerWindow = 20
	DefaultWindow               = 60 * time.Second
	DefaultBlockDuration        = 5 * time.Minute
	DefaultSweepInterval        = time.Minute
	DefaultMaxMessageLength     = 5000
	DefaultMaxReplyLength       = 20000
	DefaultMaxRequestSize       = 100000
	DefaultEventRetentionDays   = 30
)

// Default returns a configuration usable without any environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
			LogLevel:    "info",
		},
		Shield: DefaultShield(),
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Postgres: PostgresConfig{
			EventRetention: DefaultEventRetentionDays * 24 * time.Hour,
		},
		LLM: LLMConfig{
			BaseURLs: []string{"https://api.openai.com/v1"},
			Model:    "gpt-4-turbo-preview",
			Balancer: "round_robin",
		},
		Admin: AdminConfig{
			JWTExpiry: 24 * time.Hour,
		},
	}
}

func DefaultShield() ShieldConfig {
	return ShieldConfig{
		MaxRequestsPerWindow: DefaultMaxRequestsPerWindow,
		Window:               DefaultWindow,
		BlockDuration:        DefaultBlockDuration,
		SweepInterval:        DefaultSweepInterval,
		MaxMessageLength:     DefaultMaxMessageLength,
		MaxReplyLength:       DefaultMaxReplyLength,
		MaxRequestSize:       DefaultMaxRequestSize,
		Store:                "memory",
	}
}

// Load reads the optional JSON file at path and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := json.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Shield.Store = strings.ToLower(strings.TrimSpace(cfg.Shield.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Environment = getEnv("ENVIRONMENT", cfg.Server.Environment)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)

	var err error
	s := &cfg.Shield
	if s.MaxRequestsPerWindow, err = getEnvInt("RATE_LIMIT_MAX_REQUESTS", s.MaxRequestsPerWindow); err != nil {
		return err
	}
	if s.Window, err = getEnvMillis("RATE_LIMIT_WINDOW_MS", s.Window); err != nil {
		return err
	}
	if s.BlockDuration, err = getEnvMillis("RATE_LIMIT_BLOCK_DURATION", s.BlockDuration); err != nil {
		return err
	}
	if s.SweepInterval, err = getEnvMillis("RATE_LIMIT_SWEEP_INTERVAL_MS", s.SweepInterval); err != nil {
		return err
	}
	if s.MaxMessageLength, err = getEnvInt("MAX_MESSAGE_LENGTH", s.MaxMessageLength); err != nil {
		return err
	}
	if s.MaxReplyLength, err = getEnvInt("MAX_REPLY_LENGTH", s.MaxReplyLength); err != nil {
		return err
	}
	maxSize, err := getEnvInt("MAX_REQUEST_SIZE", int(s.MaxRequestSize))
	if err != nil {
		return err
	}
	s.MaxRequestSize = int64(maxSize)
	s.APIKey = getEnv("CHAT_API_KEY", s.APIKey)
	s.Store = getEnv("QUOTA_STORE", s.Store)

	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	if cfg.Redis.Port, err = getEnvInt("REDIS_PORT", cfg.Redis.Port); err != nil {
		return err
	}
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}

	cfg.Postgres.DSN = getEnv("DATABASE_URL", cfg.Postgres.DSN)
	retentionDays, err := getEnvInt("SECURITY_EVENT_RETENTION_DAYS", int(cfg.Postgres.EventRetention/(24*time.Hour)))
	if err != nil {
		return err
	}
	cfg.Postgres.EventRetention = time.Duration(retentionDays) * 24 * time.Hour

	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	if urls := getEnv("OPENAI_BASE_URLS", ""); urls != "" {
		cfg.LLM.BaseURLs = splitList(urls)
	}
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
	cfg.LLM.Balancer = getEnv("LLM_BALANCER", cfg.LLM.Balancer)

	cfg.Admin.PasswordHash = getEnv("ADMIN_PASSWORD_HASH", cfg.Admin.PasswordHash)
	cfg.Admin.JWTSecret = getEnv("ADMIN_JWT_SECRET", cfg.Admin.JWTSecret)
	hours, err := getEnvInt("ADMIN_JWT_EXPIRY_HOURS", int(cfg.Admin.JWTExpiry/time.Hour))
	if err != nil {
		return err
	}
	cfg.Admin.JWTExpiry = time.Duration(hours) * time.Hour

	return nil
}

// Validate rejects configurations the shield cannot run with.
func (c *Config) Validate() error {
	s := c.Shield
	if s.MaxRequestsPerWindow <= 0 {
		return errors.New("rate limit max requests must be positive")
	}
	if s.Window <= 0 || s.BlockDuration <= 0 || s.SweepInterval <= 0 {
		return errors.New("rate limit durations must be positive")
	}
	if s.MaxMessageLength <= 0 || s.MaxReplyLength <= 0 || s.MaxRequestSize <= 0 {
		return errors.New("message and request size limits must be positive")
	}
	if s.Store != "memory" && s.Store != "redis" {
		return fmt.Errorf("unknown quota store: %s", s.Store)
	}
	if c.Postgres.EventRetention < 0 {
		return errors.New("security event retention must not be negative")
	}
	return nil
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AdminEnabled reports whether the admin routes should be mounted.
func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvMillis(key string, defaultValue time.Duration) (time.Duration, error) {
	ms, err := getEnvInt(key, int(defaultValue/time.Millisecond))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
