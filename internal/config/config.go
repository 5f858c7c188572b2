// Package config loads the gateway configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env    string `mapstructure:"APP_ENV"`
	Port   string `mapstructure:"API_PORT"`
	DBURL  string `mapstructure:"DB_DSN"`
	Store  string `mapstructure:"STORE"`
	Origin string `mapstructure:"CORS_ORIGINS"` // comma separated

	// StoreTimeout bounds every store call; expiry counts as a connectivity failure.
	StoreTimeout time.Duration `mapstructure:"STORE_TIMEOUT"`

	SessionSecret   string        `mapstructure:"SESSION_SECRET"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	SessionCapacity int           `mapstructure:"SESSION_CAPACITY"`
	BcryptCost      int           `mapstructure:"BCRYPT_COST"`

	RateLimitPerMinute int  `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	FallbackEnabled    bool `mapstructure:"FALLBACK_ENABLED"`
}

// Load reads .env (if present), then the environment. Env vars win over .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("STORE", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_CAPACITY", 10000)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 200)
	v.SetDefault("FALLBACK_ENABLED", true)
}

func (c *Config) normalize() error {
	if c.Port == "" {
		return errors.New("config: API_PORT must be set")
	}

	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreMemory
		if c.DBURL != "" {
			c.Store = StorePostgres
		}
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBURL == "" {
			return errors.New("config: DB_DSN must be set when STORE=postgres")
		}
	default:
		return errors.New("config: STORE must be postgres or memory")
	}

	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.SessionCapacity <= 0 {
		c.SessionCapacity = 10000
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 200
	}

	if !c.IsDev() && len(c.SessionSecret) < 32 {
		return errors.New("config: SESSION_SECRET must be at least 32 bytes outside dev")
	}
	return nil
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Origins returns the allowed CORS origins.
func (c *Config) Origins() []string {
	parts := strings.Split(c.Origin, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
