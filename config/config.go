package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Debug        bool   `mapstructure:"debug"`
	AdminKey     string `mapstructure:"admin_key"`
	ClientOrigin string `mapstructure:"client_origin"` // SPA origin for CORS and OAuth redirects
	SeedCatalog  bool   `mapstructure:"seed_catalog"`
	DataPath     string `mapstructure:"data_path"` // directory holding an optional store_items.json override
}

type DatabaseConfig struct {
	Mode        string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath  string        `mapstructure:"sqlite_path"`
	MySQLDSN    string        `mapstructure:"mysql_dsn"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLife     time.Duration `mapstructure:"max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AdminIPs restricts /api/admin to these client IPs. Empty allows any IP
	// that presents the admin key.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type OAuthConfig struct {
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleCallbackURL  string `mapstructure:"google_callback_url"`
}

// Enabled reports whether Google sign-in is configured.
func (o OAuthConfig) Enabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != "" && o.GoogleCallbackURL != ""
}

// RewardsConfig holds Vent Energy amounts per action and the daily caps.
type RewardsConfig struct {
	DailyCap              int `mapstructure:"daily_cap"`
	RantCreated           int `mapstructure:"rant_created"`
	ReplyCreated          int `mapstructure:"reply_created"`
	ReactionReceived      int `mapstructure:"reaction_received"`
	ReactionGiven         int `mapstructure:"reaction_given"`
	ReactionGivenDailyCap int `mapstructure:"reaction_given_daily_cap"`
	StarterBalance        int `mapstructure:"starter_balance"`
}

type FeedConfig struct {
	ListLimit       int           `mapstructure:"list_limit"`
	TrendingLimit   int           `mapstructure:"trending_limit"`
	TrendingWindow  time.Duration `mapstructure:"trending_window"`
	TrendingRefresh time.Duration `mapstructure:"trending_refresh"`
	BlockedWords    []string      `mapstructure:"blocked_words"` // new rants containing any of these are rejected
}

type AuditConfig struct {
	Retention  time.Duration `mapstructure:"retention"`
	PruneCron  string        `mapstructure:"prune_cron"`
	BufferSize int           `mapstructure:"buffer_size"`
}

// DefaultRewards returns the reward table used when no config overrides it.
func DefaultRewards() RewardsConfig {
	return RewardsConfig{
		DailyCap:              150,
		RantCreated:           10,
		ReplyCreated:          3,
		ReactionReceived:      2,
		ReactionGiven:         1,
		ReactionGivenDailyCap: 40,
		StarterBalance:        20,
	}
}

// Load reads config from the given YAML file path. A .env file in the working
// directory is loaded first, and VENT_* environment variables override file
// values (VENT_SECURITY_JWT_SECRET → security.jwt_secret).
// A missing config file is not an error; defaults and env are used instead.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without defaults are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"server.admin_key",
		"database.mysql_dsn",
		"database.postgres_dsn",
		"cache.redis_addr",
		"cache.redis_password",
		"security.jwt_secret",
		"oauth.google_client_id",
		"oauth.google_client_secret",
		"oauth.google_callback_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	rw := DefaultRewards()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.client_origin", "http://localhost:5173")
	v.SetDefault("server.seed_catalog", true)
	v.SetDefault("server.data_path", "./data")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/ventboard.db")
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "336h") // 14 days, same as the old session cookie
	v.SetDefault("security.rate_limit_rps", 20)
	v.SetDefault("security.rate_limit_burst", 60)
	v.SetDefault("rewards.daily_cap", rw.DailyCap)
	v.SetDefault("rewards.rant_created", rw.RantCreated)
	v.SetDefault("rewards.reply_created", rw.ReplyCreated)
	v.SetDefault("rewards.reaction_received", rw.ReactionReceived)
	v.SetDefault("rewards.reaction_given", rw.ReactionGiven)
	v.SetDefault("rewards.reaction_given_daily_cap", rw.ReactionGivenDailyCap)
	v.SetDefault("rewards.starter_balance", rw.StarterBalance)
	v.SetDefault("feed.list_limit", 50)
	v.SetDefault("feed.trending_limit", 20)
	v.SetDefault("feed.trending_window", "24h")
	v.SetDefault("feed.trending_refresh", "5m")
	v.SetDefault("audit.retention", "720h")
	v.SetDefault("audit.prune_cron", "0 4 * * *")
	v.SetDefault("audit.buffer_size", 1024)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
