package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Redirect funnel
	Funnel FunnelConfig `mapstructure:"funnel"`

	// Course feed
	Feed FeedConfig `mapstructure:"feed"`

	// Recommendation cache
	Cache CacheConfig `mapstructure:"cache"`

	// Click analytics logs
	Analytics AnalyticsConfig `mapstructure:"analytics"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// PostgreSQL (click warehouse)
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type FunnelConfig struct {
	// Hosts the funnel is allowed to forward visitors to. A host matches
	// when it equals an entry or is a subdomain of one.
	AllowedDomains []string `mapstructure:"allowed_domains"`

	// Salt mixed into the one-way IP hash. Must be set in production.
	IPHashSalt string `mapstructure:"ip_hash_salt"`

	RateLimitPerHour int `mapstructure:"rate_limit_per_hour"`
}

type FeedConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	// Backend is "file" or "redis".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	TTL     string `mapstructure:"ttl"`
}

type AnalyticsConfig struct {
	Dir           string `mapstructure:"dir"`
	RotateBytes   int64  `mapstructure:"rotate_bytes"`
	RetentionDays int    `mapstructure:"retention_days"`

	// MirrorToNATS publishes every logged event to JetStream as well.
	MirrorToNATS bool `mapstructure:"mirror_to_nats"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// CacheTTL parses the configured recommendation cache TTL, defaulting to 6 hours.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTL != "" {
		if d, err := time.ParseDuration(c.Cache.TTL); err == nil && d > 0 {
			return d
		}
	}
	return 6 * time.Hour
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("funnel.rate_limit_per_hour", 100)
	v.SetDefault("feed.path", "data/courses.json")
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "data/cache_related_courses.json")
	v.SetDefault("cache.ttl", "6h")
	v.SetDefault("analytics.dir", "logs/analytics")
	v.SetDefault("analytics.rotate_bytes", 1024*1024)
	v.SetDefault("analytics.retention_days", 30)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")

	// Funnel
	v.BindEnv("funnel.allowed_domains", "QT_ALLOWED_DOMAINS")
	v.BindEnv("funnel.ip_hash_salt", "QT_IP_HASH_SALT")
	v.BindEnv("funnel.rate_limit_per_hour", "QT_RATE_LIMIT_PER_HOUR")

	// Feed / cache / analytics
	v.BindEnv("feed.path", "QT_FEED_PATH")
	v.BindEnv("cache.backend", "QT_CACHE_BACKEND")
	v.BindEnv("cache.path", "QT_CACHE_PATH")
	v.BindEnv("cache.ttl", "QT_CACHE_TTL")
	v.BindEnv("analytics.dir", "QT_ANALYTICS_DIR")
	v.BindEnv("analytics.rotate_bytes", "QT_ROTATE_BYTES")
	v.BindEnv("analytics.retention_days", "QT_RETENTION_DAYS")
	v.BindEnv("analytics.mirror_to_nats", "QT_MIRROR_TO_NATS")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
