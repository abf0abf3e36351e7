package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Env  string
	Port int

	Strapi   StrapiConfig
	Session  SessionConfig
	Listing  ListingConfig
	Roles    RolesConfig
	Stats    StatsConfig
	Audit    AuditConfig
	Upload   UploadConfig
	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
}

// StrapiConfig points the request pipeline at the remote content API.
type StrapiConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls the browser session cookie and where sessions live.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Store      string
}

// ListingConfig holds page sizes for list views.
type ListingConfig struct {
	PageSize      int
	StatsPageSize int
}

// RolesConfig maps clinic role values used by the remote API.
type RolesConfig struct {
	Admin         string
	DefaultMember string
	DefaultRoleID int
}

// StatsConfig governs caching of aggregate counters.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AuditConfig toggles the local audit trail of admin actions.
type AuditConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// UploadConfig bounds audio uploads.
type UploadConfig struct {
	MaxAudioBytes int64
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Strapi = StrapiConfig{
		BaseURL: strings.TrimRight(v.GetString("STRAPI_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("STRAPI_TIMEOUT"), 30*time.Second),
	}

	store := strings.ToLower(v.GetString("SESSION_STORE"))
	if store != SessionStoreRedis {
		store = SessionStoreMemory
	}
	cfg.Session = SessionConfig{
		CookieName: v.GetString("SESSION_COOKIE"),
		TTL:        parseDuration(v.GetString("SESSION_TTL"), 12*time.Hour),
		Secure:     v.GetBool("SESSION_SECURE"),
		Store:      store,
	}

	cfg.Listing = ListingConfig{
		PageSize:      positiveOr(v.GetInt("PAGE_SIZE"), 10),
		StatsPageSize: positiveOr(v.GetInt("STATS_PAGE_SIZE"), 10000),
	}

	cfg.Roles = RolesConfig{
		Admin:         v.GetString("ADMIN_ROLE"),
		DefaultMember: v.GetString("DEFAULT_MEMBER_ROLE"),
		DefaultRoleID: positiveOr(v.GetInt("DEFAULT_ROLE_ID"), 1),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("STATS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("AUDIT_ENABLED"),
		Workers: positiveOr(v.GetInt("AUDIT_WORKERS"), 1),
		Retries: positiveOr(v.GetInt("AUDIT_RETRIES"), 3),
	}

	maxAudio := v.GetInt64("UPLOAD_MAX_AUDIO_BYTES")
	if maxAudio <= 0 {
		maxAudio = 25 * 1024 * 1024
	}
	cfg.Upload = UploadConfig{MaxAudioBytes: maxAudio}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("STRAPI_BASE_URL", "http://localhost:1337/api")
	v.SetDefault("STRAPI_TIMEOUT", "30s")

	v.SetDefault("SESSION_COOKIE", "clinic_session")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_SECURE", false)
	v.SetDefault("SESSION_STORE", SessionStoreMemory)

	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("STATS_PAGE_SIZE", 10000)
	v.SetDefault("ADMIN_ROLE", "adminClinic")
	v.SetDefault("DEFAULT_MEMBER_ROLE", "userClinic")
	v.SetDefault("DEFAULT_ROLE_ID", 1)

	v.SetDefault("STATS_CACHE_ENABLED", false)
	v.SetDefault("STATS_CACHE_TTL", "2m")

	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_RETRIES", 3)

	v.SetDefault("UPLOAD_MAX_AUDIO_BYTES", 25*1024*1024)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clinic_dashboard")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
