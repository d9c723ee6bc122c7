package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Onboarding OnboardingConfig
	Exports    ExportsConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how access tokens minted by the identity service are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OnboardingConfig governs the checklist workflow and its collaborators.
type OnboardingConfig struct {
	CatalogPath string

	CacheEnabled bool
	CacheTTL     time.Duration

	DocumentStorageDir      string
	DocumentMaxSizeBytes    int64
	DocumentSignedURLSecret string
	DocumentSignedURLTTL    time.Duration

	PublicLinkSecret string
	PublicLinkTTL    time.Duration

	ActivationWorkers int
	ActivationRetries int
}

// ExportsConfig toggles the HR export endpoints.
type ExportsConfig struct {
	Enabled bool
	Title   string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// devSecrets are the built-in defaults that must be overridden outside development.
var devSecrets = map[string]string{
	"JWT_SECRET":                            "dev_secret",
	"ONBOARDING_DOCUMENT_SIGNED_URL_SECRET": "dev_documents_secret",
	"ONBOARDING_PUBLIC_LINK_SECRET":         "dev_public_link_secret",
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if c.Onboarding.PublicLinkSecret == c.Onboarding.DocumentSignedURLSecret {
		problems = append(problems, "ONBOARDING_PUBLIC_LINK_SECRET must differ from ONBOARDING_DOCUMENT_SIGNED_URL_SECRET")
	}
	if c.Env == EnvProduction {
		current := map[string]string{
			"JWT_SECRET":                            c.JWT.Secret,
			"ONBOARDING_DOCUMENT_SIGNED_URL_SECRET": c.Onboarding.DocumentSignedURLSecret,
			"ONBOARDING_PUBLIC_LINK_SECRET":         c.Onboarding.PublicLinkSecret,
		}
		for _, key := range []string{"JWT_SECRET", "ONBOARDING_DOCUMENT_SIGNED_URL_SECRET", "ONBOARDING_PUBLIC_LINK_SECRET"} {
			if current[key] == "" || current[key] == devSecrets[key] {
				problems = append(problems, key+" must be set in production")
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxDocSize := v.GetInt64("ONBOARDING_DOCUMENT_MAX_SIZE")
	if maxDocSize <= 0 {
		maxDocSize = 10 * 1024 * 1024
	}
	cfg.Onboarding = OnboardingConfig{
		CatalogPath:             v.GetString("ONBOARDING_CATALOG_PATH"),
		CacheEnabled:            v.GetBool("ONBOARDING_CACHE_ENABLED"),
		CacheTTL:                parseDuration(v.GetString("ONBOARDING_CACHE_TTL"), 2*time.Minute),
		DocumentStorageDir:      v.GetString("ONBOARDING_DOCUMENT_STORAGE_DIR"),
		DocumentMaxSizeBytes:    maxDocSize,
		DocumentSignedURLSecret: v.GetString("ONBOARDING_DOCUMENT_SIGNED_URL_SECRET"),
		DocumentSignedURLTTL:    parseDuration(v.GetString("ONBOARDING_DOCUMENT_SIGNED_URL_TTL"), 30*time.Minute),
		PublicLinkSecret:        v.GetString("ONBOARDING_PUBLIC_LINK_SECRET"),
		PublicLinkTTL:           parseDuration(v.GetString("ONBOARDING_PUBLIC_LINK_TTL"), 30*24*time.Hour),
		ActivationWorkers:       v.GetInt("ONBOARDING_ACTIVATION_WORKERS"),
		ActivationRetries:       v.GetInt("ONBOARDING_ACTIVATION_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
		Title:   v.GetString("EXPORTS_TITLE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "onboarding")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ONBOARDING_CATALOG_PATH", "")
	v.SetDefault("ONBOARDING_CACHE_ENABLED", false)
	v.SetDefault("ONBOARDING_CACHE_TTL", "2m")
	v.SetDefault("ONBOARDING_DOCUMENT_STORAGE_DIR", "./documents")
	v.SetDefault("ONBOARDING_DOCUMENT_MAX_SIZE", 10*1024*1024)
	v.SetDefault("ONBOARDING_DOCUMENT_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("ONBOARDING_DOCUMENT_SIGNED_URL_TTL", "30m")
	v.SetDefault("ONBOARDING_PUBLIC_LINK_SECRET", "dev_public_link_secret")
	v.SetDefault("ONBOARDING_PUBLIC_LINK_TTL", "720h")
	v.SetDefault("ONBOARDING_ACTIVATION_WORKERS", 1)
	v.SetDefault("ONBOARDING_ACTIVATION_RETRIES", 5)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_TITLE", "Onboarding Progress")
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
