package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "onboarding", cfg.Database.Name)
	assert.Equal(t, 2*time.Minute, cfg.Onboarding.CacheTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Onboarding.DocumentMaxSizeBytes)
	assert.Equal(t, 720*time.Hour, cfg.Onboarding.PublicLinkTTL)
	assert.Equal(t, 5, cfg.Onboarding.ActivationRetries)
	assert.Nil(t, cfg.JWT.Audience)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ONBOARDING_CACHE_TTL", "bogus")
	v.Set("ONBOARDING_DOCUMENT_MAX_SIZE", -1)
	v.Set("JWT_AUDIENCE", "hr-portal, ,employee-portal")
	v.Set("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg := fromViper(v)
	assert.Equal(t, 2*time.Minute, cfg.Onboarding.CacheTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Onboarding.DocumentMaxSizeBytes)
	assert.Equal(t, []string{"hr-portal", "employee-portal"}, cfg.JWT.Audience)
	assert.Len(t, cfg.CORS.AllowedOrigins, 2)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	require.NoError(t, cfg.Validate())

	cfg.Env = EnvProduction
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be set in production")
	assert.Contains(t, err.Error(), "ONBOARDING_PUBLIC_LINK_SECRET must be set in production")

	cfg.JWT.Secret = "jwt-prod"
	cfg.Onboarding.DocumentSignedURLSecret = "docs-prod"
	cfg.Onboarding.PublicLinkSecret = "links-prod"
	require.NoError(t, cfg.Validate())

	cfg.Onboarding.PublicLinkSecret = "docs-prod"
	assert.ErrorContains(t, cfg.Validate(), "must differ")
}
