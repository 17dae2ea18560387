package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "school_roster", cfg.Database.Name)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiration)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Settings.CacheTTL)
	assert.Equal(t, 3, cfg.IndexNumber.MaxRetries)
	assert.Equal(t, 0, cfg.IndexNumber.DefaultPadding)
	assert.False(t, cfg.IndexNumber.PerClass)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", " http://a.test ,, http://b.test")
	v.Set("SETTINGS_CACHE_TTL", "not-a-duration")
	v.Set("DEFAULT_INDEX_NUMBER_PREFIX", "SMA-")
	v.Set("DEFAULT_INDEX_NUMBER_PADDING", -2)
	v.Set("DEFAULT_INDEX_NUMBER_PER_CLASS", true)
	v.Set("INDEX_NUMBER_MAX_RETRIES", 0)

	cfg := fromViper(v)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Settings.CacheTTL)
	assert.Equal(t, "SMA-", cfg.IndexNumber.DefaultPrefix)
	assert.Equal(t, 0, cfg.IndexNumber.DefaultPadding)
	assert.True(t, cfg.IndexNumber.PerClass)
	assert.Equal(t, 3, cfg.IndexNumber.MaxRetries)
}
