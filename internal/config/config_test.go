package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MAX_ARCHIVES", "10")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 10, cfg.Grouper.MaxArchives)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"MAX_ARCHIVES", "OUTPUT_FILENAME", "PROCESS_TIMEOUT_SEC", "MINIO_ENDPOINT", "DB_HOST", "TZ_LOCATION", "MINIO_PRESIGN_EXPIRY_SEC"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, 50, cfg.Grouper.MaxArchives)
	assert.Equal(t, "Sharp_iHasco_Grouped.zip", cfg.Grouper.OutputFilename)
	assert.Equal(t, 2*time.Minute, cfg.Grouper.ProcessTimeout())
	assert.Equal(t, time.Hour, cfg.MinIO.PresignExpiry())
	assert.False(t, cfg.MinIO.Enabled())
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLocation(t *testing.T) {
	cfg := &AppConfig{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Timezone = "Local"
	assert.Equal(t, time.Local, cfg.Location())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}
