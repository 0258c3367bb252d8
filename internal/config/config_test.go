package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "HS256", cfg.Auth.JWTAlgorithm)
	assert.Equal(t, 30, cfg.Auth.JWTExpireMinute)
	assert.Equal(t, 512, cfg.LLM.MaxOutputTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 50, cfg.LLM.TopK)
	assert.InDelta(t, 0.9, cfg.LLM.TopP, 1e-9)
	assert.Equal(t, 3600, cfg.Storage.SignedURLTTLSeconds)
	assert.Equal(t, "PUBLICATIONS_DATA", cfg.Warehouse.Table)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9090

[warehouse]
account = "wh.example.com:3306"
database = "catalog"
schema = "pubs"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WAREHOUSE_USER", "reader")
	t.Setenv("WAREHOUSE_PASSWORD", "pw")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("JWT_EXPIRE_MINUTE", "not-a-number")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTPAddr())
	assert.Equal(t, "reader:pw@tcp(wh.example.com:3306)/catalog?parseTime=true&charset=utf8mb4", cfg.WarehouseDSN())
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 30, cfg.Auth.JWTExpireMinute)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.App.CORSOrigins)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app\nport ="), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadStorageCredentials(t *testing.T) {
	cfg := defaultConfig()

	_, err := cfg.LoadStorageCredentials()
	require.ErrorIs(t, err, ErrMissingCredentials)

	cfg.Storage.CredentialsFile = filepath.Join(t.TempDir(), "nope.json")
	_, err = cfg.LoadStorageCredentials()
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_key":"GOOG1","secret":"s3cr3t"}`), 0o600))
	cfg.Storage.CredentialsFile = path
	creds, err := cfg.LoadStorageCredentials()
	require.NoError(t, err)
	assert.Equal(t, "GOOG1", creds.AccessKey)
	assert.Equal(t, "s3cr3t", creds.Secret)
}
