package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SERVER_ADDR", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "event.db", cfg.Store.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  addr: "127.0.0.1:9090"
store:
  driver: postgres
  database_url: "postgres://file/db"
redis:
  addr: "localhost:6379"
  cache_ttl: 1m
rate_limit:
  rps: 5
  burst: 10
  writes_per_day: 100
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://env/db", cfg.Store.DatabaseURL)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst, "unparsable env keeps the file value")
	assert.Equal(t, 100, cfg.RateLimit.WritesPerDay)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"STORE_DRIVER": "bolt"},
		"postgres without url": {"STORE_DRIVER": "postgres", "DATABASE_URL": ""},
		"mongo without uri":    {"STORE_DRIVER": "mongo", "MONGO_URI": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
