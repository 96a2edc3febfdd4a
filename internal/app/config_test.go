package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/app"
	"chatcore/internal/domain"
	"chatcore/internal/kdf"
	"chatcore/internal/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromPathMergesFile(t *testing.T) {
	path := writeConfig(t, `
home: /tmp/alice
relay:
  url: https://relay.example
  timeout: 3s
log:
  format: json
kdf:
  argon2:
    time: 2
server:
  backend: redis
  redis:
    addr: redis:6379
    db: 4
`)
	cfg, err := app.LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/alice", cfg.Home)
	assert.Equal(t, "https://relay.example", cfg.Relay.URL)
	assert.Equal(t, 3*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, uint32(2), cfg.KDF.Argon2.Time)
	assert.Equal(t, uint32(kdf.DefaultArgon2MemoryKiB), cfg.KDF.Argon2.MemoryKiB)
	assert.Equal(t, app.BackendRedis, cfg.Server.Backend)
	assert.Equal(t, "redis:6379", cfg.Server.Redis.Addr)
	assert.Equal(t, 4, cfg.Server.Redis.DB)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestLoadFromPathEnvOverrides(t *testing.T) {
	path := writeConfig(t, "home: /tmp/file\n")
	t.Setenv("CHATCORE_HOME", " /tmp/env ")
	t.Setenv("CHATCORE_RELAY_URL", "http://env:9000")
	t.Setenv("CHATCORE_LOG_LEVEL", "debug")
	t.Setenv("CHATCORE_STORAGE_PREFIX", "bob")

	cfg, err := app.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env", cfg.Home)
	assert.Equal(t, "http://env:9000", cfg.Relay.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "bob", cfg.StoragePrefix)
}

func TestLoadFromPathErrors(t *testing.T) {
	_, err := app.LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = app.LoadFromPath(writeConfig(t, "relay: [not, a, map]\n"))
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	cfg := app.DefaultConfig()
	app.Merge(&cfg, app.Config{Log: app.LogConfig{Level: "warn"}})
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, app.DefaultConfig().Relay, cfg.Relay)
}

func TestKDFHardener(t *testing.T) {
	cfg := app.DefaultConfig()
	h, err := cfg.KDF.Hardener()
	require.NoError(t, err)
	assert.Equal(t, kdf.DefaultArgon2id(), h)

	cfg.KDF.Argon2.Salt = "000102030405060708090a0b0c0d0e0f"
	h, err = cfg.KDF.Hardener()
	require.NoError(t, err)
	assert.Equal(t, byte(0x0f), h.Salt[15])

	cfg.KDF.Argon2.Salt = "0001"
	_, err = cfg.KDF.Hardener()
	require.ErrorIs(t, err, domain.ErrConfiguration)

	cfg.KDF.Argon2.Salt = "zz"
	_, err = cfg.KDF.Hardener()
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestNewLogger(t *testing.T) {
	log, err := app.NewLogger(app.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	_, err = app.NewLogger(app.LogConfig{Level: "loud"})
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = app.NewLogger(app.LogConfig{Level: "info", Format: "xml"})
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	backend, closeFn, err := app.NewBackend(ctx, app.ServerConfig{Backend: app.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, backend)
	require.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	backend, closeFn, err = app.NewBackend(ctx, app.ServerConfig{
		Backend: app.BackendRedis,
		Redis:   app.RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &store.Redis{}, backend)
	require.NoError(t, closeFn())

	_, _, err = app.NewBackend(ctx, app.ServerConfig{Backend: "postgres"})
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewRelayServerServesMetrics(t *testing.T) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	srv, err := app.NewRelayServer(store.NewMemory(), log, prometheus.NewRegistry())
	require.NoError(t, err)
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `chatcore_relay_requests_total{code="401",route="/users/{id}"}`)
}
