package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/salon-events/salonbridge/internal/platform/config"
	"github.com/salon-events/salonbridge/internal/platform/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Platform.PublicKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	cfg.Reminders.Enabled = false
	return cfg
}

func TestNewApp_MinimalConfig(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(context.Background(), cfg, telemetry.Discard())
	require.NoError(t, err)
	defer a.close()

	assert.Nil(t, a.pool)
	assert.Nil(t, a.redis)
	assert.Nil(t, a.scheduler)

	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewApp_ProductionWithoutKeyFailsClosed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Environment = config.EnvProduction

	a, err := newApp(context.Background(), cfg, telemetry.Discard())
	require.NoError(t, err)
	defer a.close()

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/plugins-and-webhooks", strings.NewReader("x.y.z")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNewApp_DevelopmentWithoutKeyIsAnonymous(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Environment = config.EnvDevelopment

	a, err := newApp(context.Background(), cfg, telemetry.Discard())
	require.NoError(t, err)
	defer a.close()

	// Anonymous callers carry no instance, so scoped routes answer 400
	// rather than 401.
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewApp_UnparseableKeyAbortsStartup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Platform.PublicKey = "not a pem block"

	_, err := newApp(context.Background(), cfg, telemetry.Discard())
	assert.ErrorContains(t, err, "verification key")
}

func TestNewApp_KeyFromFile(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "platform_public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	cfg := testConfig(t)
	cfg.Platform.PublicKeyFile = path
	cfg.Reminders.Enabled = true

	a, err := newApp(context.Background(), cfg, telemetry.Discard())
	require.NoError(t, err)
	defer a.close()
	assert.NotNil(t, a.scheduler)

	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewApp_UnreachableRedisFallsBackToMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	a, err := newApp(context.Background(), cfg, telemetry.Discard())
	require.NoError(t, err)
	defer a.close()
	assert.Nil(t, a.redis)
}
