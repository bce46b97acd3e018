package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAdminHealth(t *testing.T) {
	svc := NewService()
	rec := httptest.NewRecorder()
	svc.AdminRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "exprd.local", body["service"])
	assert.Equal(t, version, body["version"])
}

func TestAdminReadyReportsStatus(t *testing.T) {
	svc, addr, _, _ := startService(t, DefaultServiceConfig())
	conn := dialRaw(t, addr)
	assert.Equal(t, "OK 7\n", conn.roundTrip(t, "3+4"))

	rec := httptest.NewRecorder()
	svc.AdminRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ready         bool   `json:"ready"`
		Addr          string `json:"addr"`
		ActiveClients int64  `json:"active_clients"`
		Requests      uint64 `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, addr, body.Addr)
	assert.Equal(t, int64(1), body.ActiveClients)
	assert.Equal(t, uint64(1), body.Requests)
}

func TestAdminMetricsExposeEvalCounters(t *testing.T) {
	svc, addr, _, _ := startService(t, DefaultServiceConfig())
	conn := dialRaw(t, addr)
	assert.Equal(t, "ERR division by zero near 'end'\n", conn.roundTrip(t, "1/0"))

	rec := httptest.NewRecorder()
	svc.AdminRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "exprd_requests_total")
	assert.Contains(t, out, `outcome="division_by_zero"`)
	assert.Contains(t, out, "exprd_active_connections")
}

func TestAdminCorsAllowsConfiguredOrigin(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.CorsOrigins = []string{" http://dash.local "}
	svc := NewServiceWithConfig(cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	svc.AdminRouter().ServeHTTP(rec, req)
	assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunContextServesAdminAndStops(t *testing.T) {
	adminLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	adminAddr := adminLn.Addr().String()
	require.NoError(t, adminLn.Close())

	cfg := DefaultServiceConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AdminListenAddr = adminAddr
	svc := NewServiceWithConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunContext(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + adminAddr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.False(t, strings.HasSuffix(svc.Status().ListenAddr, ":0"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestNormalizeOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000"}, normalizeOrigins(nil))
	assert.Equal(t, []string{"http://a"}, normalizeOrigins([]string{" ", " http://a "}))
}
