package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dyluth/tandem/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSnapshot() Snapshot {
	return Snapshot{Stats: board.Stats{Created: 3, Active: 2}, Bridge: board.BridgeStatus{Entries: 2}, Swarms: 1}
}

func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewHealthServer(":0", nil, fixedSnapshot)

	for _, path := range []string{"/healthz", "/stats"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
	}
}

func TestHealthCheckResponse(t *testing.T) {
	decode := func(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		return response
	}

	t.Run("healthy without redis", func(t *testing.T) {
		server := NewHealthServer(":0", nil, fixedSnapshot)
		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, HealthResponse{Status: "healthy", Redis: "disabled"}, decode(t, w))
	})

	t.Run("healthy when redis is reachable", func(t *testing.T) {
		client, _ := setupTestClient(t)
		server := NewHealthServer(":0", client, fixedSnapshot)
		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "connected", decode(t, w).Redis)
	})

	t.Run("unhealthy when redis is gone", func(t *testing.T) {
		client, mr := setupTestClient(t)
		mr.Close()
		server := NewHealthServer(":0", client, fixedSnapshot)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(ctx))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		response := decode(t, w)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "disconnected", response.Redis)
		assert.NotEmpty(t, response.Error)
	})
}

func TestStatsEndpoint(t *testing.T) {
	server := NewHealthServer(":0", nil, fixedSnapshot)
	w := httptest.NewRecorder()
	server.statsHandler(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, 3, snap.Stats.Created)
	assert.Equal(t, 2, snap.Bridge.Entries)
	assert.Equal(t, 1, snap.Swarms)
}

func TestHealthServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := NewHealthServer(ln.Addr().String(), nil, fixedSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()

	httpClient := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 2 * time.Second}
	resp, err := httpClient.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}
}

func TestHealthServer_RunFailsOnBadAddress(t *testing.T) {
	server := NewHealthServer("256.0.0.1:bad", nil, fixedSnapshot)
	err := server.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start health server")
}
