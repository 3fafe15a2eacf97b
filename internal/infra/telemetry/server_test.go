package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustListen(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func waitForHTTPStatus(t *testing.T, url string, want int) *http.Response {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			if resp.StatusCode == want {
				return resp
			}
			resp.Body.Close()
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to return %d", url, want)
	return nil
}

func TestStartHTTPServer_DisabledReturnsImmediately(t *testing.T) {
	err := StartHTTPServer(context.Background(), HTTPServerOptions{}, zap.NewNop())
	require.NoError(t, err)
}

func TestStartHTTPServer_ServesMetricsAndHealthz(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.SetCatalogSize(5)

	addr := mustListen(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableMetrics: true,
			EnableHealthz: true,
			Health: func() HealthReport {
				return HealthReport{
					Status:   "ok",
					Backends: HealthBackends{Connected: 1, Total: 1},
					Tools:    5,
				}
			},
			Registry: registry,
		}, zap.NewNop())
	}()

	resp := waitForHTTPStatus(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusOK)
	defer resp.Body.Close()

	var report HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, 1, report.Backends.Connected)
	assert.Equal(t, 5, report.Tools)

	metricsResp := waitForHTTPStatus(t, fmt.Sprintf("http://%s/metrics", addr), http.StatusOK)
	metricsResp.Body.Close()

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestStartHTTPServer_DegradedHealthReturns503(t *testing.T) {
	addr := mustListen(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableHealthz: true,
			Health: func() HealthReport {
				return HealthReport{Status: "degraded", Backends: HealthBackends{Total: 2}}
			},
		}, zap.NewNop())
	}()

	resp := waitForHTTPStatus(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusServiceUnavailable)
	defer resp.Body.Close()

	var report HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, 2, report.Backends.Total)
}

func TestStartHTTPServer_DefaultHealth(t *testing.T) {
	addr := mustListen(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = StartHTTPServer(ctx, HTTPServerOptions{Addr: addr, EnableHealthz: true}, nil)
	}()

	resp := waitForHTTPStatus(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusOK)
	resp.Body.Close()
}
