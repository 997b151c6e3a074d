package telemetry

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

func TestMetricsServerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.frameReceived(3)

	srv, err := StartMetricsServer("127.0.0.1:0", reg)
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gpuwatch_frames_received_total{connection="3"} 1`)

	health, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestMetricsServerBusyPort(t *testing.T) {
	first, err := StartMetricsServer("127.0.0.1:0", prometheus.NewRegistry())
	require.NoError(t, err)
	defer first.Close()

	_, err = StartMetricsServer(first.Addr(), prometheus.NewRegistry())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
