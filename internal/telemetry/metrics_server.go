package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

// MetricsPath is where the prometheus handler is mounted.
const MetricsPath = "/metrics"

// MetricsServer exposes a registry over HTTP.
type MetricsServer struct {
	ln  net.Listener
	srv *http.Server
}

// StartMetricsServer listens on addr and serves gatherer at /metrics and a
// liveness probe at /health. Listening happens before it returns, so a busy
// port is reported here rather than lost in a goroutine.
func StartMetricsServer(addr string, gatherer prometheus.Gatherer) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't start the metrics endpoint on "+addr,
			"Pick a free port with --metrics-addr, or clear metrics.addr")
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s := &MetricsServer{
		ln: ln,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() { _ = s.srv.Serve(ln) }()
	return s, nil
}

// Addr returns the bound address, useful when addr had port 0.
func (s *MetricsServer) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the server, waiting briefly for in-flight scrapes.
func (s *MetricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
