// Package web provides the HTTP dashboard: status page, JSON, chart,
// live updates, setpoint editing and Prometheus metrics.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/status"
)

// Server serves the dashboard over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	interval   time.Duration
	upgrader   websocket.Upgrader
}

// New creates a Server that reads state from the given tracker. Metrics are
// served from gatherer when it is non-nil; live updates are pushed every
// interval.
func New(addr string, tracker *status.Tracker, gatherer prometheus.Gatherer, interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		tracker:  tracker,
		interval: interval,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/chart.svg", s.handleChart)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("POST /params/{param}/{action}", s.handleParam)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server. Open live connections are
// hijacked and not tracked, so they end when their next write fails.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
