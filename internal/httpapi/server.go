// Package httpapi exposes the webhook receiver endpoints with a chi router.
// Plugin endpoints always answer 200 so Alertmanager never retries a
// notification whose failure is permanent; handler errors are reported in
// the response body instead.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/alerts"
	"github.com/alertops/alertops/internal/metrics"
	"github.com/alertops/alertops/internal/plugins"
)

// ConnectionLister reports which tool servers currently hold a live session
type ConnectionLister interface {
	ConnectedServers() []string
}

// Server routes webhook notifications to plugins
type Server struct {
	plugins     map[string]plugins.Plugin
	connections ConnectionLister
	logger      *zap.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	router      *chi.Mux
	version     string
}

// NewServer creates the HTTP API server. The gatherer may be nil to
// disable the metrics endpoint.
func NewServer(loaded map[string]plugins.Plugin, connections ConnectionLister, logger *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer, version string) *Server {
	s := &Server{
		plugins:     loaded,
		connections: connections,
		logger:      logger,
		metrics:     m,
		gatherer:    gatherer,
		router:      chi.NewRouter(),
		version:     version,
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleInfo)
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/alert", func(r chi.Router) {
		r.Post("/{plugin}", s.handleAlert)

		// recall query endpoints exist only when the plugin is loaded
		if recall, ok := s.plugins["recall"].(*plugins.RecallPlugin); ok {
			r.Get("/recall", s.handleRecallQuery(recall))
			r.Get("/recall/stats", s.handleRecallStats(recall))
			r.Get("/recall/{fingerprint}", s.handleRecallByFingerprint(recall))
		}
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	pluginNames := make([]string, 0, len(s.plugins))
	endpoints := make([]string, 0, len(s.plugins))
	for name := range s.plugins {
		pluginNames = append(pluginNames, name)
		endpoints = append(endpoints, "/alert/"+name)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "alertops",
		"version":   s.version,
		"plugins":   pluginNames,
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
	}
	if s.connections != nil {
		body["mcp_connected"] = s.connections.ConnectedServers()
	}
	s.writeJSON(w, http.StatusOK, body)
}

// handleAlert decodes the Alertmanager payload and dispatches it to the
// named plugin. Every outcome except an unknown plugin or a malformed body
// answers 200.
func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	pluginName := chi.URLParam(r, "plugin")

	plugin, ok := s.plugins[pluginName]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, &alerts.PluginResponse{
			Status:  "error",
			Plugin:  pluginName,
			Message: "unknown plugin",
		})
		return
	}

	var payload alerts.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, &alerts.PluginResponse{
			Status:  "error",
			Plugin:  pluginName,
			Message: "invalid webhook payload: " + err.Error(),
		})
		return
	}

	s.metrics.AlertsReceived(pluginName, len(payload.Alerts))

	response, err := plugin.Handle(r.Context(), &payload)
	if err != nil {
		// 200 on purpose: a retry from Alertmanager will not fix a
		// permanent handler failure
		s.logger.Error("Plugin error",
			zap.String("plugin", pluginName),
			zap.Error(err))
		s.metrics.PluginError(pluginName)
		s.writeJSON(w, http.StatusOK, &alerts.PluginResponse{
			Status:  "error",
			Plugin:  pluginName,
			Message: err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
