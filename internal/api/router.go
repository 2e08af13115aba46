package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Handle("/metrics", s.metricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/reset", s.handleReset)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/commands", s.handleListCommands)
			})
		})
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	MQTTConnected bool   `json:"mqtt_connected"`
	Devices       int    `json:"devices"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// handleHealth reports "ok", or "degraded" while the bus is disconnected.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.house.BusConnected()
	status := "ok"
	if !connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       s.version,
		MQTTConnected: connected,
		Devices:       s.house.DeviceCount(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// handleReset schedules a setup and re-registration on the poll loop.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.house.RequestReset()
	s.logger.Info("reset requested via API", "request_id", requestID(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset scheduled"})
}
