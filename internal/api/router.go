package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthTimeout bounds the dependency checks behind GET /health.
const healthTimeout = 2 * time.Second

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, echoRequestID)
	r.Use(s.logRequests, s.recoverPanics)
	r.Use(s.cors)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)
		// Authenticated by a ticket query parameter.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/entity-store", func(r chi.Router) {
				r.Get("/", s.handleListEntities)
				r.Post("/", s.handleCreateEntity)
				r.Post("/validate", s.handleValidateEntity)
				r.Get("/schema", s.handleListSchemas)
				r.Get("/schema/{platform}", s.handleGetSchema)
				r.Get("/{uniqueID}", s.handleGetEntity)
				r.Put("/{uniqueID}", s.handleUpdateEntity)
				r.Delete("/{uniqueID}", s.handleDeleteEntity)
			})

			r.Route("/numbers", func(r chi.Router) {
				r.Get("/", s.handleListNumbers)
				r.Get("/{uniqueID}", s.handleGetNumber)
				r.Put("/{uniqueID}/value", s.handleSetNumberValue)
			})
		})
	})

	return r
}

// healthResponse is the body of GET /health. Status is "degraded" when a
// configured dependency fails its check; the entity store keeps serving
// from cache either way.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: s.version, Components: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = err.Error()
			return
		}
		resp.Components[name] = "ok"
	}
	if s.db != nil {
		check("database", s.db.PingContext(ctx))
	}
	if s.mqtt != nil {
		check("mqtt", s.mqtt.HealthCheck(ctx))
	}

	writeJSON(w, http.StatusOK, resp)
}
