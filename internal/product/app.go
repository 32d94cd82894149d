package product

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MonitoringLab/internal/telemetry"
	"MonitoringLab/pkg/kit"
)

const maxCreateBody = 1 << 20

// Emitter accepts events for asynchronous delivery. Implementations must not
// block.
type Emitter interface {
	Emit(events ...telemetry.Event)
}

type Info struct {
	Name    string
	Version string
}

type Server struct {
	Service *Service
	Store   Store
	Events  Emitter
	Log     *zap.Logger
	Info    Info

	// WriteMiddlewares guard POST /api/products, e.g. a rate limiter.
	WriteMiddlewares []func(http.Handler) http.Handler
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/products", s.list)
		r.With(s.WriteMiddlewares...).Post("/products", s.create)
		r.Get("/products/{id}", s.get)
	})

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, healthResponse{
		Status:  "UP",
		Service: s.Info.Name,
		Version: s.Info.Version,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.logger().Info("fetching all products")

	res, err := s.Service.List(r.Context())
	s.emit(res.Events)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res.Value)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid id", map[string]any{"id": raw})
		return
	}
	s.logger().Info("fetching product", zap.Int64("id", id))

	res, err := s.Service.Get(r.Context(), id)
	s.emit(res.Events)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !res.Found {
		kit.WriteStatus(w, http.StatusNotFound)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res.Value)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in Product
	if err := kit.DecodeJSON(w, r, maxCreateBody, &in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "body too large", nil)
			return
		}
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	res, err := s.Service.Create(r.Context(), in)
	s.emit(res.Events)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res.Value)
}

func (s *Server) emit(events []telemetry.Event) {
	if s.Events == nil || len(events) == 0 {
		return
	}
	s.Events.Emit(events...)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger().Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
