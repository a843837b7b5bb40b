// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/moodscale/internal/domain/model"
	"github.com/okian/moodscale/pkg/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	InstrumentDependencies
	AssessmentDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	instrumentHandler *InstrumentHandler
	assessmentHandler *AssessmentHandler

	corsOrigins    []string
	requestTimeout time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds the time a handler may run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		instrumentHandler: NewInstrumentHandler(deps),
		assessmentHandler: NewAssessmentHandler(deps),
		requestTimeout:    defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Handler builds the router with middleware and every route attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", NewKind("api.route", ErrNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

		r.Get("/instruments", MetricsMiddleware(s.instrumentHandler.HandleList, "instruments"))
		r.Get("/instruments/{code}", MetricsMiddleware(s.instrumentHandler.HandleGet, "instrument"))
		r.Get("/instruments/{code}/interpretation", MetricsMiddleware(s.instrumentHandler.HandleInterpret, "interpretation"))

		r.Post("/assessments", MetricsMiddleware(s.assessmentHandler.HandleSubmit, "assessments"))
		r.Get("/assessments/{id}", MetricsMiddleware(s.assessmentHandler.HandleGet, "assessment"))
		r.Get("/subjects/{subjectID}/assessments", MetricsMiddleware(s.assessmentHandler.HandleHistory, "history"))
	})
}

// assessmentRequest mirrors the JSON body of POST /assessments.
type assessmentRequest struct {
	SubmissionID string          `json:"submission_id"`
	SubjectID    string          `json:"subject_id"`
	Instrument   string          `json:"instrument"`
	Responses    map[string]*int `json:"responses"`
	Locale       string          `json:"locale"`
	TakenAt      string          `json:"taken_at"`
}

func (a assessmentRequest) submission() (model.Submission, error) {
	sub := model.Submission{
		SubmissionID: a.SubmissionID,
		SubjectID:    a.SubjectID,
		Instrument:   a.Instrument,
		Responses:    make(map[string]int, len(a.Responses)),
		Locale:       a.Locale,
	}
	// A null answer is left out so the scorer reports the item as missing.
	for id, v := range a.Responses {
		if v != nil {
			sub.Responses[id] = *v
		}
	}
	if a.TakenAt != "" {
		ts, err := time.Parse(time.RFC3339, a.TakenAt)
		if err != nil {
			return model.Submission{}, errors.New("invalid taken_at; must be RFC3339")
		}
		sub.TakenAt = ts
	}
	return sub, nil
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Items   []string `json:"items,omitempty"`
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError echoes err to the client for 4xx only; server errors carry the
// status text and are detailed in the request log.
func writeError(w http.ResponseWriter, status int, code string, err error, items ...string) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Items: items})
}

// RequestLogger logs each request at debug level and server errors at error level.
func RequestLogger(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			f := &failure{}
			r = r.WithContext(context.WithValue(r.Context(), failureKey{}, f))
			next.ServeHTTP(ww, r)

			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Duration("duration", time.Since(start)),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				if f.err != nil {
					fields = append(fields, logger.Error(f.err))
				}
				l.Error(r.Context(), "request failed", fields...)
				return
			}
			l.Debug(r.Context(), "request served", fields...)
		})
	}
}
