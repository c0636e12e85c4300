// Package httpapi exposes wizard sessions over a small JSON REST surface.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// DefaultOwnerHeader carries the authenticated user id, when any.
const DefaultOwnerHeader = "X-User-ID"

// Applications resolves application configurations by id.
type Applications interface {
	Application(id string) (*model.Application, bool)
}

// SessionFactory builds a session for app. id may be empty, in which case
// the session mints its own.
type SessionFactory func(app *model.Application, id, owner string) (*wizard.Session, error)

// Option configures a Server.
type Option func(*Server)

// WithRegistry replaces the default session registry.
func WithRegistry(r *Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithOwnerHeader changes the header the owner id is read from.
func WithOwnerHeader(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.ownerHeader = name
		}
	}
}

// Server is the HTTP surface.
type Server struct {
	http.Server
	apps        Applications
	factory     SessionFactory
	registry    *Registry
	ownerHeader string
}

// NewServer wires the routes.
func NewServer(addr string, apps Applications, factory SessionFactory, options ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		apps:        apps,
		factory:     factory,
		registry:    NewRegistry(DefaultSessionTTL, 0, 0),
		ownerHeader: DefaultOwnerHeader,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/applications/{appID}/sessions", s.HandleCreateSession).Methods(http.MethodPost)

	sessions := router.PathPrefix("/sessions/{id}").Subrouter()
	sessions.Use(s.rateLimit)
	sessions.HandleFunc("", s.HandleGetSession).Methods(http.MethodGet)
	sessions.HandleFunc("/fields", s.HandleSetFields).Methods(http.MethodPatch)
	sessions.HandleFunc("/partial-payment", s.HandlePartialPayment).Methods(http.MethodPost)
	sessions.HandleFunc("/next", s.HandleNext).Methods(http.MethodPost)
	sessions.HandleFunc("/previous", s.HandlePrevious).Methods(http.MethodPost)
	sessions.HandleFunc("/action", s.HandleAction).Methods(http.MethodPost)
	sessions.HandleFunc("/start-over", s.HandleStartOver).Methods(http.MethodPost)
	sessions.HandleFunc("/return", s.HandleReturn).Methods(http.MethodGet, http.MethodPost)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	logger.Info("starting http server", zap.String("addr", s.Addr))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.registry.Allow(mux.Vars(r)["id"]) {
			respondWithError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info(r.RequestURI,
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}
