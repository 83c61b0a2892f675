// Package web exposes the engine over HTTP: the public submission
// endpoint plus the form-definition API.
package web

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formworks-hq/formworks/internal/forms"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/submission"
	"github.com/formworks-hq/formworks/internal/web/middleware"
)

// Server hosts the HTTP API.
type Server struct {
	router   chi.Router
	server   *http.Server
	logger   *zap.Logger
	pipeline *submission.Pipeline
	lister   *submission.Lister
	orch     *forms.Orchestrator
	store    *metadata.Store
}

// NewServer wires the router and handlers.
func NewServer(addr string, pipeline *submission.Pipeline, lister *submission.Lister,
	orch *forms.Orchestrator, store *metadata.Store, logger *zap.Logger) *Server {

	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:   logger,
		pipeline: pipeline,
		lister:   lister,
		orch:     orch,
		store:    store,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	r.Get("/health", s.handleHealth)

	r.Post("/process", s.handleProcess)
	r.Post("/process/resume", s.handleResume)

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", s.handleListForms)
		r.Post("/", s.handleCreateForm)
		r.Route("/{formID}", func(r chi.Router) {
			r.Get("/", s.handleGetForm)
			r.Put("/", s.handleUpdateForm)
			r.Delete("/", s.handleDeleteForm)
			r.Post("/initialize", s.handleInitialize)
			r.Post("/uninitialize", s.handleUninitialize)
			r.Post("/finalize", s.handleFinalize)
			r.Post("/fields/types", s.handleSetFieldTypes)
			r.Post("/fields/edit", s.handleEditFields)
			r.Put("/clients", s.handleSetClients)
			r.Put("/omit-list", s.handleSetOmitList)
			r.Get("/submissions", s.handleListSubmissions)
			r.Get("/submissions/{submissionID}", s.handleGetSubmission)
			r.Delete("/submissions/{submissionID}", s.handleDeleteSubmission)
		})
	})

	s.router = r
	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// remoteIP extracts the caller's address without the port.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
