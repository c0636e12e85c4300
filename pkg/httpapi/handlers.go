package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// SessionParam lets a client resume a known session id, typically the one
// a payment return URL carries.
const SessionParam = "session"

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	View   *wizard.View      `json:"view,omitempty"`
}

// FieldsRequest is the body of PATCH /sessions/{id}/fields. Blur marks the
// fields as touched so their errors show.
type FieldsRequest struct {
	Values map[string]any `json:"values"`
	Blur   bool           `json:"blur,omitempty"`
}

// PartialPaymentRequest is the body of POST /sessions/{id}/partial-payment.
type PartialPaymentRequest struct {
	Opted bool `json:"opted"`
}

func (s *Server) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appID"]
	app, ok := s.apps.Application(appID)
	if !ok {
		logger.Info("application does not exist", zap.String("app", appID))
		respondWithError(w, http.StatusNotFound, "application does not exist")
		return
	}

	query := r.URL.Query()
	ctx := context.WithoutCancel(r.Context())

	id := strings.TrimSpace(query.Get(SessionParam))
	if existing, ok := s.registry.Get(id); ok {
		if existing.Application().ID != app.ID {
			respondWithError(w, http.StatusConflict, "session belongs to another application")
			return
		}
		if progress.HasReturnMarker(query) {
			if err := existing.ExternalReturn(ctx, query); err != nil {
				s.respondWithSessionError(w, existing, err)
				return
			}
		}
		respondWithJSON(w, http.StatusOK, existing.View())
		return
	}

	session, err := s.factory(app, id, strings.TrimSpace(r.Header.Get(s.ownerHeader)))
	if err != nil {
		logger.Error("error creating session", zap.String("app", appID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error creating session")
		return
	}
	if err := session.Resume(ctx, query); err != nil {
		s.respondWithSessionError(w, session, err)
		return
	}
	s.registry.Put(session)
	logger.Info("session created", zap.String("session", session.ID()), zap.String("app", appID))
	respondWithJSON(w, http.StatusCreated, session.View())
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (s *Server) HandleSetFields(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req FieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	ctx := context.WithoutCancel(r.Context())
	err := session.SetFields(ctx, req.Values)
	if err == nil && req.Blur {
		for name := range req.Values {
			if err = session.Touch(ctx, name); err != nil {
				break
			}
		}
	}
	s.respond(w, session, err)
}

func (s *Server) HandlePartialPayment(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req PartialPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	s.respond(w, session, session.SetPartialPayment(context.WithoutCancel(r.Context()), req.Opted))
}

func (s *Server) HandleNext(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, (*wizard.Session).Next)
}

func (s *Server) HandlePrevious(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, (*wizard.Session).Previous)
}

func (s *Server) HandleAction(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, (*wizard.Session).Act)
}

func (s *Server) HandleStartOver(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, (*wizard.Session).StartOver)
}

func (s *Server) HandleReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.event(w, r, func(session *wizard.Session, ctx context.Context) error {
		return session.ExternalReturn(ctx, query)
	})
}

// event runs fn detached from the request so a client disconnect never
// cancels a backend call half way.
func (s *Server) event(w http.ResponseWriter, r *http.Request, fn func(*wizard.Session, context.Context) error) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respond(w, session, fn(session, context.WithoutCancel(r.Context())))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	id := mux.Vars(r)["id"]
	session, ok := s.registry.Get(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "session does not exist")
		return nil, false
	}
	return session, true
}

func (s *Server) respond(w http.ResponseWriter, session *wizard.Session, err error) {
	if err != nil {
		s.respondWithSessionError(w, session, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (s *Server) respondWithSessionError(w http.ResponseWriter, session *wizard.Session, err error) {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var verr *wizard.ValidationError
	if errors.As(err, &verr) {
		resp.Error = "validation failed"
		resp.Fields = verr.Fields
	}
	if session != nil {
		view := session.View()
		resp.View = &view
	}
	if code >= http.StatusInternalServerError {
		logger.Error("session event failed", zap.Int("status", code), zap.Error(err))
	}
	respondWithJSON(w, code, resp)
}

func statusFor(err error) int {
	switch {
	case wizard.IsValidation(err), errors.Is(err, steps.ErrMissingEmail):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wizard.ErrInvalidReturn):
		return http.StatusBadRequest
	case errors.Is(err, steps.ErrPending),
		errors.Is(err, steps.ErrNoAction),
		errors.Is(err, steps.ErrTerminal),
		errors.Is(err, wizard.ErrNotFieldsStep),
		errors.Is(err, wizard.ErrPreviousDisallowed),
		errors.Is(err, wizard.ErrNoSteps):
		return http.StatusConflict
	case errors.Is(err, steps.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case steps.IsRetryable(err), steps.IsFatal(err), steps.IsDegraded(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
