// Package sessionapi exposes assessment sessions over HTTP.
package sessionapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
	"github.com/linnemanlabs/fieldtriage/internal/drugref"
	"github.com/linnemanlabs/fieldtriage/internal/recheck"
	"github.com/linnemanlabs/fieldtriage/internal/report"
)

// AssessmentService defines the business operations sessionapi needs.
type AssessmentService interface {
	Create(ctx context.Context) (*assess.Snapshot, error)
	Snapshot(ctx context.Context, id string) (*assess.Snapshot, error)
	ApplyField(ctx context.Context, id string, fieldID assess.FieldID, value, comment string) (*assess.ChangeSet, error)
	Verdicts(ctx context.Context, id string) (map[assess.ScaleID]assess.Verdict, assess.Level, error)
	Observe(ctx context.Context, id, set, metric, value string) (assess.Observation, error)
	StartRecheck(ctx context.Context, id string) (recheck.State, error)
	RecheckState(ctx context.Context, id string) (recheck.State, error)
	End(ctx context.Context, id string) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AssessmentService
	drugs  *drugref.Client
}

// New creates a new API handler. The drug reference client is optional.
func New(logger log.Logger, svc AssessmentService, drugs *drugref.Client) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("assessment service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		drugs:  drugs,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", a.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetSession)
			r.Delete("/", a.handleEndSession)
			r.Put("/fields/{fieldID}", a.handleApplyField)
			r.Get("/verdicts", a.handleGetVerdicts)
			r.Get("/summary", a.handleGetSummary)
			r.Post("/observations", a.handleAddObservation)
			r.Post("/recheck", a.handleStartRecheck)
			r.Get("/recheck", a.handleGetRecheck)
		})
		r.Get("/drugs/anticoagulants", a.handleListAnticoagulants)
		r.Get("/drugs/lookup", a.handleDrugLookup)
	})
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.Create(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to create session")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fieldtriage.session.id", snap.Record.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(snap)
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fieldtriage.session.id", id))

	snap, err := a.svc.Snapshot(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to get session", id)
		return
	}

	span.SetAttributes(attribute.String("fieldtriage.session.risk", string(snap.OverallRisk)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.svc.End(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err, "failed to end session", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetVerdicts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	verdicts, overall, err := a.svc.Verdicts(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to get verdicts", id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"verdicts":     verdicts,
		"overall_risk": overall,
	})
}

func (a *API) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := a.svc.Snapshot(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to get session for summary", id)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(report.Render(snap)))
}

// writeServiceError maps service sentinels onto HTTP statuses. Unknown
// errors become 500s without leaking detail.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg, id string) {
	switch {
	case errors.Is(err, assess.ErrSessionNotFound):
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	case errors.Is(err, assess.ErrUnknownField):
		http.Error(w, `{"error":"unknown field"}`, http.StatusNotFound)
	case errors.Is(err, assess.ErrInvalidValue):
		http.Error(w, `{"error":"value not in field domain"}`, http.StatusUnprocessableEntity)
	default:
		a.logger.Error(r.Context(), err, msg, "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
