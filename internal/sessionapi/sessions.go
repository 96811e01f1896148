package sessionapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
)

type applyFieldRequest struct {
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

type observationRequest struct {
	Set    string `json:"set"`
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

func (a *API) handleApplyField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fieldID := assess.FieldID(chi.URLParam(r, "fieldID"))

	var req applyFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	cs, err := a.svc.ApplyField(r.Context(), id, fieldID, req.Value, req.Comment)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to apply field", id)
		return
	}

	a.logger.Info(r.Context(), "field applied",
		"session_id", id,
		"field_id", fieldID,
		"forced_writes", len(cs.Forced),
		"overall_risk", cs.OverallRisk,
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cs)
}

func (a *API) handleAddObservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if req.Set == "" || req.Metric == "" {
		http.Error(w, `{"error":"set and metric are required"}`, http.StatusBadRequest)
		return
	}

	obs, err := a.svc.Observe(r.Context(), id, req.Set, req.Metric, req.Value)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to record observation", id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(obs)
}

func (a *API) handleStartRecheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := a.svc.StartRecheck(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to start recheck", id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

func (a *API) handleGetRecheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := a.svc.RecheckState(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, "failed to get recheck state", id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}
