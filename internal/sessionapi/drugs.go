package sessionapi

import (
	"encoding/json"
	"net/http"

	"github.com/linnemanlabs/fieldtriage/internal/drugref"
)

func (a *API) handleListAnticoagulants(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"drugs": drugref.Anticoagulants,
	})
}

func (a *API) handleDrugLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, `{"error":"name query parameter is required"}`, http.StatusBadRequest)
		return
	}

	// The reference list answers without the external service.
	resp := map[string]any{
		"name":          name,
		"anticoagulant": drugref.IsAnticoagulant(name),
	}

	if a.drugs != nil && a.drugs.Enabled() {
		entry, err := a.drugs.Lookup(r.Context(), name)
		if err != nil {
			// Best effort: the local answer still stands.
			a.logger.Warn(r.Context(), "drug reference lookup failed", "name", name, "error", err)
		} else {
			resp["reference"] = entry
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
