package sessionapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
	"github.com/linnemanlabs/fieldtriage/internal/assess/memstore"
	"github.com/linnemanlabs/fieldtriage/internal/drugref"
	"github.com/linnemanlabs/fieldtriage/internal/recheck"
)

func newTestRouter(t *testing.T) (chi.Router, *assess.Service) {
	t.Helper()
	svc := assess.NewService(memstore.New(), nil, nil, nil, assess.Options{
		Recheck: recheck.Config{Seconds: 10, CueRepeat: 1, CueIntervalSeconds: 1},
	})
	api := New(nil, svc, drugref.NewClient(""))
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, svc
}

func createSession(t *testing.T, r chi.Router) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session = %d, want 201", rec.Code)
	}
	var snap assess.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Record == nil || snap.Record.ID == "" {
		t.Fatal("create session returned no ID")
	}
	return snap.Record.ID
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	svc := assess.NewService(memstore.New(), nil, nil, nil, assess.Options{})
	api := New(nil, svc, nil)
	if api == nil {
		t.Fatal("New(nil, svc, nil) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, svc, nil) left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	svc := assess.NewService(memstore.New(), nil, nil, nil, assess.Options{})
	api := New(log.Nop(), svc, nil)
	if api == nil {
		t.Fatal("New(logger, svc, nil) returned nil API")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil, nil)
}

// Session lifecycle

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	// GET the session back
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session = %d, want 200", rec.Code)
	}

	// DELETE ends it
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("end session = %d, want 204", rec.Code)
	}

	// Gone afterwards
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get ended session = %d, want 404", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// Field updates

func TestApplyField(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	tests := []struct {
		name       string
		fieldID    string
		body       string
		wantStatus int
	}{
		{"valid yes answer", "stroke.face", `{"value":"Yes"}`, http.StatusOK},
		{"valid with comment", "stroke.onset_time", `{"value":"14:20","comment":"per bystander"}`, http.StatusOK},
		{"domain violation", "gcs.eye", `{"value":"12"}`, http.StatusUnprocessableEntity},
		{"unknown field", "nope.nothing", `{"value":"Yes"}`, http.StatusNotFound},
		{"invalid JSON", "stroke.face", `{bad`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/"+id+"/fields/"+tt.fieldID, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("PUT fields/%s = %d, want %d", tt.fieldID, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestApplyField_ReturnsCascade(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/"+id+"/fields/stroke.blood_thinner",
		strings.NewReader(`{"value":"Yes","comment":"Warfarin"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var cs assess.ChangeSet
	if err := json.NewDecoder(rec.Body).Decode(&cs); err != nil {
		t.Fatalf("decode changeset: %v", err)
	}
	if len(cs.Forced) != 1 || cs.Forced[0].Field != assess.FieldFlagBleed {
		t.Errorf("forced = %+v, want flag.bleed_anticoagulant", cs.Forced)
	}
	if cs.OverallRisk != assess.LevelCaution {
		t.Errorf("overall risk = %q, want caution", cs.OverallRisk)
	}
}

// Verdicts and summary

func TestGetVerdicts(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/verdicts", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Verdicts    map[assess.ScaleID]assess.Verdict `json:"verdicts"`
		OverallRisk assess.Level                      `json:"overall_risk"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Verdicts) != 5 {
		t.Errorf("verdicts = %d scales, want 5", len(resp.Verdicts))
	}
	if resp.OverallRisk != assess.LevelCaution {
		t.Errorf("overall risk = %q, want caution", resp.OverallRisk)
	}
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/summary", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type = %q, want text/plain", ct)
	}
	if !strings.Contains(rec.Body.String(), "Assessment summary") {
		t.Errorf("summary body missing header:\n%s", rec.Body.String())
	}
}

// Observations

func TestAddObservation(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBand   string
	}{
		{"critical spo2", `{"set":"OBS1","metric":"spo2","value":"88"}`, http.StatusCreated, "critical"},
		{"normal pulse", `{"set":"OBS1","metric":"pulse","value":"80"}`, http.StatusCreated, "normal"},
		{"unknown metric", `{"set":"OBS1","metric":"blood_sugar","value":"5"}`, http.StatusNotFound, ""},
		{"missing set", `{"metric":"spo2","value":"95"}`, http.StatusBadRequest, ""},
		{"invalid JSON", `{bad`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/observations", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBand != "" {
				var obs assess.Observation
				if err := json.NewDecoder(rec.Body).Decode(&obs); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if string(obs.Band) != tt.wantBand {
					t.Errorf("band = %q, want %q", obs.Band, tt.wantBand)
				}
			}
		})
	}
}

// Recheck countdown

func TestRecheckEndpoints(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	// Idle before start
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/recheck", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get recheck = %d, want 200", rec.Code)
	}
	var state recheck.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Status != recheck.StatusIdle {
		t.Errorf("status = %q, want idle", state.Status)
	}

	// Start
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/recheck", http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start recheck = %d, want 200", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Status != recheck.StatusRunning || state.RemainingSeconds != 10 {
		t.Errorf("state = %+v, want running with 10s", state)
	}
}

// Drug reference

func TestListAnticoagulants(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/drugs/anticoagulants", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Drugs []string `json:"drugs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Drugs) != len(drugref.Anticoagulants) {
		t.Errorf("drugs = %d, want %d", len(resp.Drugs), len(drugref.Anticoagulants))
	}
}

func TestDrugLookup(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drugs/lookup?name=Warfarin", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Name          string `json:"name"`
		Anticoagulant bool   `json:"anticoagulant"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Anticoagulant {
		t.Error("Warfarin should be flagged as anticoagulant")
	}

	// Missing name
	req = httptest.NewRequest(http.MethodGet, "/api/v1/drugs/lookup", http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// Method restrictions

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	id := createSession(t, r)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/sessions"},
		{http.MethodPost, "/api/v1/sessions/" + id + "/verdicts"},
		{http.MethodDelete, "/api/v1/sessions/" + id + "/recheck"},
		{http.MethodPut, "/api/v1/drugs/anticoagulants"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s %s = %d, want 405", tt.method, tt.path, rec.Code)
			}
		})
	}
}

func FuzzApplyFieldPayload(f *testing.F) {
	f.Add("stroke.face", `{"value":"Yes"}`)
	f.Add("gcs.eye", `{"value":"4","comment":"opens spontaneously"}`)
	f.Add("avpu.level", `{"value":"Unresponsive"}`)
	f.Add("flag.trauma", `{"value":"Unknown"}`)
	f.Add("", "")
	f.Add("x", `{bad json`)
	f.Add("stroke.face", `{"value":"\x00\x01"}`)
	f.Add("frat.falls", `{"value":"999999999999999999999"}`)

	f.Fuzz(func(t *testing.T, fieldID, body string) {
		svc := assess.NewService(memstore.New(), nil, nil, nil, assess.Options{})
		api := New(nil, svc, nil)
		r := chi.NewRouter()
		api.RegisterRoutes(r)

		snap, err := svc.Create(t.Context())
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		req := httptest.NewRequest(http.MethodPut,
			"/api/v1/sessions/"+snap.Record.ID+"/fields/"+url.PathEscape(fieldID), strings.NewReader(body))
		rec := httptest.NewRecorder()

		// Must not panic, and must answer with a sane status.
		r.ServeHTTP(rec, req)
		if rec.Code < 200 || rec.Code > 599 {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
