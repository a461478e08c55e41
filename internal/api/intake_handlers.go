package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/admaesmo/AidDiag/internal/api/middleware"
	"github.com/admaesmo/AidDiag/internal/api/presenter"
)

const (
	defaultSymptomPageSize = 20
	maxSymptomPageSize     = 100
)

type CreateSymptomsPayload struct {
	PatientID uuid.UUID      `json:"patient_id"`
	TenantID  *uuid.UUID     `json:"tenant_id,omitempty"`
	Symptoms  map[string]any `json:"symptoms"`
}

// handleCreateSymptoms records a structured symptom payload for a patient.
// The tenant is always taken from the token; a conflicting tenant in the
// body is rejected.
func (s *Server) handleCreateSymptoms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var payload CreateSymptomsPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.PatientID == uuid.Nil || len(payload.Symptoms) == 0 {
		presenter.Error(w, r, "patient_id and symptoms are required", http.StatusBadRequest)
		return
	}
	if payload.TenantID != nil && *payload.TenantID != pc.TenantID {
		presenter.Error(w, r, "tenant mismatch", http.StatusBadRequest)
		return
	}

	entry, err := s.intake.CreateSymptomEntry(ctx, pc, payload.PatientID, payload.Symptoms)
	if err != nil {
		presenter.Err(w, r, err, "failed to record symptoms")
		return
	}
	presenter.JSON(w, r, entry, http.StatusCreated)
}

// handleListSymptoms returns a keyset-paginated page of symptom entries for
// one patient, newest first. The cursor is the created_at of the last item
// of the previous page, RFC 3339.
func (s *Server) handleListSymptoms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
	if err != nil {
		presenter.Error(w, r, "patient_id is required", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", defaultSymptomPageSize)
	if limit < 1 || limit > maxSymptomPageSize {
		presenter.Error(w, r, "limit out of range", http.StatusBadRequest)
		return
	}

	var cursor *time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			presenter.Error(w, r, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = &t
	}

	page, err := s.intake.ListSymptomEntries(ctx, pc, patientID, limit, cursor)
	if err != nil {
		presenter.Err(w, r, err, "failed to list symptoms")
		return
	}
	presenter.JSON(w, r, page, http.StatusOK)
}

type PredictPayload struct {
	PatientID      uuid.UUID `json:"patient_id"`
	SymptomEntryID uuid.UUID `json:"symptom_entry_id"`
	ModelVersion   string    `json:"model_version,omitempty"`
}

// handlePredict runs the placeholder scorer on a captured symptom entry.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var payload PredictPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.PatientID == uuid.Nil || payload.SymptomEntryID == uuid.Nil {
		presenter.Error(w, r, "patient_id and symptom_entry_id are required", http.StatusBadRequest)
		return
	}
	if payload.ModelVersion == "" {
		payload.ModelVersion = "stub-0.1"
	}

	prediction, err := s.intake.Predict(ctx, pc, payload.PatientID, payload.SymptomEntryID, payload.ModelVersion)
	if err != nil {
		presenter.Err(w, r, err, "prediction failed")
		return
	}
	presenter.JSON(w, r, prediction, http.StatusCreated)
}

// handleListPredictions returns an offset-paginated page of predictions for
// one patient.
func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
	if err != nil {
		presenter.Error(w, r, "patient_id is required", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", defaultSymptomPageSize)
	if limit < 1 || limit > maxSymptomPageSize {
		presenter.Error(w, r, "limit out of range", http.StatusBadRequest)
		return
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		presenter.Error(w, r, "offset out of range", http.StatusBadRequest)
		return
	}

	page, err := s.intake.ListPredictions(ctx, pc, patientID, limit, offset)
	if err != nil {
		presenter.Err(w, r, err, "failed to list predictions")
		return
	}
	presenter.JSON(w, r, page, http.StatusOK)
}

// handleListCases lists cases in the caller's tenant, optionally filtered by
// assignee, for professionals and admins.
func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var assignedTo uuid.UUID
	if raw := r.URL.Query().Get("assigned_to"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			presenter.Error(w, r, "invalid assigned_to", http.StatusBadRequest)
			return
		}
		assignedTo = id
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "open"
	}

	cases, err := s.intake.ListCases(ctx, pc, assignedTo, status)
	if err != nil {
		presenter.Err(w, r, err, "failed to list cases")
		return
	}
	presenter.JSON(w, r, cases, http.StatusOK)
}

type PatchCasePayload struct {
	Status string `json:"status"`
}

// handlePatchCase updates a case's status.
func (s *Server) handlePatchCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	caseID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		presenter.Error(w, r, "invalid case id", http.StatusBadRequest)
		return
	}

	var payload PatchCasePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Status == "" {
		presenter.Error(w, r, "status is required", http.StatusBadRequest)
		return
	}

	updated, err := s.intake.UpdateCaseStatus(ctx, pc, caseID, payload.Status)
	if err != nil {
		presenter.Err(w, r, err, "failed to update case")
		return
	}
	presenter.JSON(w, r, updated, http.StatusOK)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
