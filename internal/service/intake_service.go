package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/core"
)

// IntakeService handles symptom capture, the stubbed prediction call, case
// management and tenant audit events. Every operation is scoped by the
// tenant id from the caller's principal context.
type IntakeService struct {
	intake core.IntakeStore
	cases  core.CaseStore
	audits core.AuditStore
}

func NewIntakeService(intake core.IntakeStore, cases core.CaseStore, audits core.AuditStore) *IntakeService {
	return &IntakeService{
		intake: intake,
		cases:  cases,
		audits: audits,
	}
}

func (s *IntakeService) CreateSymptomEntry(ctx context.Context, pc *auth.PrincipalContext, patientID uuid.UUID, payload map[string]any) (*core.SymptomEntry, error) {
	entry := &core.SymptomEntry{
		TenantID:  pc.TenantID,
		PatientID: patientID,
		Payload:   payload,
	}
	if err := s.intake.InsertSymptomEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("inserting symptom entry: %w", err)
	}
	return entry, nil
}

// SymptomPage is one keyset-paginated page of symptom entries.
type SymptomPage struct {
	Total      int                 `json:"total"`
	Items      []core.SymptomEntry `json:"items"`
	NextCursor *time.Time          `json:"next_cursor,omitempty"`
}

func (s *IntakeService) ListSymptomEntries(ctx context.Context, pc *auth.PrincipalContext, patientID uuid.UUID, limit int, cursor *time.Time) (*SymptomPage, error) {
	items, total, next, err := s.intake.ListSymptomEntries(ctx, pc.TenantID, patientID, limit, cursor)
	if err != nil {
		return nil, fmt.Errorf("listing symptom entries: %w", err)
	}
	return &SymptomPage{Total: total, Items: items, NextCursor: next}, nil
}

// Predict runs the placeholder scorer against a symptom entry, persists the
// prediction and records an audit event in the same transaction.
func (s *IntakeService) Predict(ctx context.Context, pc *auth.PrincipalContext, patientID, symptomEntryID uuid.UUID, modelVersion string) (*core.Prediction, error) {
	entry, err := s.intake.GetSymptomEntry(ctx, symptomEntryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, httpError(http.StatusNotFound, fmt.Errorf("symptom entry not found"))
		}
		return nil, fmt.Errorf("loading symptom entry: %w", err)
	}
	if entry.TenantID != pc.TenantID {
		return nil, httpError(http.StatusNotFound, fmt.Errorf("symptom entry not found"))
	}
	if entry.PatientID != patientID {
		return nil, httpError(http.StatusBadRequest, fmt.Errorf("patient mismatch"))
	}

	// placeholder model: random score, positive above 0.5
	score := math.Round(rand.Float64()*1e5) / 1e5
	label := "NEG"
	if score > 0.5 {
		label = "POS"
	}

	prediction := &core.Prediction{
		TenantID:       pc.TenantID,
		PatientID:      patientID,
		SymptomEntryID: symptomEntryID,
		ModelVersion:   modelVersion,
		Score:          score,
		Label:          label,
	}
	event := &core.AuditEvent{
		TenantID: pc.TenantID,
		ActorSub: pc.PrincipalID,
		Action:   "predict",
		Entity:   "prediction",
		Meta: map[string]any{
			"model_version": modelVersion,
			"score":         score,
			"label":         label,
		},
	}
	if err := s.intake.SavePrediction(ctx, prediction, event); err != nil {
		return nil, fmt.Errorf("saving prediction: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("prediction_id", prediction.ID.String()).
		Str("label", label).
		Msg("prediction recorded")
	return prediction, nil
}

// PredictionPage is one offset-paginated page of predictions.
type PredictionPage struct {
	Total int               `json:"total"`
	Items []core.Prediction `json:"items"`
}

func (s *IntakeService) ListPredictions(ctx context.Context, pc *auth.PrincipalContext, patientID uuid.UUID, limit, offset int) (*PredictionPage, error) {
	items, total, err := s.intake.ListPredictions(ctx, pc.TenantID, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing predictions: %w", err)
	}
	return &PredictionPage{Total: total, Items: items}, nil
}

func (s *IntakeService) ListCases(ctx context.Context, pc *auth.PrincipalContext, assignedTo uuid.UUID, status string) ([]core.Case, error) {
	items, err := s.cases.ListCases(ctx, pc.TenantID, assignedTo, status)
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	return items, nil
}

func (s *IntakeService) UpdateCaseStatus(ctx context.Context, pc *auth.PrincipalContext, caseID uuid.UUID, status string) (*core.Case, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, httpError(http.StatusNotFound, fmt.Errorf("case not found"))
		}
		return nil, fmt.Errorf("loading case: %w", err)
	}
	if c.TenantID != pc.TenantID {
		return nil, httpError(http.StatusNotFound, fmt.Errorf("case not found"))
	}

	updated, err := s.cases.UpdateCaseStatus(ctx, caseID, status)
	if err != nil {
		return nil, fmt.Errorf("updating case: %w", err)
	}
	return updated, nil
}

func (s *IntakeService) RecordAuditEvent(ctx context.Context, pc *auth.PrincipalContext, action, entity, entityID string, meta map[string]any) (*core.AuditEvent, error) {
	ev := &core.AuditEvent{
		TenantID: pc.TenantID,
		ActorSub: pc.PrincipalID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}
	if err := s.audits.InsertAuditEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("inserting audit event: %w", err)
	}
	return ev, nil
}

func (s *IntakeService) RecentAuditEvents(ctx context.Context, pc *auth.PrincipalContext, limit int) ([]core.AuditEvent, error) {
	events, err := s.audits.RecentAuditEvents(ctx, pc.TenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	return events, nil
}
