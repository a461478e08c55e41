package api

import (
	"net/http"

	"github.com/admaesmo/AidDiag/internal/api/middleware"
	"github.com/admaesmo/AidDiag/internal/api/presenter"
)

const defaultAuditPageSize = 50

type CreateAuditEventPayload struct {
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// handleCreateAuditEvent records a caller-supplied audit event in the
// caller's tenant. The actor is always the authenticated principal.
func (s *Server) handleCreateAuditEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var payload CreateAuditEventPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Action == "" || payload.Entity == "" {
		presenter.Error(w, r, "action and entity are required", http.StatusBadRequest)
		return
	}

	event, err := s.intake.RecordAuditEvent(ctx, pc, payload.Action, payload.Entity, payload.EntityID, payload.Meta)
	if err != nil {
		presenter.Err(w, r, err, "failed to record audit event")
		return
	}
	presenter.JSON(w, r, event, http.StatusCreated)
}

// handleListAuditEvents returns the most recent audit events in the tenant,
// newest first, for admins.
func (s *Server) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	limit := queryInt(r, "limit", defaultAuditPageSize)
	if limit < 1 || limit > maxSymptomPageSize {
		presenter.Error(w, r, "limit out of range", http.StatusBadRequest)
		return
	}

	events, err := s.intake.RecentAuditEvents(ctx, pc, limit)
	if err != nil {
		presenter.Err(w, r, err, "failed to list audit events")
		return
	}
	presenter.JSON(w, r, events, http.StatusOK)
}
