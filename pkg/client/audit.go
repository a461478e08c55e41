package client

import (
	"context"

	"github.com/admaesmo/AidDiag/internal/api"
	"github.com/admaesmo/AidDiag/internal/core"
)

// ListAuditEvents retrieves the latest audit events in the caller's tenant,
// limited to the specified number. Requires an admin token.
func (c *Client) ListAuditEvents(ctx context.Context, limit uint) ([]core.AuditEvent, string, error) {
	ub := c.url().setPath(api.AuditEventsRoute)
	if limit > 0 {
		ub = ub.addQueryParam("limit", limit)
	}
	var events []core.AuditEvent
	correlation, err := c.get(ctx, ub.build(), &events)
	return events, correlation, err
}

// RecordAuditEvent writes a custom audit event attributed to the caller.
func (c *Client) RecordAuditEvent(ctx context.Context, action, entity, entityID string, meta map[string]any) (*core.AuditEvent, string, error) {
	var event core.AuditEvent
	correlation, err := c.post(ctx, c.url().
		setPath(api.AuditEventsRoute).
		build(), api.CreateAuditEventPayload{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}, &event)
	if err != nil {
		return nil, correlation, err
	}
	return &event, correlation, nil
}
