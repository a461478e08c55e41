package audit

import "github.com/admaesmo/AidDiag/internal/core"

// NoopAuditor drops every record. Used when auditing is disabled.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (n *NoopAuditor) Log(core.AuthRecord) error { return nil }
func (n *NoopAuditor) Close() error              { return nil }
