package audit

import (
	"fmt"

	"github.com/admaesmo/AidDiag/internal/config"
	"github.com/admaesmo/AidDiag/internal/core"
)

// Build constructs the auditor selected by the configuration.
func Build(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file":
		return NewFileAuditor(cfg.Path)
	case "memory":
		return NewMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}
