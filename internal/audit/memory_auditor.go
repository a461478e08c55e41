package audit

import (
	"sync"

	"github.com/admaesmo/AidDiag/internal/core"
)

// MemoryAuditor keeps auth audit records in memory. Used in tests and demo
// mode.
type MemoryAuditor struct {
	mu      sync.RWMutex
	records []core.AuthRecord
}

func NewMemoryAuditor() *MemoryAuditor {
	return &MemoryAuditor{}
}

func (m *MemoryAuditor) Log(rec core.AuthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Recent returns the last n records, newest last.
func (m *MemoryAuditor) Recent(n int) []core.AuthRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]core.AuthRecord, n)
	copy(out, m.records[len(m.records)-n:])
	return out
}

func (m *MemoryAuditor) Close() error {
	return nil
}
