package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/finguard/finguard/internal/models"
)

// MemoryStore is an in-memory Store implementation used by tests and local
// development. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]models.AuditRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]models.AuditRecord)}
}

// AppendRecord stores the record, rejecting duplicate sequence numbers so a
// broken locking discipline surfaces as an error rather than a forked chain.
func (m *MemoryStore) AppendRecord(ctx context.Context, record models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records[record.SubjectID] {
		if existing.SequenceNumber == record.SequenceNumber {
			return fmt.Errorf("duplicate sequence number %d for subject %s", record.SequenceNumber, record.SubjectID)
		}
	}
	m.records[record.SubjectID] = append(m.records[record.SubjectID], record)
	return nil
}

func (m *MemoryStore) LatestRecord(ctx context.Context, subjectID string) (*models.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.records[subjectID]
	if len(chain) == 0 {
		return nil, nil
	}

	latest := chain[0]
	for _, rec := range chain[1:] {
		if rec.SequenceNumber > latest.SequenceNumber {
			latest = rec
		}
	}
	return &latest, nil
}

func (m *MemoryStore) ListAscending(ctx context.Context, subjectID string) ([]models.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.records[subjectID]
	out := make([]models.AuditRecord, len(chain))
	copy(out, chain)
	// Verification walks in sequence order; the backing slice may have been
	// mutated out of order by tamper-injection tests.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].SequenceNumber < out[j-1].SequenceNumber; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (m *MemoryStore) ListRecent(ctx context.Context, subjectID string, limit int, actionType models.ActionType) ([]models.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.records[subjectID]
	out := make([]models.AuditRecord, 0, len(chain))
	for _, rec := range chain {
		if actionType != "" && rec.ActionType != actionType {
			continue
		}
		out = append(out, rec)
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Timestamp.After(out[j-1].Timestamp); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
