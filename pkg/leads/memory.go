// Package leads provides lead record stores backing the crm_update
// action and condition evaluation.
package leads

import (
	"context"
	"sync"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
)

// MemoryStore is an in-process lead store, used with file persistence
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.LeadRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.LeadRecord)}
}

// Seed inserts or replaces a lead record.
func (s *MemoryStore) Seed(leadID string, record models.LeadRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[leadID] = record.Clone()
}

func (s *MemoryStore) Get(_ context.Context, leadID string) (models.LeadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[leadID]
	if !ok {
		return nil, protocol.ErrLeadNotFound
	}

	return record.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, leadID string, patch models.LeadPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[leadID]
	if !ok {
		return protocol.ErrLeadNotFound
	}

	for field, value := range patch {
		record[field] = value
	}

	return nil
}
