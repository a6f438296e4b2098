// Package storage provides the audit record storage backends.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
)

// MemoryStorage is an in-memory audit store for tests and local
// development.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*audit.Record
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Write stores a copy of the record.
func (s *MemoryStorage) Write(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records[record.RequestID] = &copied
	return nil
}

// DeleteOlderThan removes records older than the cutoff.
func (s *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if record.Timestamp.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the number of stored records.
func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Get returns a stored record by request ID. Test helper.
func (s *MemoryStorage) Get(requestID string) (*audit.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[requestID]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}
