// Package memstore provides an in-memory implementation of assess.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
)

// Store holds session records in memory. Suitable for dev/testing and for
// single-instance deployments.
type Store struct {
	mu      sync.RWMutex
	records map[string]*assess.Record // session ID -> record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{records: make(map[string]*assess.Record)}
}

// Get retrieves a session record by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*assess.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return copyRecord(r), true, nil
}

// Put stores a copy of the session record.
func (s *Store) Put(_ context.Context, r *assess.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = copyRecord(r)
	return nil
}

// Delete removes a session record. Deleting a missing ID is a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func copyRecord(r *assess.Record) *assess.Record {
	cp := *r
	cp.Fields = make(map[assess.FieldID]assess.FieldValue, len(r.Fields))
	for id, fv := range r.Fields {
		cp.Fields[id] = fv
	}
	cp.Observations = append([]assess.Observation(nil), r.Observations...)
	return &cp
}
