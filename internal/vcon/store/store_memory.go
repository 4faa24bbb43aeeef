package store

import (
	"context"
	"sync"

	"vcon/pkg/vcon"
)

// InMemoryStore keeps documents in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]string)}
}

func (s *InMemoryStore) Create(_ context.Context, v *vcon.Vcon) error {
	id, doc, err := encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[id]; exists {
		return ErrConflict
	}
	s.docs[id] = doc
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, v *vcon.Vcon) error {
	id, doc, err := encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[id]; !exists {
		return ErrNotFound
	}
	s.docs[id] = doc
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*vcon.Vcon, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(id, doc)
}

// GetMany returns the documents that exist among ids, keyed by uuid.
func (s *InMemoryStore) GetMany(_ context.Context, ids []string) (map[string]*vcon.Vcon, error) {
	s.mu.RLock()
	found := make(map[string]string, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			found[id] = doc
		}
	}
	s.mu.RUnlock()

	out := make(map[string]*vcon.Vcon, len(found))
	for id, doc := range found {
		v, err := decode(id, doc)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}
