package negotiation

import (
	"context"
	"sync"
)

// Store is the durable public storage holding one record per negotiation.
// Implementations persist the fixed-size encoding of the session.
type Store interface {
	// Create persists a new record. It fails with ErrDuplicateID if the id
	// is already taken.
	Create(ctx context.Context, s *Session) error

	// Load returns the record for id, or ErrNotFound.
	Load(ctx context.Context, id ID) (*Session, error)

	// Save overwrites an existing record, or fails with ErrNotFound.
	Save(ctx context.Context, s *Session) error
}

// MemoryStore keeps encoded records in process memory, indexed by id.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[ID][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[ID][]byte)}
}

// Create stores a new record.
func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	rec, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[s.ID]; exists {
		return ErrDuplicateID
	}
	m.records[s.ID] = rec
	return nil
}

// Load decodes the record for id.
func (m *MemoryStore) Load(ctx context.Context, id ID) (*Session, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	s := &Session{}
	if err := s.UnmarshalBinary(rec); err != nil {
		return nil, err
	}
	return s, nil
}

// Save replaces the record for s.ID.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	rec, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[s.ID]; !exists {
		return ErrNotFound
	}
	m.records[s.ID] = rec
	return nil
}

// Raw returns a copy of the stored bytes for id. Tests use it to check what
// actually reached storage.
func (m *MemoryStore) Raw(id ID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, true
}
