package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Records are copied on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	maps map[string]*MapRecord
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		maps: make(map[string]*MapRecord),
		now:  time.Now,
	}
}

func (s *MemoryStore) CreateMap(ctx context.Context, rec *MapRecord) error {
	if err := ValidateUnits(rec.Units); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.maps[rec.ID]; exists {
		return errMapExists(rec.ID)
	}
	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.maps[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) GetMap(ctx context.Context, id string) (*MapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.maps[id]
	if !ok {
		return nil, ErrMapNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) ReplaceUnits(ctx context.Context, id string, units []Unit) (*MapRecord, error) {
	if err := ValidateUnits(units); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.maps[id]
	if !ok {
		return nil, ErrMapNotFound
	}
	rec.Units = append([]Unit{}, units...)
	rec.UpdatedAt = s.now().UTC()
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
