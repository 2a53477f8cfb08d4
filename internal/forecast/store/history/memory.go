package history

import (
	"context"
	"sync"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
)

// DefaultCapacity bounds the records kept per sector in memory.
const DefaultCapacity = 1000

// InMemoryStore keeps the latest records per sector, dropping the oldest
// once capacity is reached.
type InMemoryStore struct {
	mu       sync.RWMutex
	capacity int
	records  map[domain.Sector][]models.PredictionRecord
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryStore{
		capacity: capacity,
		records:  make(map[domain.Sector][]models.PredictionRecord),
	}
}

func (s *InMemoryStore) Append(_ context.Context, rec models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := append(s.records[rec.Sector], rec)
	if over := len(recs) - s.capacity; over > 0 {
		recs = append([]models.PredictionRecord(nil), recs[over:]...)
	}
	s.records[rec.Sector] = recs
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, sector domain.Sector, limit int) ([]models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[sector]
	if limit <= 0 || limit > len(recs) {
		limit = len(recs)
	}
	out := make([]models.PredictionRecord, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}
