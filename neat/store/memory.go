package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/baldhumanity/hyperneat-go/neat"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string][]GenerationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string][]GenerationRecord)
	return nil
}

// SaveGeneration stores rec, replacing an earlier record of the same
// generation.
func (s *MemoryStore) SaveGeneration(_ context.Context, rec GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if rec.RunID == "" {
		return fmt.Errorf("generation %d has no run id", rec.Stats.Generation)
	}
	if rec.Best != nil {
		rec.Best = rec.Best.Clone()
	}
	records := s.runs[rec.RunID]
	i, found := slices.BinarySearchFunc(records, rec.Stats.Generation, func(r GenerationRecord, gen int) int {
		return r.Stats.Generation - gen
	})
	if found {
		records[i] = rec
	} else {
		records = slices.Insert(records, i, rec)
	}
	s.runs[rec.RunID] = records
	return nil
}

func (s *MemoryStore) Generations(_ context.Context, runID string) ([]GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	records := s.runs[runID]
	copied := make([]GenerationRecord, len(records))
	for i, r := range records {
		copied[i] = r
		if r.Best != nil {
			copied[i].Best = r.Best.Clone()
		}
	}
	return copied, nil
}

func (s *MemoryStore) BestGenome(_ context.Context, runID string) (*neat.Genome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	var best *neat.Genome
	for _, r := range s.runs[runID] {
		if r.Best != nil && (best == nil || r.Best.Fitness > best.Fitness) {
			best = r.Best
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best.Clone(), true, nil
}

func (s *MemoryStore) Runs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	s.runs = nil
	return nil
}
