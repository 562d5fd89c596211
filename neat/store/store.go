// Package store archives the progress of evolution runs: one record per
// generation with the reporter statistics and the best genome seen so far.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/baldhumanity/hyperneat-go/neat"
)

// ErrNotInitialized is returned by stores used before Init or after Close.
var ErrNotInitialized = errors.New("store is not initialized")

// GenerationRecord is the archived state of one generation of a run.
type GenerationRecord struct {
	RunID string
	Stats neat.GenerationStats
	// Best is the fittest genome seen up to this generation. It may be nil
	// when no genome has been evaluated.
	Best *neat.Genome
}

// Store persists generation records.
type Store interface {
	Init(ctx context.Context) error
	SaveGeneration(ctx context.Context, rec GenerationRecord) error
	// Generations returns the records of a run ordered by generation.
	Generations(ctx context.Context, runID string) ([]GenerationRecord, error)
	// BestGenome returns the best genome archived for a run.
	BestGenome(ctx context.Context, runID string) (*neat.Genome, bool, error)
	// Runs lists the IDs of all archived runs.
	Runs(ctx context.Context) ([]string, error)
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ValidRunID reports whether id has the form produced by NewRunID.
func ValidRunID(id string) bool {
	return uuid.Validate(id) == nil
}

// Recorder is a neat.Reporter that archives every generation of one run.
// Save errors do not stop evolution; they are logged and the latest one is
// kept in Err.
type Recorder struct {
	Store   Store
	RunID   string
	Timeout time.Duration

	Err error
}

// NewRecorder returns a recorder for a fresh run ID.
func NewRecorder(s Store) *Recorder {
	return &Recorder{Store: s, RunID: NewRunID(), Timeout: 5 * time.Second}
}

func (r *Recorder) EndGeneration(stats neat.GenerationStats, best *neat.Genome) {
	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	rec := GenerationRecord{RunID: r.RunID, Stats: stats}
	if best != nil {
		rec.Best = best.Clone()
	}
	if err := r.Store.SaveGeneration(ctx, rec); err != nil {
		r.Err = err
		getLogger().Error("failed to archive generation", "run", r.RunID, "generation", stats.Generation, "error", err)
	}
}
