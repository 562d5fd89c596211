package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/baldhumanity/hyperneat-go/neat"
)

// SQLiteStore archives records in a SQLite database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS generations (
			run_id          TEXT    NOT NULL,
			generation      INTEGER NOT NULL,
			population      INTEGER NOT NULL,
			species         INTEGER NOT NULL,
			best_fitness    REAL    NOT NULL,
			mean_fitness    REAL    NOT NULL,
			stdev_fitness   REAL    NOT NULL,
			best_genome_id  INTEGER NOT NULL,
			replaced        INTEGER NOT NULL,
			culled          INTEGER NOT NULL,
			duration_ns     INTEGER NOT NULL,
			best            BLOB,
			PRIMARY KEY (run_id, generation)
		)
	`)
	if err != nil {
		return fmt.Errorf("create generations table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveGeneration(ctx context.Context, rec GenerationRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if rec.RunID == "" {
		return fmt.Errorf("generation %d has no run id", rec.Stats.Generation)
	}

	var payload []byte
	if rec.Best != nil {
		if payload, err = json.Marshal(rec.Best); err != nil {
			return fmt.Errorf("encode best genome: %w", err)
		}
	}

	st := rec.Stats
	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (run_id, generation, population, species, best_fitness, mean_fitness,
			stdev_fitness, best_genome_id, replaced, culled, duration_ns, best)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			population = excluded.population,
			species = excluded.species,
			best_fitness = excluded.best_fitness,
			mean_fitness = excluded.mean_fitness,
			stdev_fitness = excluded.stdev_fitness,
			best_genome_id = excluded.best_genome_id,
			replaced = excluded.replaced,
			culled = excluded.culled,
			duration_ns = excluded.duration_ns,
			best = excluded.best
	`, rec.RunID, st.Generation, st.PopulationSize, st.SpeciesCount, st.BestFitness, st.MeanFitness,
		st.StdevFitness, st.BestGenomeID, st.Replaced, st.Culled, int64(st.Duration), payload)
	return err
}

func (s *SQLiteStore) Generations(ctx context.Context, runID string) ([]GenerationRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation, population, species, best_fitness, mean_fitness, stdev_fitness,
			best_genome_id, replaced, culled, duration_ns, best
		FROM generations WHERE run_id = ? ORDER BY generation
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		rec := GenerationRecord{RunID: runID}
		st := &rec.Stats
		var duration int64
		var payload []byte
		if err := rows.Scan(&st.Generation, &st.PopulationSize, &st.SpeciesCount, &st.BestFitness,
			&st.MeanFitness, &st.StdevFitness, &st.BestGenomeID, &st.Replaced, &st.Culled,
			&duration, &payload); err != nil {
			return nil, err
		}
		st.Duration = time.Duration(duration)
		if rec.Best, err = decodeGenome(payload); err != nil {
			return nil, fmt.Errorf("decode generation %d of run %s: %w", st.Generation, runID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) BestGenome(ctx context.Context, runID string) (*neat.Genome, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `
		SELECT best FROM generations
		WHERE run_id = ? AND best IS NOT NULL
		ORDER BY best_fitness DESC, generation DESC LIMIT 1
	`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	g, err := decodeGenome(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode best genome of run %s: %w", runID, err)
	}
	return g, g != nil, nil
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT run_id FROM generations ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func decodeGenome(payload []byte) (*neat.Genome, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var g neat.Genome
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
