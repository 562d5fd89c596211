package neat

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
)

// SaveCheckpoint saves the current state of the Population to a file.
// Uses gzip compression for smaller file size. The configuration is not
// stored; it is reloaded from its own file.
func (p *Population[M]) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	if err := json.NewEncoder(gzWriter).Encode(p); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint '%s': %w", filePath, err)
	}

	getLogger().Info("checkpoint saved", "path", filePath, "generation", p.Generation)
	return nil
}

// LoadCheckpoint loads a Population state from a checkpoint file written by
// SaveCheckpoint.
func LoadCheckpoint[M Member](checkpointPath string, cfg *Config, rng *rand.Rand, factory Factory[M], wrap func(*Genome) (M, error)) (*Population[M], error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	data, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	p, err := LoadPopulation(data, cfg, rng, factory, wrap)
	if err != nil {
		return nil, err
	}

	getLogger().Info("checkpoint loaded", "path", checkpointPath, "generation", p.Generation)
	return p, nil
}
