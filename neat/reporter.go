package neat

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes one generation for reporters.
type GenerationStats struct {
	Generation     int
	PopulationSize int
	SpeciesCount   int
	BestFitness    float64
	MeanFitness    float64
	StdevFitness   float64
	BestGenomeID   int
	// Replaced counts members overwritten by children, Culled the members
	// removed with their species.
	Replaced int
	Culled   int
	Duration time.Duration
}

// Reporter receives a summary at the end of every generation. best is the
// fittest genome seen so far and must not be modified.
type Reporter interface {
	EndGeneration(stats GenerationStats, best *Genome)
}

// LogReporter writes one structured log line per generation.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) EndGeneration(stats GenerationStats, best *Genome) {
	l := r.Logger
	if l == nil {
		l = getLogger()
	}
	attrs := []any{
		"generation", stats.Generation,
		"population", stats.PopulationSize,
		"species", stats.SpeciesCount,
		"best_fitness", stats.BestFitness,
		"mean_fitness", stats.MeanFitness,
		"stdev_fitness", stats.StdevFitness,
		"replaced", stats.Replaced,
		"culled", stats.Culled,
		"duration", stats.Duration,
	}
	if best != nil {
		attrs = append(attrs, "best_nodes", len(best.Nodes), "best_connections", len(best.Connections))
	}
	l.Info("generation finished", attrs...)
}

func (p *Population[M]) stats() GenerationStats {
	s := GenerationStats{
		Generation:     p.Generation,
		PopulationSize: p.Size(),
		SpeciesCount:   len(p.Species),
	}
	var fitnesses []float64
	for i, m := range p.members {
		if p.alive[i] {
			fitnesses = append(fitnesses, m.GetGenome().Fitness)
		}
	}
	if len(fitnesses) > 0 {
		s.MeanFitness, s.StdevFitness = stat.MeanStdDev(fitnesses, nil)
	}
	if slot := p.bestSlot(); slot >= 0 {
		g := p.members[slot].GetGenome()
		s.BestFitness = g.Fitness
		s.BestGenomeID = g.ID
	}
	return s
}
