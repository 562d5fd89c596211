package neat

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Species represents a group of genetically similar genomes.
type Species struct {
	ID             int     // Unique identifier for the species.
	Members        []int   // Population slots of the members.
	Representative *Genome // Copy of the genome new members are compared against.

	// Age counts the aging steps the species has survived.
	Age           int
	AvgFitness    float64
	OldAvgFitness float64
	MaxFitness    float64

	// Killable is set once Age exceeds the configured limit.
	Killable bool
	// Novel marks a species created in the current generation. Novel species
	// are never stale.
	Novel bool
}

// NewSpecies creates a new species represented by a copy of rep.
func NewSpecies(id int, rep *Genome) *Species {
	return &Species{
		ID:             id,
		Representative: rep.Clone(),
		Novel:          true,
	}
}

// Size returns the number of members.
func (s *Species) Size() int { return len(s.Members) }

// IsStale compares AvgFitness with its value at the last aging step.
// Novel species are never stale.
func (s *Species) IsStale() bool {
	return !s.Novel && s.OldAvgFitness <= s.AvgFitness
}

// updateFitness recomputes AvgFitness and MaxFitness from member fitnesses.
func (s *Species) updateFitness(fitnesses []float64) {
	if len(fitnesses) == 0 {
		s.AvgFitness, s.MaxFitness = 0, 0
		return
	}
	s.AvgFitness = stat.Mean(fitnesses, nil)
	s.MaxFitness = floats.Max(fitnesses)
}

// age increments Age and decides whether the species may be culled.
// holdsBest protects the species of the population champion.
func (s *Species) age(maxAge int, holdsBest bool) {
	s.Age++
	s.OldAvgFitness = s.AvgFitness
	s.Novel = false
	s.Killable = s.Age > maxAge && !holdsBest
}
