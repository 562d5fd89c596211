package neat

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"
)

// Member is anything that carries a genome: a bare *Genome, or a richer type
// such as a HyperNEAT individual that derives its network from one.
type Member interface {
	GetGenome() *Genome
}

// GenomeObserver is implemented by members that cache state derived from their
// genome. GenomeChanged is called after the population rewrites the genome.
type GenomeObserver interface {
	GenomeChanged()
}

// Factory creates a fresh member for an empty population slot.
type Factory[M Member] func(rng *rand.Rand) (M, error)

// FitnessFunc evaluates one member and stores the result in its genome's
// Fitness field.
type FitnessFunc[M Member] func(m M) error

// GenomeFactory returns a Factory that builds genomes from the configured
// topology.
func GenomeFactory(cfg *Config) Factory[*Genome] {
	topology := cfg.Topology()
	return func(rng *rand.Rand) (*Genome, error) {
		return NewGenome(rng, topology)
	}
}

// Population holds the state of the NEAT evolutionary process.
//
// Members live in an index-stable arena: species refer to members by slot, and
// culled slots go to an available list that regrowth refills. An owning
// population creates and replaces members through its factory. An observing
// population works on caller-owned members and only ever rewrites their
// genomes in place.
type Population[M Member] struct {
	Config     *Config
	Generation int
	Species    []*Species
	Selection  SelectionAlgorithm

	members   []M
	alive     []bool
	available []int
	owned     bool
	rng       *rand.Rand
	factory   Factory[M]
	reporters []Reporter

	nextGenomeID  int
	nextSpeciesID int
	best          *Genome
	// champion is the best slot of the last evaluation. Children bred since
	// then are not candidates.
	champion int
}

// NewPopulation creates an owning population of cfg.Neat.PopSize members.
func NewPopulation[M Member](cfg *Config, rng *rand.Rand, factory Factory[M]) (*Population[M], error) {
	p, err := newPopulation(cfg, rng, factory, true)
	if err != nil {
		return nil, err
	}
	if err := p.RegrowPopulation(); err != nil {
		return nil, fmt.Errorf("failed to create initial population: %w", err)
	}
	return p, nil
}

// ObservePopulation creates a population over caller-owned members. The
// population size is len(members). factory supplies fresh genomes when culled
// members are regrown.
func ObservePopulation[M Member](cfg *Config, rng *rand.Rand, members []M, factory Factory[M]) (*Population[M], error) {
	if len(members) == 0 {
		return nil, errors.New("cannot observe an empty member list")
	}
	p, err := newPopulation(cfg, rng, factory, false)
	if err != nil {
		return nil, err
	}
	p.members = members
	p.alive = make([]bool, len(members))
	for i, m := range members {
		if m.GetGenome() == nil {
			return nil, fmt.Errorf("member %d has no genome", i)
		}
		m.GetGenome().ID = p.nextGenomeID
		p.nextGenomeID++
		p.alive[i] = true
	}
	return p, nil
}

func newPopulation[M Member](cfg *Config, rng *rand.Rand, factory Factory[M], owned bool) (*Population[M], error) {
	if factory == nil {
		return nil, errors.New("population needs a member factory")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Neat.Seed))
	}
	selection, err := cfg.NewSelection()
	if err != nil {
		return nil, err
	}
	return &Population[M]{
		Config:    cfg,
		Selection: selection,
		owned:     owned,
		rng:       rng,
		factory:   factory,
		champion:  -1,
	}, nil
}

// AddReporter registers a reporter notified at the end of every generation.
func (p *Population[M]) AddReporter(r Reporter) {
	p.reporters = append(p.reporters, r)
}

// Owned reports whether the population owns its members.
func (p *Population[M]) Owned() bool { return p.owned }

// Size returns the number of living members.
func (p *Population[M]) Size() int {
	n := 0
	for _, a := range p.alive {
		if a {
			n++
		}
	}
	return n
}

// MaxSize returns the size regrowth restores.
func (p *Population[M]) MaxSize() int {
	if p.owned {
		return p.Config.Neat.PopSize
	}
	return len(p.members)
}

// Members returns the living members in slot order.
func (p *Population[M]) Members() []M {
	out := make([]M, 0, len(p.members))
	for i, m := range p.members {
		if p.alive[i] {
			out = append(out, m)
		}
	}
	return out
}

// Member returns the member in slot i.
func (p *Population[M]) Member(i int) (M, bool) {
	var zero M
	if i < 0 || i >= len(p.members) || !p.alive[i] {
		return zero, false
	}
	return p.members[i], true
}

// Best returns the fittest living member.
func (p *Population[M]) Best() (M, bool) {
	slot := p.bestSlot()
	if slot < 0 {
		var zero M
		return zero, false
	}
	return p.members[slot], true
}

// BestGenome returns a copy of the fittest genome seen in any generation.
func (p *Population[M]) BestGenome() *Genome {
	if p.best == nil {
		return nil
	}
	return p.best.Clone()
}

func (p *Population[M]) bestSlot() int {
	best, bestFitness := -1, math.Inf(-1)
	for i, m := range p.members {
		if p.alive[i] && m.GetGenome().Fitness > bestFitness {
			best, bestFitness = i, m.GetGenome().Fitness
		}
	}
	return best
}

// championSlot returns the best slot of the last evaluation, falling back to
// the current fitnesses when no evaluation has run since loading.
func (p *Population[M]) championSlot() int {
	if p.champion >= 0 && p.champion < len(p.alive) && p.alive[p.champion] {
		return p.champion
	}
	return p.bestSlot()
}

func (p *Population[M]) trackBest() {
	slot := p.bestSlot()
	p.champion = slot
	if slot < 0 {
		return
	}
	g := p.members[slot].GetGenome()
	if p.best == nil || g.Fitness > p.best.Fitness {
		p.best = g.Clone()
		getLogger().Info("new best genome", "generation", p.Generation, "genome", g.ID, "fitness", g.Fitness)
	}
}

// Evaluate calls fn for every living member.
func (p *Population[M]) Evaluate(fn FitnessFunc[M]) error {
	for i, m := range p.members {
		if !p.alive[i] {
			continue
		}
		if err := fn(m); err != nil {
			return fmt.Errorf("fitness evaluation of genome %d failed: %w", m.GetGenome().ID, err)
		}
	}
	p.trackBest()
	return nil
}

// Speciate assigns every living member to the first species whose
// representative is closer than the compatibility threshold, creating new
// species as needed. Empty species are dropped and species statistics are
// refreshed.
func (p *Population[M]) Speciate() {
	sc := p.Config.Species
	for _, s := range p.Species {
		s.Members = s.Members[:0]
	}
	for slot, m := range p.members {
		if !p.alive[slot] {
			continue
		}
		g := m.GetGenome()
		var target *Species
		for _, s := range p.Species {
			if Distance(g, s.Representative, sc.ExcessCoefficient, sc.DisjointCoefficient, sc.WeightCoefficient) < sc.CompatibilityThreshold {
				target = s
				break
			}
		}
		if target == nil {
			target = NewSpecies(p.nextSpeciesID, g)
			p.nextSpeciesID++
			p.Species = append(p.Species, target)
		}
		target.Members = append(target.Members, slot)
		g.SpeciesID = target.ID
	}

	p.Species = slices.DeleteFunc(p.Species, func(s *Species) bool { return len(s.Members) == 0 })
	for _, s := range p.Species {
		fitnesses := make([]float64, len(s.Members))
		best := s.Members[0]
		for i, slot := range s.Members {
			fitnesses[i] = p.members[slot].GetGenome().Fitness
			if fitnesses[i] > p.members[best].GetGenome().Fitness {
				best = slot
			}
		}
		s.updateFitness(fitnesses)
		s.Representative = p.members[best].GetGenome().Clone()
	}
	p.champion = p.bestSlot()
}

func (p *Population[M]) scored(slot int) Scored {
	return Scored{Index: slot, Fitness: p.members[slot].GetGenome().Fitness}
}

func (p *Population[M]) pool() []Scored {
	var out []Scored
	for slot := range p.members {
		if p.alive[slot] {
			out = append(out, p.scored(slot))
		}
	}
	return out
}

func (p *Population[M]) groups() [][]Scored {
	out := make([][]Scored, 0, len(p.Species))
	for _, s := range p.Species {
		var group []Scored
		for _, slot := range s.Members {
			if p.alive[slot] {
				group = append(group, p.scored(slot))
			}
		}
		out = append(out, group)
	}
	return out
}

// Reproduce runs the selection algorithm and replaces every loser with a
// mutated child of its two parents. All children are bred before any loser is
// overwritten, and the population champion is never replaced. It returns the
// number of replaced members.
func (p *Population[M]) Reproduce() int {
	var triples []Triple
	if p.Config.Selection.InterSpecies {
		triples = p.Selection.Select(p.rng, p.pool())
	} else {
		triples = p.Selection.SelectSpecies(p.rng, p.groups())
	}

	champion := p.championSlot()
	type birth struct {
		slot  int
		child *Genome
	}
	births := make([]birth, 0, len(triples))
	for _, t := range triples {
		if t.Loser == champion || !p.alive[t.Father] || !p.alive[t.Mother] || !p.alive[t.Loser] {
			continue
		}
		child := Reproduce(p.rng, p.members[t.Father].GetGenome(), p.members[t.Mother].GetGenome(), p.Config.Selection.DisableProb)
		child.Mutate(p.rng, p.Config.Mutation)
		child.ID = p.nextGenomeID
		p.nextGenomeID++
		births = append(births, birth{t.Loser, child})
	}
	for _, b := range births {
		p.replaceGenome(b.slot, b.child)
	}
	return len(births)
}

func (p *Population[M]) replaceGenome(slot int, g *Genome) {
	m := p.members[slot]
	*m.GetGenome() = *g
	if obs, ok := any(m).(GenomeObserver); ok {
		obs.GenomeChanged()
	}
}

// IncreaseAgeAndRemoveOldSpecies ages every species and removes the killable
// ones. Their members' slots become available for regrowth. The species
// holding the population champion is never removed. The champion is the slot
// found by the last evaluation, so unevaluated children cannot take its place. It returns the number of culled members.
func (p *Population[M]) IncreaseAgeAndRemoveOldSpecies() int {
	champion := p.championSlot()
	culled := 0
	for _, s := range p.Species {
		s.age(p.Config.Species.MaxAge, slices.Contains(s.Members, champion))
		if !s.Killable {
			continue
		}
		for _, slot := range s.Members {
			if p.alive[slot] {
				p.alive[slot] = false
				p.available = append(p.available, slot)
				culled++
			}
		}
		getLogger().Info("species removed", "species", s.ID, "age", s.Age, "members", len(s.Members))
	}
	p.Species = slices.DeleteFunc(p.Species, func(s *Species) bool { return s.Killable })
	return culled
}

// RegrowPopulation fills free slots with fresh members until Size equals
// MaxSize.
func (p *Population[M]) RegrowPopulation() error {
	for p.Size() < p.MaxSize() {
		var slot int
		switch {
		case len(p.available) > 0:
			slot = p.available[len(p.available)-1]
			p.available = p.available[:len(p.available)-1]
		case p.owned:
			var zero M
			slot = len(p.members)
			p.members = append(p.members, zero)
			p.alive = append(p.alive, false)
		default:
			return errors.New("no free slot to regrow into")
		}

		m, err := p.factory(p.rng)
		if err != nil {
			p.available = append(p.available, slot)
			return fmt.Errorf("member factory failed: %w", err)
		}
		if p.owned {
			p.members[slot] = m
			m.GetGenome().ID = p.nextGenomeID
		} else {
			g := m.GetGenome().Clone()
			g.ID = p.nextGenomeID
			p.replaceGenome(slot, g)
		}
		p.nextGenomeID++
		p.alive[slot] = true
	}
	return nil
}

// RunGeneration executes a single generation of the NEAT algorithm: evaluate,
// speciate, reproduce, age and regrow.
// Returns a copy of the winning genome if the fitness threshold is met this
// generation, otherwise nil.
func (p *Population[M]) RunGeneration(fn FitnessFunc[M]) (*Genome, error) {
	p.Generation++
	start := time.Now()
	if err := p.Evaluate(fn); err != nil {
		return nil, fmt.Errorf("generation %d: %w", p.Generation, err)
	}
	return p.advance(start)
}

// advance runs everything after evaluation.
func (p *Population[M]) advance(start time.Time) (*Genome, error) {
	if p.Size() == 0 {
		return nil, fmt.Errorf("population extinct in generation %d", p.Generation)
	}
	p.Speciate()
	stats := p.stats()

	if !p.Config.Neat.NoFitnessTermination && p.best != nil && p.best.Fitness >= p.Config.Neat.FitnessThreshold {
		stats.Duration = time.Since(start)
		p.report(stats)
		return p.best.Clone(), nil
	}

	stats.Replaced = p.Reproduce()
	stats.Culled = p.IncreaseAgeAndRemoveOldSpecies()
	if err := p.RegrowPopulation(); err != nil {
		return nil, fmt.Errorf("generation %d: %w", p.Generation, err)
	}
	stats.Duration = time.Since(start)
	p.report(stats)
	return nil, nil
}

func (p *Population[M]) report(stats GenerationStats) {
	for _, r := range p.reporters {
		r.EndGeneration(stats, p.best)
	}
}
