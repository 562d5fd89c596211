package neat

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func testConfig(popSize int) *Config {
	cfg := DefaultConfig()
	cfg.Neat.PopSize = popSize
	cfg.Neat.NoFitnessTermination = true
	cfg.Genome.NumInputs = 2
	cfg.Genome.NumOutputs = 1
	cfg.Mutation.NodeAddProb = 0.2
	cfg.Mutation.ConnAddProb = 0.3
	cfg.Species.MaxAge = 2
	return cfg
}

// xorFitness scores a genome by how well its network solves XOR.
func xorFitness(g *Genome) error {
	net, err := g.ToNeuralNetwork()
	if err != nil {
		return err
	}
	errSum := 0.0
	for _, c := range [][3]float64{{0, 0, 0}, {0, 1, 1}, {1, 0, 1}, {1, 1, 0}} {
		out, err := net.Run(c[:2])
		if err != nil {
			return err
		}
		errSum += math.Abs(out[0] - c[2])
	}
	g.Fitness = 4 - errSum
	return nil
}

func TestOwnedPopulationKeepsSize(t *testing.T) {
	cfg := testConfig(30)
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(1)), GenomeFactory(cfg))
	require.NoError(t, err)
	require.True(t, p.Owned())
	require.Equal(t, 30, p.Size())

	for gen := 0; gen < 15; gen++ {
		winner, err := p.RunGeneration(xorFitness)
		require.NoError(t, err)
		assert.Nil(t, winner)
		assert.Equal(t, 30, p.Size(), "generation %d", p.Generation)
		assert.NotEmpty(t, p.Species)
		for _, m := range p.Members() {
			require.NoError(t, m.Validate())
		}
	}
	assert.Equal(t, 15, p.Generation)

	best := p.BestGenome()
	require.NotNil(t, best)
	for _, m := range p.Members() {
		assert.LessOrEqual(t, m.Fitness, best.Fitness)
	}
}

func TestFitnessThresholdStopsRun(t *testing.T) {
	cfg := testConfig(10)
	cfg.Neat.NoFitnessTermination = false
	cfg.Neat.FitnessThreshold = 5
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(2)), GenomeFactory(cfg))
	require.NoError(t, err)

	target := p.Members()[3]
	winner, err := p.RunGeneration(func(g *Genome) error {
		g.Fitness = 1
		if g == target {
			g.Fitness = 6
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, target.ID, winner.ID)
	assert.Equal(t, 6.0, winner.Fitness)
}

type tracked struct {
	genome  *Genome
	changes int
}

func (t *tracked) GetGenome() *Genome { return t.genome }
func (t *tracked) GenomeChanged()     { t.changes++ }

func TestObservedPopulationRewritesInPlace(t *testing.T) {
	cfg := testConfig(0)
	rng := rand.New(rand.NewSource(3))
	members := make([]*tracked, 12)
	for i := range members {
		g, err := NewGenome(rng, cfg.Topology())
		require.NoError(t, err)
		members[i] = &tracked{genome: g}
	}
	factory := func(rng *rand.Rand) (*tracked, error) {
		g, err := NewGenome(rng, cfg.Topology())
		return &tracked{genome: g}, err
	}

	cfg.Neat.PopSize = 1
	p, err := ObservePopulation(cfg, rng, members, factory)
	require.NoError(t, err)
	assert.False(t, p.Owned())
	assert.Equal(t, 12, p.MaxSize())

	for gen := 0; gen < 10; gen++ {
		_, err := p.RunGeneration(func(m *tracked) error { return xorFitness(m.genome) })
		require.NoError(t, err)
		require.Equal(t, 12, p.Size())
	}

	live := p.Members()
	require.Len(t, live, 12)
	total := 0
	for i, m := range live {
		assert.Same(t, members[i], m, "members keep their identity")
		total += m.changes
	}
	assert.Positive(t, total, "reproduction notifies rewritten members")

	_, err = ObservePopulation[*tracked](cfg, rng, nil, factory)
	assert.Error(t, err)
}

func TestSpeciesAging(t *testing.T) {
	g := &Genome{}
	s := NewSpecies(1, g)
	s.updateFitness([]float64{1, 2, 3})
	assert.Equal(t, 2.0, s.AvgFitness)
	assert.Equal(t, 3.0, s.MaxFitness)

	assert.False(t, s.IsStale(), "novel species are not stale")
	s.age(1, false)
	assert.Equal(t, 1, s.Age)
	assert.False(t, s.Novel)
	assert.False(t, s.Killable)
	assert.True(t, s.IsStale())

	s.age(1, true)
	assert.Equal(t, 2, s.Age)
	assert.False(t, s.Killable, "the champion's species survives")

	s.updateFitness([]float64{5})
	assert.True(t, s.IsStale())
	s.updateFitness([]float64{0})
	assert.False(t, s.IsStale())
	s.age(1, false)
	assert.Equal(t, 3, s.Age)
	assert.True(t, s.Killable)
}

func TestImprovingSpeciesStillAges(t *testing.T) {
	s := NewSpecies(1, &Genome{})
	for gen := 0; gen < 10; gen++ {
		s.updateFitness([]float64{float64(gen)})
		s.age(2, false)
	}
	assert.Equal(t, 10, s.Age)
	assert.True(t, s.Killable)
}

func TestNegativeFitnessChampionSpeciesSurvives(t *testing.T) {
	cfg := testConfig(20)
	cfg.Species.CompatibilityThreshold = 1e-9
	cfg.Selection.InterSpecies = true
	cfg.Selection.Ratio = 1
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(9)), GenomeFactory(cfg))
	require.NoError(t, err)

	next := 0
	require.NoError(t, p.Evaluate(func(g *Genome) error {
		g.Fitness = -101 - float64(next)
		next++
		return nil
	}))
	p.Speciate()
	champion := p.bestSlot()
	require.Equal(t, -101.0, p.members[champion].Fitness)

	require.Positive(t, p.Reproduce())
	require.NotEqual(t, champion, p.bestSlot(), "unevaluated children outrank negative fitness")

	for _, s := range p.Species {
		s.Age = cfg.Species.MaxAge
	}
	p.IncreaseAgeAndRemoveOldSpecies()

	assert.True(t, p.alive[champion])
	assert.Equal(t, -101.0, p.members[champion].Fitness)
	require.Len(t, p.Species, 1)
	assert.Contains(t, p.Species[0].Members, champion)
}

func TestStaleSpeciesAreCulledAndRegrown(t *testing.T) {
	cfg := testConfig(20)
	cfg.Species.MaxAge = 1
	cfg.Species.CompatibilityThreshold = 0.1
	cfg.Mutation.WeightMutateProb = 0
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(4)), GenomeFactory(cfg))
	require.NoError(t, err)

	var stats []GenerationStats
	p.AddReporter(reporterFunc(func(s GenerationStats, _ *Genome) { stats = append(stats, s) }))

	constant := func(g *Genome) error { g.Fitness = 1; return nil }
	for gen := 0; gen < 6; gen++ {
		_, err := p.RunGeneration(constant)
		require.NoError(t, err)
		assert.Equal(t, 20, p.Size())
	}
	require.Len(t, stats, 6)
	culled := 0
	for _, s := range stats {
		culled += s.Culled
	}
	assert.Positive(t, culled)
}

type reporterFunc func(GenerationStats, *Genome)

func (f reporterFunc) EndGeneration(s GenerationStats, best *Genome) { f(s, best) }

var errBroken = errors.New("broken evaluator")

func TestParallelEvaluate(t *testing.T) {
	cfg := testConfig(40)
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(5)), GenomeFactory(cfg))
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, p.ParallelEvaluate(func(g *Genome) error {
		calls.Add(1)
		g.Fitness = float64(g.ID)
		return nil
	}, 4))
	assert.Equal(t, int32(40), calls.Load())
	assert.Equal(t, 39.0, p.BestGenome().Fitness)

	err = p.ParallelEvaluate(func(g *Genome) error {
		if g.ID%10 == 0 {
			return errBroken
		}
		return nil
	}, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)

	winner, err := p.RunGenerationParallel(xorFitness, 4)
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.Equal(t, 40, p.Size())
}

func TestGuarded(t *testing.T) {
	counter := NewGuarded(0)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				counter.Do(func(v *int) { *v++ })
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 800, counter.Get())
}

func TestGenomeJSONRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	topology := xorTopology()
	topology.RecurrentAllowed = true
	g := newTestGenome(t, rng, topology)
	for i := 0; i < 20; i++ {
		g.Mutate(rng, testConfig(1).Mutation)
	}
	g.ID, g.SpeciesID, g.Fitness = 17, 3, 2.5

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"17"`)

	var loaded Genome
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, g, &loaded)
}

func TestGenomeJSONNumbers(t *testing.T) {
	g := newTestGenome(t, rand.New(rand.NewSource(7)), xorTopology())
	data, err := json.Marshal(g)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	raw["id"] = "123456789012345678901234567890"
	overflow, err := json.Marshal(raw)
	require.NoError(t, err)
	var loaded Genome
	require.NoError(t, json.Unmarshal(overflow, &loaded))
	assert.Zero(t, loaded.ID)

	raw["id"] = "seven"
	bad, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.Error(t, json.Unmarshal(bad, &loaded))
}

func TestGenomeJSONRejectsInvalidStructure(t *testing.T) {
	data := []byte(`{"id":"1","speciesId":"0","nodes":[
		{"layer":"0","neuron":"0","type":"input","activation":"identity","bias":0}
	],"connections":[]}`)
	var g Genome
	assert.ErrorIs(t, json.Unmarshal(data, &g), ErrInvalidGenome)
}

func wrapGenome(g *Genome) (*Genome, error) { return g, nil }

func TestPopulationJSONRoundTrip(t *testing.T) {
	cfg := testConfig(16)
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(8)), GenomeFactory(cfg))
	require.NoError(t, err)
	for gen := 0; gen < 3; gen++ {
		_, err := p.RunGeneration(xorFitness)
		require.NoError(t, err)
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	loaded, err := LoadPopulation(data, cfg, rand.New(rand.NewSource(9)), GenomeFactory(cfg), wrapGenome)
	require.NoError(t, err)

	assert.Equal(t, p.Generation, loaded.Generation)
	assert.Equal(t, p.Size(), loaded.Size())
	assert.Equal(t, p.BestGenome(), loaded.BestGenome())
	require.Len(t, loaded.Species, len(p.Species))
	for i := range p.Species {
		assert.Equal(t, p.Species[i].ID, loaded.Species[i].ID)
		assert.Equal(t, p.Species[i].Members, loaded.Species[i].Members)
		assert.Equal(t, p.Species[i].Age, loaded.Species[i].Age)
	}
	for i, m := range p.Members() {
		assert.Equal(t, m, loaded.Members()[i])
	}

	_, err = loaded.RunGeneration(xorFitness)
	require.NoError(t, err)
	assert.Equal(t, 16, loaded.Size())

	_, err = LoadPopulation([]byte(`{"generation":"x"}`), cfg, nil, GenomeFactory(cfg), wrapGenome)
	assert.Error(t, err)
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := testConfig(12)
	p, err := NewPopulation(cfg, rand.New(rand.NewSource(10)), GenomeFactory(cfg))
	require.NoError(t, err)
	_, err = p.RunGeneration(xorFitness)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "neat.ckpt.gz")
	require.NoError(t, p.SaveCheckpoint(path))

	loaded, err := LoadCheckpoint(path, cfg, nil, GenomeFactory(cfg), wrapGenome)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Generation)
	assert.Equal(t, p.Members(), loaded.Members())

	_, err = LoadCheckpoint(filepath.Join(t.TempDir(), "missing"), cfg, nil, GenomeFactory(cfg), wrapGenome)
	assert.Error(t, err)
}
