package hyperneat

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/hyperneat-go/neat"
	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

func TestMain(m *testing.M) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	SetLogger(quiet)
	neat.SetLogger(quiet)
	os.Exit(m.Run())
}

// constantCPPN returns a CPPN whose outputs ignore the query: all weights are
// zero, so each output is its activation applied to its bias.
func constantCPPN(t *testing.T, mode Mode, weightBias, leoBias float64) *neat.Genome {
	t.Helper()
	g, err := NewCPPN(rand.New(rand.NewSource(1)), mode, nil)
	require.NoError(t, err)
	for i := range g.Connections {
		g.Connections[i].Connection.Weight = 0
	}
	setBias(t, g, WeightOutput, weightBias)
	setBias(t, g, LEOOutput, leoBias)
	return g
}

func setBias(t *testing.T, g *neat.Genome, output int, bias float64) {
	t.Helper()
	n, ok := g.Node(nn.Link{Layer: neat.OutputLayerID, Neuron: output})
	require.True(t, ok)
	n.Bias = bias
}

func shape231() Shape {
	return Shape{Inputs: 2, Hidden: []int{3}, Outputs: 1}
}

func TestNewCPPNArity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, mode := range []Mode{Grid, Sandwich} {
		g, err := NewCPPN(rng, mode, []int{4})
		require.NoError(t, err)
		assert.Equal(t, mode.CPPNInputs(), g.InputCount())
		assert.Equal(t, 2, g.OutputCount())
		assert.True(t, g.IsCPPN)
	}

	grid, err := NewCPPN(rng, Grid, nil)
	require.NoError(t, err)
	_, err = New(grid, DefaultSettings(shape231()))
	assert.ErrorIs(t, err, ErrCPPNArity)

	_, err = New(grid, Settings{Mode: Grid, Shape: Shape{Inputs: 0, Outputs: 1}, MaxWeight: 1})
	assert.ErrorIs(t, err, ErrShape)
}

func TestSubstrateConnectionCounts(t *testing.T) {
	tests := []struct {
		mode Mode
		want int
	}{
		{Grid, 2*3 + 2*1 + 3*1},
		{Sandwich, 2*3 + 3*1},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			settings := DefaultSettings(shape231())
			settings.Mode = tt.mode
			h, err := New(constantCPPN(t, tt.mode, 0.5, 1), settings)
			require.NoError(t, err)

			net, err := h.Substrate()
			require.NoError(t, err)
			conns := net.Connections()
			assert.Len(t, conns, tt.want)
			for _, c := range conns {
				assert.InDelta(t, math.Tanh(0.5)*settings.MaxWeight, c.Weight, 1e-12)
				assert.False(t, c.Recurrent)
			}
			require.NoError(t, net.Validate())
		})
	}
}

func TestLEOGatesConnections(t *testing.T) {
	h, err := New(constantCPPN(t, Sandwich, 0.5, -1), DefaultSettings(shape231()))
	require.NoError(t, err)
	net, err := h.Substrate()
	require.NoError(t, err)
	assert.Empty(t, net.Connections())

	h.SetLEOThreshold(-0.9)
	net, err = h.Substrate()
	require.NoError(t, err)
	assert.Len(t, net.Connections(), 9, "tanh(-1) clears a threshold of -0.9")
}

func TestWeightIsClamped(t *testing.T) {
	g := constantCPPN(t, Sandwich, 10, 1)
	n, _ := g.Node(nn.Link{Layer: neat.OutputLayerID, Neuron: WeightOutput})
	n.Activation = nn.Identity

	h, err := New(g, DefaultSettings(shape231()))
	require.NoError(t, err)
	net, err := h.Substrate()
	require.NoError(t, err)
	for _, c := range net.Connections() {
		assert.Equal(t, 3.0, c.Weight)
	}

	require.NoError(t, h.SetMaxWeight(20))
	net, err = h.Substrate()
	require.NoError(t, err)
	for _, c := range net.Connections() {
		assert.Equal(t, 20.0, c.Weight)
	}
	assert.Error(t, h.SetMaxWeight(0))
}

func TestSubstrateIsRebuiltOnlyWhenStale(t *testing.T) {
	h, err := New(constantCPPN(t, Sandwich, 0.5, 1), DefaultSettings(shape231()))
	require.NoError(t, err)

	first, err := h.Substrate()
	require.NoError(t, err)
	again, err := h.Substrate()
	require.NoError(t, err)
	assert.Same(t, first, again)

	h.GenomeChanged()
	rebuilt, err := h.Substrate()
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)

	require.NoError(t, h.SetShape(Shape{Inputs: 4, Outputs: 2}))
	reshaped, err := h.Substrate()
	require.NoError(t, err)
	assert.Equal(t, 4, reshaped.InputLayer().Size())
	assert.Len(t, reshaped.Connections(), 8)

	h.SetActivations(nn.Tanh, nn.Identity)
	out, err := h.Run([]float64{1, 1, 1, 1})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 4*math.Tanh(0.5)*3, out[0], 1e-9)

	assert.ErrorIs(t, h.SetMode(Grid), ErrCPPNArity)
	assert.Error(t, h.SetShape(Shape{Inputs: 1}))
}

func TestGridQueriesDependOnGeometry(t *testing.T) {
	g, err := NewCPPN(rand.New(rand.NewSource(3)), Grid, []int{3})
	require.NoError(t, err)
	settings := DefaultSettings(shape231())
	settings.Mode = Grid
	settings.LEOThreshold = -2
	h, err := New(g, settings)
	require.NoError(t, err)

	net, err := h.Substrate()
	require.NoError(t, err)
	conns := net.Connections()
	require.Len(t, conns, 11)
	distinct := map[float64]bool{}
	for _, c := range conns {
		assert.LessOrEqual(t, math.Abs(c.Weight), settings.MaxWeight)
		distinct[c.Weight] = true
	}
	assert.Greater(t, len(distinct), 1)
}

func TestSheetLayout(t *testing.T) {
	s := newSheet([]int{2, 1, 3})
	assert.Equal(t, point{t: -1, x: -1, y: -1}, s[0][0])
	assert.InDelta(t, -0.2, s[1][0].t, 1e-12)
	assert.Equal(t, 0.0, s[1][0].x)
	assert.Equal(t, 0.0, s[1][0].y)
	assert.Equal(t, point{t: 1, x: 1, y: 1}, s[2][2])

	q := make([]float64, 5)
	Sandwich.fill(q, s, nn.Link{Layer: 0, Neuron: 0}, nn.Link{Layer: 1, Neuron: 0})
	assert.Equal(t, []float64{-1, -1, 0, 0}, q[:4])
	assert.InDelta(t, math.Sqrt2, q[4], 1e-12)

	q = q[:3]
	Grid.fill(q, s, nn.Link{Layer: 0, Neuron: 0}, nn.Link{Layer: 2, Neuron: 2})
	assert.Equal(t, []float64{-1, 1, 2}, q)
}

func TestModeTags(t *testing.T) {
	for _, m := range []Mode{Grid, Sandwich} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back Mode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}
	_, err := ParseMode("hexagon")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	g, err := NewCPPN(rand.New(rand.NewSource(4)), Grid, []int{2})
	require.NoError(t, err)
	settings := Settings{
		Mode:             Grid,
		Shape:            Shape{Inputs: 3, Hidden: []int{4, 2}, Outputs: 2},
		HiddenActivation: nn.ReLU,
		OutputActivation: nn.Softmax,
		LEOThreshold:     0.1,
		MaxWeight:        5,
	}
	h, err := New(g, settings)
	require.NoError(t, err)

	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode":"grid"`)
	assert.Contains(t, string(data), `"hidden":["4","2"]`)

	var loaded HyperNeat
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, settings, loaded.Settings())
	assert.Equal(t, g, loaded.GetGenome())

	want, err := h.Run([]float64{0.2, -0.4, 1})
	require.NoError(t, err)
	got, err := loaded.Run([]float64{0.2, -0.4, 1})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"grid","shape":{"inputs":"x"}}`), &loaded))
}

func TestEvolvingHyperNeatPopulation(t *testing.T) {
	cfg := neat.DefaultConfig()
	cfg.Neat.PopSize = 12
	cfg.Neat.NoFitnessTermination = true
	cfg.Mutation.NodeAddProb = 0.3
	settings := DefaultSettings(Shape{Inputs: 2, Hidden: []int{2}, Outputs: 1})

	p, err := neat.NewPopulation(cfg, rand.New(rand.NewSource(5)), Factory(settings, nil))
	require.NoError(t, err)
	fitness := func(h *HyperNeat) error {
		out, err := h.Run([]float64{1, 0})
		if err != nil {
			return err
		}
		h.GetGenome().Fitness = 1 - math.Abs(1-out[0])
		return nil
	}
	for gen := 0; gen < 5; gen++ {
		_, err := p.RunGeneration(fitness)
		require.NoError(t, err)
		assert.Equal(t, 12, p.Size())
	}

	path := filepath.Join(t.TempDir(), "cppn.ckpt.gz")
	require.NoError(t, p.SaveCheckpoint(path))
	loaded, err := neat.LoadCheckpoint(path, cfg, nil, Factory(settings, nil), Wrap(settings))
	require.NoError(t, err)
	_, err = loaded.RunGeneration(fitness)
	require.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "substrate.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte(`
[HyperNEAT]
mode              = grid ; queried pairwise
substrate_inputs  = 4
substrate_hidden  = 8 8
substrate_outputs = 2
leo_threshold     = 0.2
cppn_hidden       = 3
`), 0o644))
	cfg, err := LoadConfig(iniPath)
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, Grid, s.Mode)
	assert.Equal(t, Shape{Inputs: 4, Hidden: []int{8, 8}, Outputs: 2}, s.Shape)
	assert.Equal(t, 0.2, s.LEOThreshold)
	assert.Equal(t, 3.0, s.MaxWeight)
	assert.Equal(t, []int{3}, cfg.CPPNHidden)

	yamlPath := filepath.Join(dir, "substrate.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
hyperneat:
  mode: sandwich
  substrate_inputs: 2
  substrate_outputs: 1
  output_activation: tanh
`), 0o644))
	cfg, err = LoadConfig(yamlPath)
	require.NoError(t, err)
	s, err = cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, Sandwich, s.Mode)
	assert.Equal(t, nn.Tanh, s.OutputActivation)

	badPath := filepath.Join(dir, "bad.ini")
	require.NoError(t, os.WriteFile(badPath, []byte("[HyperNEAT]\nmode = hexagon\nsubstrate_inputs = 1\nsubstrate_outputs = 1\n"), 0o644))
	_, err = LoadConfig(badPath)
	assert.Error(t, err)
}
