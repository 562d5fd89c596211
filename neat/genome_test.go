package neat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

func xorTopology() Topology {
	return Topology{
		Inputs:           2,
		Outputs:          1,
		HiddenActivation: nn.Sigmoid,
		OutputActivation: nn.Sigmoid,
		FullyConnected:   true,
	}
}

func newTestGenome(t *testing.T, rng *rand.Rand, topology Topology) *Genome {
	t.Helper()
	g, err := NewGenome(rng, topology)
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	return g
}

func countEnabled(g *Genome) int {
	n := 0
	for _, c := range g.Connections {
		if c.Enabled {
			n++
		}
	}
	return n
}

func TestInnovationIDsFollowCoordinates(t *testing.T) {
	a, err := NodeInnovation(3, 7)
	require.NoError(t, err)
	b, err := NodeInnovation(3, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NodeInnovation(4, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, a.Compare(c), "node IDs sort by layer first")

	_, err = NodeInnovation(-1, 0)
	assert.ErrorIs(t, err, ErrCoordinateRange)
	_, err = NodeInnovation(0, maxNeuronID+1)
	assert.ErrorIs(t, err, ErrCoordinateRange)

	ab, err := ConnectionInnovation(nn.Link{Layer: 0, Neuron: 1}, nn.Link{Layer: 2, Neuron: 0})
	require.NoError(t, err)
	ba, err := ConnectionInnovation(nn.Link{Layer: 2, Neuron: 0}, nn.Link{Layer: 0, Neuron: 1})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba, "direction is part of the identity")
}

func TestNewGenomeLayout(t *testing.T) {
	topology := xorTopology()
	topology.Hidden = []int{3, 2}
	g := newTestGenome(t, rand.New(rand.NewSource(1)), topology)

	assert.Equal(t, 2, g.InputCount())
	assert.Equal(t, 1, g.OutputCount())
	assert.Len(t, g.Nodes, 2+3+2+1)
	assert.Len(t, g.Connections, 2*3+3*2+2*1)

	step := OutputLayerID / 3
	assert.Len(t, g.layerNodes(step), 3)
	assert.Len(t, g.layerNodes(2*step), 2)
	for _, n := range g.Nodes {
		assert.Zero(t, n.Bias)
	}

	_, err := NewGenome(nil, Topology{Inputs: 0, Outputs: 1})
	assert.ErrorIs(t, err, ErrInvalidGenome)
}

func TestMutateAddNodeSplitsConnection(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g := newTestGenome(t, rng, xorTopology())
	nodes, conns, enabled := len(g.Nodes), len(g.Connections), countEnabled(g)

	require.True(t, g.MutateAddNode(rng))
	assert.Len(t, g.Nodes, nodes+1)
	assert.Len(t, g.Connections, conns+2)
	assert.Equal(t, enabled+1, countEnabled(g))
	require.NoError(t, g.Validate())

	hidden := g.layerNodes(OutputLayerID / 2)
	require.Len(t, hidden, 1)
	assert.Equal(t, nn.Hidden, hidden[0].Type)

	var disabled *ConnectionGene
	for i := range g.Connections {
		if !g.Connections[i].Enabled {
			disabled = &g.Connections[i]
		}
	}
	require.NotNil(t, disabled)
	in, ok := g.Connection(disabled.Src(), hidden[0].Link())
	require.True(t, ok)
	assert.Equal(t, 1.0, in.Connection.Weight)
	out, ok := g.Connection(hidden[0].Link(), disabled.Dest())
	require.True(t, ok)
	assert.Equal(t, disabled.Connection.Weight, out.Connection.Weight)
}

func TestMutateAddNodeBetweenAdjacentLayers(t *testing.T) {
	g := &Genome{HiddenActivation: nn.Tanh}
	for _, l := range []nn.Link{{Layer: 0, Neuron: 0}, {Layer: 5, Neuron: 0}, {Layer: 6, Neuron: 0}, {Layer: OutputLayerID, Neuron: 0}} {
		n, err := NewNodeGene(l.Layer, l.Neuron, nn.Hidden, nn.Tanh, 0)
		require.NoError(t, err)
		g.insertNode(n)
	}
	cg, err := NewConnectionGene(nn.Link{Layer: 5, Neuron: 0}, nn.Link{Layer: 6, Neuron: 0}, 0.5)
	require.NoError(t, err)
	g.insertConnection(cg)
	g.refreshNodeTypes()

	require.True(t, g.MutateAddNode(rand.New(rand.NewSource(1))))
	assert.Len(t, g.layerNodes(5), 2, "new node joins the source layer")
	_, ok := g.Connection(nn.Link{Layer: 5, Neuron: 1}, nn.Link{Layer: 6, Neuron: 0})
	assert.True(t, ok)
	require.NoError(t, g.Validate())
}

func TestMutateAddConnection(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	topology := xorTopology()
	topology.FullyConnected = false
	g := newTestGenome(t, rng, topology)
	require.Empty(t, g.Connections)

	added := false
	for i := 0; i < 50 && !added; i++ {
		added = g.MutateAddConnection(rng)
	}
	require.True(t, added)
	assert.Len(t, g.Connections, 1)
	c := g.Connections[0]
	assert.Equal(t, 0, c.Src().Layer)
	assert.Equal(t, OutputLayerID, c.Dest().Layer)
	assert.False(t, c.Connection.Recurrent)
	require.NoError(t, g.Validate())

	full := newTestGenome(t, rng, xorTopology())
	assert.False(t, full.MutateAddConnection(rng), "nothing left to connect without recurrence")
}

func TestMutateAddRecurrentConnectionMarksContext(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	topology := xorTopology()
	topology.Hidden = []int{2}
	topology.RecurrentAllowed = true
	g := newTestGenome(t, rng, topology)

	hidden := OutputLayerID / 2
	src, dest := nn.Link{Layer: hidden, Neuron: 1}, nn.Link{Layer: hidden, Neuron: 0}
	cg, err := NewConnectionGene(src, dest, 1)
	require.NoError(t, err)
	require.True(t, cg.Connection.Recurrent)
	g.insertConnection(cg)
	g.refreshNodeTypes()

	node, ok := g.Node(dest)
	require.True(t, ok)
	assert.Equal(t, nn.Context, node.Type)
	require.NoError(t, g.Validate())

	g.Connections[slicesIndex(g, src, dest)].Enabled = false
	g.refreshNodeTypes()
	node, _ = g.Node(dest)
	assert.Equal(t, nn.Hidden, node.Type)
}

func slicesIndex(g *Genome, src, dest nn.Link) int {
	for i, c := range g.Connections {
		if c.Src() == src && c.Dest() == dest {
			return i
		}
	}
	return -1
}

func TestValidateRejectsBrokenGenomes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g := newTestGenome(t, rng, xorTopology())

	bad := g.Clone()
	bad.Connections[0].Innovation = InnovationID{}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidGenome)

	bad = g.Clone()
	bad.Connections[0], bad.Connections[1] = bad.Connections[1], bad.Connections[0]
	assert.ErrorIs(t, bad.Validate(), ErrInvalidGenome)

	bad = g.Clone()
	back, err := NewConnectionGene(nn.Link{Layer: OutputLayerID}, nn.Link{Layer: 0}, 1)
	require.NoError(t, err)
	bad.insertConnection(back)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidGenome)
}

func TestMutateKeepsGenomeValid(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	topology := xorTopology()
	topology.RecurrentAllowed = true
	topology.CPPN = true
	g := newTestGenome(t, rng, topology)

	cfg := DefaultConfig().Mutation
	cfg.NodeAddProb, cfg.ConnAddProb = 0.5, 0.5
	for i := 0; i < 200; i++ {
		g.Mutate(rng, cfg)
		require.NoError(t, g.Validate(), "after mutation %d", i)
	}
	_, err := g.ToNeuralNetwork()
	require.NoError(t, err)
}

func TestMutateWeightsSkipsFrozen(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := newTestGenome(t, rng, xorTopology())
	g.Connections[0].Connection.Frozen = true
	frozen := g.Connections[0].Connection.Weight
	other := g.Connections[1].Connection.Weight

	g.MutateWeights(rng, 1, 0)
	assert.Equal(t, frozen, g.Connections[0].Connection.Weight)
	assert.NotEqual(t, other, g.Connections[1].Connection.Weight)
}

func TestMutateActivationOnlyForCPPN(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	g := newTestGenome(t, rng, xorTopology())
	assert.False(t, g.MutateActivation(rng, []nn.ActivationType{nn.Sine}))

	g.IsCPPN = true
	require.True(t, g.MutateActivation(rng, []nn.ActivationType{nn.Sine}))
	out := g.layerNodes(OutputLayerID)
	assert.Equal(t, nn.Sine, out[0].Activation)
	assert.Equal(t, nn.Identity, g.layerNodes(0)[0].Activation)
}

func TestToNeuralNetworkSkipsDisabled(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	g := newTestGenome(t, rng, xorTopology())
	require.True(t, g.MutateAddNode(rng))

	net, err := g.ToNeuralNetwork()
	require.NoError(t, err)
	require.Len(t, net.Layers, 3)
	assert.Equal(t, []int{2, 1, 1}, []int{net.Layers[0].Size(), net.Layers[1].Size(), net.Layers[2].Size()})
	assert.Len(t, net.Connections(), countEnabled(g))

	out, err := net.Run([]float64{1, 0})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCloneIsDeep(t *testing.T) {
	g := newTestGenome(t, rand.New(rand.NewSource(10)), xorTopology())
	c := g.Clone()
	c.Connections[0].Connection.Weight = 42
	c.Nodes[0].Bias = 42
	assert.NotEqual(t, 42.0, g.Connections[0].Connection.Weight)
	assert.NotEqual(t, 42.0, g.Nodes[0].Bias)
}
