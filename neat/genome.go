package neat

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// OutputLayerID is the genome-space layer of every output node. Inputs live in
// layer 0; hidden layers take ids in between so that splits can always place a
// node between two existing layers until the gap is exhausted.
const OutputLayerID = 1 << 24

// ErrInvalidGenome is returned by Validate and by loaders for genomes that
// break a structural invariant.
var ErrInvalidGenome = errors.New("invalid genome")

// Genome represents an individual organism in the population.
// It consists of NodeGenes and ConnectionGenes, both kept sorted by
// innovation ID.
type Genome struct {
	ID        int
	SpeciesID int
	Fitness   float64

	RecurrentAllowed bool
	IsCPPN           bool
	// HiddenActivation is given to nodes created by MutateAddNode.
	HiddenActivation nn.ActivationType

	Nodes       []NodeGene
	Connections []ConnectionGene
}

// GetGenome lets a bare genome be used as a population member.
func (g *Genome) GetGenome() *Genome { return g }

// Topology describes the initial shape of a genome.
type Topology struct {
	Inputs           int
	Outputs          int
	Hidden           []int
	HiddenActivation nn.ActivationType
	OutputActivation nn.ActivationType
	// FullyConnected links every layer to the next one. Otherwise only the
	// nodes are created.
	FullyConnected   bool
	RecurrentAllowed bool
	CPPN             bool
}

// NewGenome creates a genome with the given topology. Hidden layers are spaced
// evenly between the input and output layers. Connection weights are drawn
// from rng; biases start at zero.
func NewGenome(rng *rand.Rand, t Topology) (*Genome, error) {
	if t.Inputs <= 0 || t.Outputs <= 0 {
		return nil, fmt.Errorf("%w: genome needs inputs and outputs, got %d/%d", ErrInvalidGenome, t.Inputs, t.Outputs)
	}
	g := &Genome{
		RecurrentAllowed: t.RecurrentAllowed,
		IsCPPN:           t.CPPN,
		HiddenActivation: t.HiddenActivation,
	}

	layerIDs := []int{0}
	step := OutputLayerID / (len(t.Hidden) + 1)
	for i := range t.Hidden {
		layerIDs = append(layerIDs, step*(i+1))
	}
	layerIDs = append(layerIDs, OutputLayerID)
	sizes := append(append([]int{t.Inputs}, t.Hidden...), t.Outputs)

	for i, layerID := range layerIDs {
		typ, act := nn.Hidden, t.HiddenActivation
		switch i {
		case 0:
			typ, act = nn.Input, nn.Identity
		case len(layerIDs) - 1:
			typ, act = nn.Output, t.OutputActivation
		}
		if sizes[i] <= 0 {
			return nil, fmt.Errorf("%w: layer %d has size %d", ErrInvalidGenome, i, sizes[i])
		}
		for n := 0; n < sizes[i]; n++ {
			node, err := NewNodeGene(layerID, n, typ, act, 0)
			if err != nil {
				return nil, err
			}
			g.Nodes = append(g.Nodes, node)
		}
	}

	if t.FullyConnected {
		for i := 0; i+1 < len(layerIDs); i++ {
			for s := 0; s < sizes[i]; s++ {
				for d := 0; d < sizes[i+1]; d++ {
					cg, err := NewConnectionGene(
						nn.Link{Layer: layerIDs[i], Neuron: s},
						nn.Link{Layer: layerIDs[i+1], Neuron: d},
						initialWeight(rng, sizes[i]))
					if err != nil {
						return nil, err
					}
					g.Connections = append(g.Connections, cg)
				}
			}
		}
	}
	g.sortGenes()
	return g, nil
}

// Clone returns a deep copy of the genome.
func (g *Genome) Clone() *Genome {
	c := *g
	c.Nodes = slices.Clone(g.Nodes)
	c.Connections = slices.Clone(g.Connections)
	return &c
}

func (g *Genome) String() string {
	return fmt.Sprintf("Genome(%d, species %d, fitness %.4f, %d nodes, %d connections)",
		g.ID, g.SpeciesID, g.Fitness, len(g.Nodes), len(g.Connections))
}

func (g *Genome) sortGenes() {
	slices.SortFunc(g.Nodes, func(a, b NodeGene) int { return a.Innovation.Compare(b.Innovation) })
	slices.SortFunc(g.Connections, func(a, b ConnectionGene) int { return a.Innovation.Compare(b.Innovation) })
}

// Node returns the node at genome-space coordinate l.
func (g *Genome) Node(l nn.Link) (*NodeGene, bool) {
	id, err := NodeInnovation(l.Layer, l.Neuron)
	if err != nil {
		return nil, false
	}
	i, ok := slices.BinarySearchFunc(g.Nodes, id, func(n NodeGene, target InnovationID) int {
		return n.Innovation.Compare(target)
	})
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Connection returns the connection gene src -> dest.
func (g *Genome) Connection(src, dest nn.Link) (*ConnectionGene, bool) {
	id, err := ConnectionInnovation(src, dest)
	if err != nil {
		return nil, false
	}
	i, ok := slices.BinarySearchFunc(g.Connections, id, func(c ConnectionGene, target InnovationID) int {
		return c.Innovation.Compare(target)
	})
	if !ok {
		return nil, false
	}
	return &g.Connections[i], true
}

func (g *Genome) insertNode(n NodeGene) {
	i, _ := slices.BinarySearchFunc(g.Nodes, n.Innovation, func(x NodeGene, target InnovationID) int {
		return x.Innovation.Compare(target)
	})
	g.Nodes = slices.Insert(g.Nodes, i, n)
}

func (g *Genome) insertConnection(c ConnectionGene) {
	i, _ := slices.BinarySearchFunc(g.Connections, c.Innovation, func(x ConnectionGene, target InnovationID) int {
		return x.Innovation.Compare(target)
	})
	g.Connections = slices.Insert(g.Connections, i, c)
}

// layerNodes returns the nodes of one genome-space layer. Node order equals
// Link order, so the result is a contiguous sub-slice.
func (g *Genome) layerNodes(layerID int) []NodeGene {
	lo, _ := slices.BinarySearchFunc(g.Nodes, layerID, func(n NodeGene, layer int) int {
		if n.LayerID < layer {
			return -1
		}
		return 1
	})
	hi := lo
	for hi < len(g.Nodes) && g.Nodes[hi].LayerID == layerID {
		hi++
	}
	return g.Nodes[lo:hi]
}

func (g *Genome) nextNeuronID(layerID int) int {
	nodes := g.layerNodes(layerID)
	if len(nodes) == 0 {
		return 0
	}
	return nodes[len(nodes)-1].NeuronID + 1
}

func (g *Genome) isOutput(l nn.Link) bool { return l.Layer == OutputLayerID }

// InputCount returns the number of input nodes.
func (g *Genome) InputCount() int { return len(g.layerNodes(0)) }

// OutputCount returns the number of output nodes.
func (g *Genome) OutputCount() int { return len(g.layerNodes(OutputLayerID)) }

// refreshNodeTypes marks hidden nodes fed by an enabled recurrent connection as
// Context and reverts the rest to Hidden.
func (g *Genome) refreshNodeTypes() {
	targets := make(map[nn.Link]bool)
	for _, c := range g.Connections {
		if c.Enabled && c.Connection.Recurrent {
			targets[c.Connection.Dest] = true
		}
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		switch {
		case n.LayerID == 0:
			n.Type = nn.Input
		case n.LayerID == OutputLayerID:
			n.Type = nn.Output
		case targets[n.Link()]:
			n.Type = nn.Context
		default:
			n.Type = nn.Hidden
		}
	}
}

// checkConnection applies the structural rules shared by mutation and Validate.
func (g *Genome) checkConnection(src, dest nn.Link) error {
	recurrent := nn.IsRecurrent(src, dest)
	switch {
	case src == dest:
		return fmt.Errorf("%w: self connection %s", ErrInvalidGenome, src)
	case dest.Layer == 0:
		return fmt.Errorf("%w: connection %s -> %s targets an input", ErrInvalidGenome, src, dest)
	case recurrent && !g.RecurrentAllowed:
		return fmt.Errorf("%w: recurrent connection %s -> %s not allowed", ErrInvalidGenome, src, dest)
	case recurrent && g.isOutput(dest):
		return fmt.Errorf("%w: recurrent connection %s -> %s targets an output", ErrInvalidGenome, src, dest)
	case !recurrent && g.isOutput(src):
		return fmt.Errorf("%w: forward connection %s -> %s leaves an output", ErrInvalidGenome, src, dest)
	}
	if _, ok := g.Node(src); !ok {
		return fmt.Errorf("%w: unknown source node %s", ErrInvalidGenome, src)
	}
	if _, ok := g.Node(dest); !ok {
		return fmt.Errorf("%w: unknown destination node %s", ErrInvalidGenome, dest)
	}
	return nil
}

// Validate checks gene order, innovation IDs and connection rules.
func (g *Genome) Validate() error {
	if g.InputCount() == 0 || g.OutputCount() == 0 {
		return fmt.Errorf("%w: genome needs input and output nodes", ErrInvalidGenome)
	}
	for i, n := range g.Nodes {
		id, err := NodeInnovation(n.LayerID, n.NeuronID)
		if err != nil {
			return err
		}
		if id != n.Innovation {
			return fmt.Errorf("%w: node %s has innovation %s", ErrInvalidGenome, n.Link(), n.Innovation)
		}
		if n.LayerID > OutputLayerID {
			return fmt.Errorf("%w: node %s lies beyond the output layer", ErrInvalidGenome, n.Link())
		}
		if i > 0 && g.Nodes[i-1].Innovation.Compare(n.Innovation) >= 0 {
			return fmt.Errorf("%w: nodes not sorted at %d", ErrInvalidGenome, i)
		}
	}
	for i, c := range g.Connections {
		id, err := ConnectionInnovation(c.Src(), c.Dest())
		if err != nil {
			return err
		}
		if id != c.Innovation {
			return fmt.Errorf("%w: connection %s -> %s has innovation %s", ErrInvalidGenome, c.Src(), c.Dest(), c.Innovation)
		}
		if i > 0 && g.Connections[i-1].Innovation.Compare(c.Innovation) >= 0 {
			return fmt.Errorf("%w: connections not sorted at %d", ErrInvalidGenome, i)
		}
		if c.Connection.Recurrent != nn.IsRecurrent(c.Src(), c.Dest()) {
			return fmt.Errorf("%w: connection %s -> %s has wrong recurrent flag", ErrInvalidGenome, c.Src(), c.Dest())
		}
		if err := g.checkConnection(c.Src(), c.Dest()); err != nil {
			return err
		}
	}
	return nil
}

// ToNeuralNetwork builds the phenotype. Genome-space layer and neuron ids are
// remapped to dense positions in the same order, and only enabled connections
// are instantiated.
func (g *Genome) ToNeuralNetwork() (*nn.NeuralNetwork, error) {
	var layers []nn.NeuronLayer
	remap := make(map[nn.Link]nn.Link, len(g.Nodes))
	lastLayer := -1
	for _, node := range g.Nodes {
		if node.LayerID != lastLayer {
			layers = append(layers, nn.NeuronLayer{})
			lastLayer = node.LayerID
		}
		layer := &layers[len(layers)-1]
		typ := node.Type
		if typ == nn.Context {
			typ = nn.Hidden
		}
		remap[node.Link()] = nn.Link{Layer: len(layers) - 1, Neuron: len(layer.Neurons)}
		layer.Neurons = append(layer.Neurons, nn.NewNeuron(typ, node.Activation, node.Bias))
	}

	net, err := nn.NewNeuralNetwork(layers)
	if err != nil {
		return nil, fmt.Errorf("genome %d: %w", g.ID, err)
	}
	for _, c := range g.Connections {
		if !c.Enabled {
			continue
		}
		src, ok1 := remap[c.Src()]
		dest, ok2 := remap[c.Dest()]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: genome %d connection %s -> %s has a missing endpoint", ErrInvalidGenome, g.ID, c.Src(), c.Dest())
		}
		if err := net.AddConnection(src, dest, c.Connection.Weight); err != nil {
			return nil, fmt.Errorf("genome %d: %w", g.ID, err)
		}
		if c.Connection.Frozen {
			if conn, err := net.Connection(src, dest); err == nil {
				conn.Frozen = true
			}
		}
	}
	return net, nil
}
