package neat

import (
	"math/rand"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

const maxAddConnectionAttempts = 20

// Mutate applies mutations to the genome. Each kind fires independently with
// its configured probability.
func (g *Genome) Mutate(rng *rand.Rand, cfg MutationConfig) {
	// --- Structural Mutations ---
	if rng.Float64() < cfg.NodeAddProb {
		g.MutateAddNode(rng)
	}
	if rng.Float64() < cfg.ConnAddProb {
		g.MutateAddConnection(rng)
	}
	if rng.Float64() < cfg.EnableProb {
		g.MutateEnable(rng)
	}
	if rng.Float64() < cfg.DisableProb {
		g.MutateDisable(rng)
	}

	// --- Attribute Mutations ---
	if rng.Float64() < cfg.WeightMutateProb {
		g.MutateWeights(rng, cfg.WeightMutatePower, cfg.WeightReplaceRate)
	}
	if rng.Float64() < cfg.BiasMutateProb {
		g.MutateBias(rng, cfg.BiasMutatePower)
	}
	if g.IsCPPN && rng.Float64() < cfg.ActivationMutateProb {
		g.MutateActivation(rng, cfg.activations())
	}
}

// MutateAddNode splits a random enabled forward connection A->B with a new
// hidden node C, adding A->C with weight 1 and C->B with the old weight, and
// disables A->B. It reports whether a split was made.
//
// C goes to the layer halfway between A and B. When A and B are in adjacent
// layers and A is hidden, C joins A's layer after its last neuron.
func (g *Genome) MutateAddNode(rng *rand.Rand) bool {
	candidates := make([]int, 0, len(g.Connections))
	for i, c := range g.Connections {
		if c.Enabled && !c.Connection.Recurrent {
			candidates = append(candidates, i)
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	for _, idx := range candidates {
		old := g.Connections[idx]
		src, dest := old.Src(), old.Dest()

		var layerID int
		switch {
		case dest.Layer-src.Layer >= 2:
			layerID = src.Layer + (dest.Layer-src.Layer)/2
		case dest.Layer-src.Layer == 1 && src.Layer != 0:
			layerID = src.Layer
		default:
			continue
		}

		node, err := NewNodeGene(layerID, g.nextNeuronID(layerID), nn.Hidden, g.HiddenActivation, 0)
		if err != nil {
			continue
		}
		in, err := NewConnectionGene(src, node.Link(), 1.0)
		if err != nil {
			continue
		}
		out, err := NewConnectionGene(node.Link(), dest, old.Connection.Weight)
		if err != nil {
			continue
		}

		g.Connections[idx].Enabled = false
		g.insertNode(node)
		g.insertConnection(in)
		g.insertConnection(out)
		return true
	}
	return false
}

// MutateAddConnection tries to connect two unconnected nodes. Recurrent
// connections are only considered when the genome allows them. It reports
// whether a connection was added.
func (g *Genome) MutateAddConnection(rng *rand.Rand) bool {
	if len(g.Nodes) < 2 {
		return false
	}
	for attempt := 0; attempt < maxAddConnectionAttempts; attempt++ {
		src := g.Nodes[rng.Intn(len(g.Nodes))].Link()
		dest := g.Nodes[rng.Intn(len(g.Nodes))].Link()
		if g.checkConnection(src, dest) != nil {
			continue
		}
		if _, exists := g.Connection(src, dest); exists {
			continue
		}
		cg, err := NewConnectionGene(src, dest, initialWeight(rng, len(g.layerNodes(src.Layer))))
		if err != nil {
			continue
		}
		g.insertConnection(cg)
		if cg.Connection.Recurrent {
			g.refreshNodeTypes()
		}
		return true
	}
	return false
}

// MutateWeights perturbs every non-frozen weight by N(0, power), replacing it
// with a fresh random weight with probability replaceRate.
func (g *Genome) MutateWeights(rng *rand.Rand, power, replaceRate float64) {
	for i := range g.Connections {
		c := &g.Connections[i].Connection
		if c.Frozen {
			continue
		}
		c.Weight = mutateFloatAttribute(rng, c.Weight, power, replaceRate, 1, 0)
	}
}

// MutateBias perturbs the bias of every non-input node by N(0, power).
func (g *Genome) MutateBias(rng *rand.Rand, power float64) {
	for i := range g.Nodes {
		if g.Nodes[i].Type == nn.Input {
			continue
		}
		g.Nodes[i].Bias += rng.NormFloat64() * power
	}
}

// MutateEnable enables a random disabled connection.
func (g *Genome) MutateEnable(rng *rand.Rand) bool {
	return g.toggleRandom(rng, false)
}

// MutateDisable disables a random enabled connection.
func (g *Genome) MutateDisable(rng *rand.Rand) bool {
	return g.toggleRandom(rng, true)
}

func (g *Genome) toggleRandom(rng *rand.Rand, from bool) bool {
	var candidates []int
	for i, c := range g.Connections {
		if c.Enabled == from {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	i := candidates[rng.Intn(len(candidates))]
	g.Connections[i].Enabled = !from
	if g.Connections[i].Connection.Recurrent {
		g.refreshNodeTypes()
	}
	return true
}

// MutateActivation gives a random hidden or output node of a CPPN a new
// activation function from options.
func (g *Genome) MutateActivation(rng *rand.Rand, options []nn.ActivationType) bool {
	if !g.IsCPPN || len(options) == 0 {
		return false
	}
	var candidates []int
	for i, n := range g.Nodes {
		if n.Type != nn.Input {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	n := &g.Nodes[candidates[rng.Intn(len(candidates))]]
	n.Activation = options[rng.Intn(len(options))]
	return true
}
