package neat

import (
	"math"
	"math/rand"
)

type gene interface {
	ID() InnovationID
}

// matchGenes walks two sorted gene lists in lockstep and pairs genes with
// equal innovation IDs.
func matchGenes[G gene](a, b []G) ([]G, []G) {
	var left, right []G
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := a[i].ID().Compare(b[j].ID()); {
		case c == 0:
			left = append(left, a[i])
			right = append(right, b[j])
			i++
			j++
		case c < 0:
			i++
		default:
			j++
		}
	}
	return left, right
}

// unmatchedGenes returns the genes of a that are missing from b, split into
// disjoint genes (within b's innovation range) and excess genes (beyond it).
func unmatchedGenes[G gene](a, b []G) (disjoint, excess []G) {
	if len(b) == 0 {
		return nil, append([]G(nil), a...)
	}
	limit := b[len(b)-1].ID()
	j := 0
	for _, x := range a {
		id := x.ID()
		if id.Compare(limit) > 0 {
			excess = append(excess, x)
			continue
		}
		for j < len(b) && b[j].ID().Compare(id) < 0 {
			j++
		}
		if j < len(b) && b[j].ID() == id {
			continue
		}
		disjoint = append(disjoint, x)
	}
	return disjoint, excess
}

// MatchingNodeGenes pairs the node genes present in both genomes.
func MatchingNodeGenes(g1, g2 *Genome) ([]NodeGene, []NodeGene) {
	return matchGenes(g1.Nodes, g2.Nodes)
}

// MatchingConnectionGenes pairs the connection genes present in both genomes.
func MatchingConnectionGenes(g1, g2 *Genome) ([]ConnectionGene, []ConnectionGene) {
	return matchGenes(g1.Connections, g2.Connections)
}

// DisjointNodeGenes returns node genes of g1 absent from g2 that fall within
// g2's innovation range.
func DisjointNodeGenes(g1, g2 *Genome) []NodeGene {
	d, _ := unmatchedGenes(g1.Nodes, g2.Nodes)
	return d
}

// DisjointConnectionGenes returns connection genes of g1 absent from g2 that
// fall within g2's innovation range.
func DisjointConnectionGenes(g1, g2 *Genome) []ConnectionGene {
	d, _ := unmatchedGenes(g1.Connections, g2.Connections)
	return d
}

// ExcessNodeGenes returns node genes of g1 beyond g2's highest innovation ID.
func ExcessNodeGenes(g1, g2 *Genome) []NodeGene {
	_, e := unmatchedGenes(g1.Nodes, g2.Nodes)
	return e
}

// ExcessConnectionGenes returns connection genes of g1 beyond g2's highest
// innovation ID.
func ExcessConnectionGenes(g1, g2 *Genome) []ConnectionGene {
	_, e := unmatchedGenes(g1.Connections, g2.Connections)
	return e
}

// smallGenomeLimit is the connection count up to which excess and disjoint
// counts are not normalized by genome size.
const smallGenomeLimit = 20

// Distance is the NEAT compatibility distance
//
//	c1*E/N + c2*D/N + c3*W
//
// over connection genes, where E and D count the excess and disjoint genes of
// g1 relative to g2 and W is the mean absolute weight difference of matching
// genes. N is the size of the larger genome once it exceeds 20 genes, else 1.
// The measure is directional: Distance(a, b) may differ from Distance(b, a).
func Distance(g1, g2 *Genome, c1, c2, c3 float64) float64 {
	disjoint, excess := unmatchedGenes(g1.Connections, g2.Connections)

	n := 1.0
	if size := max(len(g1.Connections), len(g2.Connections)); size > smallGenomeLimit {
		n = float64(size)
	}

	weightDiff := 0.0
	left, right := matchGenes(g1.Connections, g2.Connections)
	if len(left) > 0 {
		for i := range left {
			weightDiff += math.Abs(left[i].Connection.Weight - right[i].Connection.Weight)
		}
		weightDiff /= float64(len(left))
	}

	return c1*float64(len(excess))/n + c2*float64(len(disjoint))/n + c3*weightDiff
}

// Reproduce creates a child genome from two parents. The fitter parent is the
// primary one (chosen at random on a tie) and contributes its whole structure:
// matching genes mix attributes from both parents, while disjoint and excess
// genes come from the primary parent only. Matching connections disabled in
// either parent stay disabled with probability disableProb.
func Reproduce(rng *rand.Rand, g1, g2 *Genome, disableProb float64) *Genome {
	primary, other := g1, g2
	if g2.Fitness > g1.Fitness || (g2.Fitness == g1.Fitness && rng.Float64() < 0.5) {
		primary, other = g2, g1
	}

	child := &Genome{
		SpeciesID:        primary.SpeciesID,
		RecurrentAllowed: primary.RecurrentAllowed,
		IsCPPN:           primary.IsCPPN,
		HiddenActivation: primary.HiddenActivation,
		Nodes:            make([]NodeGene, 0, len(primary.Nodes)),
		Connections:      make([]ConnectionGene, 0, len(primary.Connections)),
	}

	j := 0
	for _, n := range primary.Nodes {
		for j < len(other.Nodes) && other.Nodes[j].Innovation.Compare(n.Innovation) < 0 {
			j++
		}
		if j < len(other.Nodes) && other.Nodes[j].Innovation == n.Innovation {
			child.Nodes = append(child.Nodes, n.Crossover(rng, other.Nodes[j]))
			continue
		}
		child.Nodes = append(child.Nodes, n)
	}

	j = 0
	for _, c := range primary.Connections {
		for j < len(other.Connections) && other.Connections[j].Innovation.Compare(c.Innovation) < 0 {
			j++
		}
		if j < len(other.Connections) && other.Connections[j].Innovation == c.Innovation {
			child.Connections = append(child.Connections, c.Crossover(rng, other.Connections[j], disableProb))
			continue
		}
		child.Connections = append(child.Connections, c)
	}
	child.refreshNodeTypes()
	return child
}
