package neat

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// --------------------------- NodeGene ---------------------------

// NodeGene represents a neuron in the genome. LayerID and NeuronID are
// genome-space coordinates: layer 0 holds the inputs and OutputLayerID the
// outputs, with hidden layers placed between them.
type NodeGene struct {
	LayerID    int
	NeuronID   int
	Type       nn.NeuronType
	Activation nn.ActivationType
	Bias       float64

	Innovation InnovationID
}

// NewNodeGene creates a node gene and computes its innovation ID.
func NewNodeGene(layerID, neuronID int, typ nn.NeuronType, activation nn.ActivationType, bias float64) (NodeGene, error) {
	id, err := NodeInnovation(layerID, neuronID)
	if err != nil {
		return NodeGene{}, err
	}
	return NodeGene{
		LayerID:    layerID,
		NeuronID:   neuronID,
		Type:       typ,
		Activation: activation,
		Bias:       bias,
		Innovation: id,
	}, nil
}

// ID returns the innovation ID.
func (ng NodeGene) ID() InnovationID { return ng.Innovation }

// Link returns the genome-space coordinate of the node.
func (ng NodeGene) Link() nn.Link { return nn.Link{Layer: ng.LayerID, Neuron: ng.NeuronID} }

func (ng NodeGene) String() string {
	return fmt.Sprintf("NodeGene(%d/%d, %s, %s, bias %.3f)", ng.LayerID, ng.NeuronID, ng.Type, ng.Activation, ng.Bias)
}

// Crossover creates a child by inheriting each attribute from either parent
// with equal probability. ng is the primary parent.
func (ng NodeGene) Crossover(rng *rand.Rand, other NodeGene) NodeGene {
	child := ng
	if rng.Float64() < 0.5 {
		child.Bias = other.Bias
	}
	if rng.Float64() < 0.5 {
		child.Activation = other.Activation
	}
	return child
}

// --------------------------- ConnectionGene ---------------------------

// ConnectionGene wraps a connection between two node genes. Src and Dest of
// the embedded connection are genome-space coordinates.
type ConnectionGene struct {
	Connection nn.Connection
	Enabled    bool

	Innovation InnovationID
}

// NewConnectionGene creates an enabled connection gene. The recurrent flag is
// derived from the endpoints.
func NewConnectionGene(src, dest nn.Link, weight float64) (ConnectionGene, error) {
	id, err := ConnectionInnovation(src, dest)
	if err != nil {
		return ConnectionGene{}, err
	}
	return ConnectionGene{
		Connection: nn.Connection{
			Src:       src,
			Dest:      dest,
			Weight:    weight,
			Recurrent: nn.IsRecurrent(src, dest),
		},
		Enabled:    true,
		Innovation: id,
	}, nil
}

// ID returns the innovation ID.
func (cg ConnectionGene) ID() InnovationID { return cg.Innovation }

// Src returns the source coordinate.
func (cg ConnectionGene) Src() nn.Link { return cg.Connection.Src }

// Dest returns the destination coordinate.
func (cg ConnectionGene) Dest() nn.Link { return cg.Connection.Dest }

func (cg ConnectionGene) String() string {
	return fmt.Sprintf("ConnGene(%s->%s, weight %.3f, enabled %t)",
		cg.Connection.Src, cg.Connection.Dest, cg.Connection.Weight, cg.Enabled)
}

// Crossover creates a child of two matching connection genes. The weight comes
// from either parent with equal probability. When either parent has the gene
// disabled, the child is disabled with probability disableProb.
func (cg ConnectionGene) Crossover(rng *rand.Rand, other ConnectionGene, disableProb float64) ConnectionGene {
	child := cg
	if rng.Float64() < 0.5 {
		child.Connection.Weight = other.Connection.Weight
	}
	child.Enabled = true
	if !cg.Enabled || !other.Enabled {
		child.Enabled = rng.Float64() >= disableProb
	}
	return child
}

// --------------------------- Attribute Helpers ---------------------------

// mutateFloatAttribute perturbs value by N(0, power), or with probability
// replaceRate draws a fresh N(0, stdev) value instead.
func mutateFloatAttribute(rng *rand.Rand, value, power, replaceRate, stdev, limit float64) float64 {
	if rng.Float64() < replaceRate {
		return clamp(rng.NormFloat64()*stdev, -limit, limit)
	}
	return clamp(value+rng.NormFloat64()*power, -limit, limit)
}

func clamp(value, minVal, maxVal float64) float64 {
	if maxVal <= 0 {
		return value
	}
	return math.Max(minVal, math.Min(value, maxVal))
}

// initialWeight draws a weight scaled by the size of the source layer.
func initialWeight(rng *rand.Rand, sourceLayerSize int) float64 {
	return rng.NormFloat64() / math.Sqrt(math.Max(1, float64(sourceLayerSize)))
}
