package neat

import (
	"cmp"
	"errors"
	"fmt"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

const (
	neuronBits = 30
	layerBits  = 33

	maxNeuronID = 1<<neuronBits - 1
	maxLayerID  = 1<<layerBits - 1
)

// ErrCoordinateRange is returned when a layer or neuron id does not fit the
// innovation key.
var ErrCoordinateRange = errors.New("gene coordinate out of range")

// InnovationID is the historical marking of a gene. It is a pure function of
// the gene's structural coordinates, so two genomes that grow the same node or
// connection independently agree on its ID without a shared registry.
type InnovationID struct {
	Hi uint64
	Lo uint64
}

// Compare orders IDs lexicographically by Hi, then Lo.
func (id InnovationID) Compare(other InnovationID) int {
	if c := cmp.Compare(id.Hi, other.Hi); c != 0 {
		return c
	}
	return cmp.Compare(id.Lo, other.Lo)
}

func (id InnovationID) String() string {
	return fmt.Sprintf("%x:%x", id.Hi, id.Lo)
}

func nodeKey(l nn.Link) (uint64, error) {
	if l.Layer < 0 || l.Layer > maxLayerID {
		return 0, fmt.Errorf("%w: layer %d", ErrCoordinateRange, l.Layer)
	}
	if l.Neuron < 0 || l.Neuron > maxNeuronID {
		return 0, fmt.Errorf("%w: neuron %d", ErrCoordinateRange, l.Neuron)
	}
	return uint64(l.Layer)<<neuronBits | uint64(l.Neuron), nil
}

// NodeInnovation returns the innovation ID of the node at (layerID, neuronID).
// Node IDs sort in the same order as their Links.
func NodeInnovation(layerID, neuronID int) (InnovationID, error) {
	key, err := nodeKey(nn.Link{Layer: layerID, Neuron: neuronID})
	if err != nil {
		return InnovationID{}, err
	}
	return InnovationID{Lo: key}, nil
}

// ConnectionInnovation returns the innovation ID of the connection src -> dest.
func ConnectionInnovation(src, dest nn.Link) (InnovationID, error) {
	s, err := nodeKey(src)
	if err != nil {
		return InnovationID{}, err
	}
	d, err := nodeKey(dest)
	if err != nil {
		return InnovationID{}, err
	}
	return InnovationID{Hi: s, Lo: d}, nil
}
