// Package hyperneat generates fixed-topology substrate networks whose
// connections are authored by an evolved CPPN genome.
//
// Every substrate neuron sits at a point on a sheet. The CPPN is queried once
// per candidate connection with the geometry of its endpoints and answers with
// a weight and a link expression output (LEO). Only connections whose LEO
// exceeds the threshold are created.
package hyperneat

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/baldhumanity/hyperneat-go/neat"
	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// CPPN output positions.
const (
	WeightOutput = 0
	LEOOutput    = 1
	cppnOutputs  = 2
)

var (
	// ErrCPPNArity is returned when a genome does not have the input and
	// output counts the substrate mode queries with.
	ErrCPPNArity = errors.New("cppn arity does not match substrate mode")
	// ErrShape is returned for substrates without inputs or outputs.
	ErrShape = errors.New("invalid substrate shape")
)

// Shape is the neuron count of every substrate layer.
type Shape struct {
	Inputs  int
	Hidden  []int
	Outputs int
}

func (s Shape) sizes() []int {
	return append(append([]int{s.Inputs}, s.Hidden...), s.Outputs)
}

// Validate checks that every layer has at least one neuron.
func (s Shape) Validate() error {
	for i, size := range s.sizes() {
		if size <= 0 {
			return fmt.Errorf("%w: layer %d has size %d", ErrShape, i, size)
		}
	}
	return nil
}

// Settings configures substrate generation.
type Settings struct {
	Mode             Mode
	Shape            Shape
	HiddenActivation nn.ActivationType
	OutputActivation nn.ActivationType
	// LEOThreshold is the value the LEO output must exceed for a connection
	// to be expressed.
	LEOThreshold float64
	// MaxWeight scales the CPPN weight output and bounds substrate weights
	// to [-MaxWeight, MaxWeight].
	MaxWeight float64
}

// DefaultSettings returns a sandwich substrate with the given layer sizes.
func DefaultSettings(shape Shape) Settings {
	return Settings{
		Mode:             Sandwich,
		Shape:            shape,
		HiddenActivation: nn.Sigmoid,
		OutputActivation: nn.Sigmoid,
		LEOThreshold:     0,
		MaxWeight:        3,
	}
}

// Validate checks the shape and the weight bound.
func (s Settings) Validate() error {
	if err := s.Shape.Validate(); err != nil {
		return err
	}
	if s.MaxWeight <= 0 {
		return fmt.Errorf("max weight must be positive, got %g", s.MaxWeight)
	}
	if s.Mode != Grid && s.Mode != Sandwich {
		return fmt.Errorf("unknown substrate mode %d", int(s.Mode))
	}
	return nil
}

// NewCPPN creates a fully connected CPPN genome for mode with the given
// hidden layer sizes. Hidden nodes start as sine units and the two outputs as
// tanh units; MutateActivation may change both later.
func NewCPPN(rng *rand.Rand, mode Mode, hidden []int) (*neat.Genome, error) {
	return neat.NewGenome(rng, neat.Topology{
		Inputs:           mode.CPPNInputs(),
		Outputs:          cppnOutputs,
		Hidden:           hidden,
		HiddenActivation: nn.Sine,
		OutputActivation: nn.Tanh,
		FullyConnected:   true,
		CPPN:             true,
	})
}

// HyperNeat couples a CPPN genome with the substrate it generates. The
// substrate is rebuilt lazily, on first use after the genome or any setting
// changed.
//
// A HyperNeat can be used as a population member: the population rewrites the
// genome in place and calls GenomeChanged.
type HyperNeat struct {
	genome   *neat.Genome
	settings Settings

	substrate *nn.NeuralNetwork
	valid     bool
}

var (
	_ neat.Member         = (*HyperNeat)(nil)
	_ neat.GenomeObserver = (*HyperNeat)(nil)
)

// New wraps genome. The genome must have the input count of the mode and two
// outputs.
func New(genome *neat.Genome, settings Settings) (*HyperNeat, error) {
	if genome == nil {
		return nil, errors.New("hyperneat needs a cppn genome")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := checkArity(genome, settings.Mode); err != nil {
		return nil, err
	}
	settings.Shape.Hidden = append([]int(nil), settings.Shape.Hidden...)
	return &HyperNeat{genome: genome, settings: settings}, nil
}

// Factory returns a member factory for populations of HyperNeat individuals.
// cppnHidden sets the hidden layers of new CPPNs.
func Factory(settings Settings, cppnHidden []int) neat.Factory[*HyperNeat] {
	return func(rng *rand.Rand) (*HyperNeat, error) {
		g, err := NewCPPN(rng, settings.Mode, cppnHidden)
		if err != nil {
			return nil, err
		}
		return New(g, settings)
	}
}

func checkArity(g *neat.Genome, mode Mode) error {
	if g.InputCount() != mode.CPPNInputs() || g.OutputCount() != cppnOutputs {
		return fmt.Errorf("%w: %s mode needs %d inputs and %d outputs, genome has %d and %d",
			ErrCPPNArity, mode, mode.CPPNInputs(), cppnOutputs, g.InputCount(), g.OutputCount())
	}
	return nil
}

// GetGenome returns the CPPN genome.
func (h *HyperNeat) GetGenome() *neat.Genome { return h.genome }

// GenomeChanged marks the substrate stale.
func (h *HyperNeat) GenomeChanged() { h.valid = false }

// Settings returns a copy of the current settings.
func (h *HyperNeat) Settings() Settings {
	s := h.settings
	s.Shape.Hidden = append([]int(nil), s.Shape.Hidden...)
	return s
}

// SetShape changes the substrate layer sizes.
func (h *HyperNeat) SetShape(shape Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	h.settings.Shape = Shape{Inputs: shape.Inputs, Hidden: append([]int(nil), shape.Hidden...), Outputs: shape.Outputs}
	h.valid = false
	return nil
}

// SetMode switches between grid and sandwich queries. The genome must already
// have the input count of the new mode.
func (h *HyperNeat) SetMode(mode Mode) error {
	if err := checkArity(h.genome, mode); err != nil {
		return err
	}
	h.settings.Mode = mode
	h.valid = false
	return nil
}

// SetLEOThreshold changes the link expression threshold.
func (h *HyperNeat) SetLEOThreshold(threshold float64) {
	h.settings.LEOThreshold = threshold
	h.valid = false
}

// SetMaxWeight changes the weight scale and bound.
func (h *HyperNeat) SetMaxWeight(w float64) error {
	if w <= 0 {
		return fmt.Errorf("max weight must be positive, got %g", w)
	}
	h.settings.MaxWeight = w
	h.valid = false
	return nil
}

// SetActivations changes the substrate hidden and output activations.
func (h *HyperNeat) SetActivations(hidden, output nn.ActivationType) {
	h.settings.HiddenActivation = hidden
	h.settings.OutputActivation = output
	h.valid = false
}

// Substrate returns the generated network, rebuilding it first when stale.
// The returned network stays owned by h and is replaced on the next rebuild.
func (h *HyperNeat) Substrate() (*nn.NeuralNetwork, error) {
	if h.valid && h.substrate != nil {
		return h.substrate, nil
	}
	net, err := h.build()
	if err != nil {
		return nil, err
	}
	h.substrate, h.valid = net, true
	return net, nil
}

// Run evaluates the substrate on inputs.
func (h *HyperNeat) Run(inputs []float64) ([]float64, error) {
	net, err := h.Substrate()
	if err != nil {
		return nil, err
	}
	return net.Run(inputs)
}

func (h *HyperNeat) build() (*nn.NeuralNetwork, error) {
	s := h.settings
	if err := checkArity(h.genome, s.Mode); err != nil {
		return nil, err
	}
	cppn, err := h.genome.ToNeuralNetwork()
	if err != nil {
		return nil, fmt.Errorf("failed to build cppn: %w", err)
	}

	sizes := s.Shape.sizes()
	layers := make([]nn.NeuronLayer, len(sizes))
	for i, size := range sizes {
		typ, act := nn.Hidden, s.HiddenActivation
		switch i {
		case 0:
			typ, act = nn.Input, nn.Identity
		case len(sizes) - 1:
			typ, act = nn.Output, s.OutputActivation
		}
		layers[i] = nn.NewNeuronLayer(size, typ, act)
	}
	substrate, err := nn.NewNeuralNetwork(layers)
	if err != nil {
		return nil, err
	}

	sheet := newSheet(sizes)
	expressed := 0
	query := make([]float64, s.Mode.CPPNInputs())
	for _, pair := range s.Mode.candidates(sizes) {
		s.Mode.fill(query, sheet, pair[0], pair[1])
		out, err := cppn.Run(query)
		if err != nil {
			return nil, fmt.Errorf("cppn query failed: %w", err)
		}
		if !(out[LEOOutput] > s.LEOThreshold) {
			continue
		}
		w := out[WeightOutput] * s.MaxWeight
		w = math.Max(-s.MaxWeight, math.Min(s.MaxWeight, w))
		if math.IsNaN(w) {
			continue
		}
		if err := substrate.AddConnection(pair[0], pair[1], w); err != nil {
			return nil, err
		}
		expressed++
	}

	getLogger().Debug("substrate rebuilt",
		"genome", h.genome.ID, "mode", s.Mode.String(), "neurons", substrate.NeuronCount(), "connections", expressed)
	return substrate, nil
}
