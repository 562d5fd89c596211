package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
)

var (
	ErrTooFewLayers   = errors.New("network needs at least an input and an output layer")
	ErrInputSize      = errors.New("input size does not match the input layer")
	ErrOutputSize     = errors.New("gradient size does not match the output layer")
	ErrNoHiddenLayers = errors.New("elman network needs at least one hidden layer")
	ErrBadLink        = errors.New("link does not address a neuron")
	ErrBadConnection  = errors.New("connection is not allowed")
)

// NeuralNetwork is a directed graph of neurons arranged in layers. Layer 0 is
// the input layer and the last layer is the output layer. Connections may
// skip layers, stay inside a hidden layer or point backwards.
type NeuralNetwork struct {
	Layers []NeuronLayer

	neuronCache   []neuronRef
	neuronsCached bool
	connCache     []*Connection
	connsCached   bool
}

type neuronRef struct {
	link   Link
	neuron *Neuron
}

// NewNeuralNetwork wraps the given layers. Neuron types of the first and last
// layers are forced to Input and Output, and recurrent destinations become
// Context neurons.
func NewNeuralNetwork(layers []NeuronLayer) (*NeuralNetwork, error) {
	if len(layers) < 2 {
		return nil, ErrTooFewLayers
	}
	n := &NeuralNetwork{Layers: layers}
	for i := range n.Layers[0].Neurons {
		n.Layers[0].Neurons[i].Type = Input
	}
	last := n.OutputLayer()
	for i := range last.Neurons {
		last.Neurons[i].Type = Output
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	n.markContext()
	return n, nil
}

// NewFeedForward builds a fully connected layered network. sizes lists the
// neuron count of each layer, inputs first. Weights are drawn from rng and
// scaled by the size of the source layer.
func NewFeedForward(rng *rand.Rand, sizes []int, hidden, output ActivationType) (*NeuralNetwork, error) {
	if len(sizes) < 2 {
		return nil, ErrTooFewLayers
	}
	layers := make([]NeuronLayer, len(sizes))
	for i, size := range sizes {
		switch {
		case i == 0:
			layers[i] = NewNeuronLayer(size, Input, Identity)
		case i == len(sizes)-1:
			layers[i] = NewNeuronLayer(size, Output, output)
		default:
			layers[i] = NewNeuronLayer(size, Hidden, hidden)
		}
	}
	n, err := NewNeuralNetwork(layers)
	if err != nil {
		return nil, err
	}
	for l := 0; l+1 < len(sizes); l++ {
		if err := n.connectLayers(rng, l, l+1); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NewElman builds an Elman network. Every hidden layer is preceded by a
// context layer of the same size: the hidden layer copies its raw sums into
// the context layer on each run, and the context layer feeds the hidden layer
// on the next run. cyclesLimit bounds how long a copied value persists.
func NewElman(rng *rand.Rand, inputs int, hidden []int, outputs int, hiddenAct, outputAct ActivationType, cyclesLimit int) (*NeuralNetwork, error) {
	if len(hidden) == 0 {
		return nil, ErrNoHiddenLayers
	}
	layers := []NeuronLayer{NewNeuronLayer(inputs, Input, Identity)}
	for _, size := range hidden {
		ctx := NewNeuronLayer(size, Context, Identity)
		ctx.CyclesLimit = cyclesLimit
		layers = append(layers, ctx, NewNeuronLayer(size, Hidden, hiddenAct))
	}
	layers = append(layers, NewNeuronLayer(outputs, Output, outputAct))

	n, err := NewNeuralNetwork(layers)
	if err != nil {
		return nil, err
	}
	prev := 0
	for i := range hidden {
		ctx, hid := 1+2*i, 2+2*i
		if err := n.connectLayers(rng, prev, hid); err != nil {
			return nil, err
		}
		if err := n.connectLayers(rng, ctx, hid); err != nil {
			return nil, err
		}
		for j := range n.Layers[hid].Neurons {
			if err := n.AddConnection(Link{hid, j}, Link{ctx, j}, 1.0); err != nil {
				return nil, err
			}
		}
		prev = hid
	}
	if err := n.connectLayers(rng, prev, len(layers)-1); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *NeuralNetwork) connectLayers(rng *rand.Rand, from, to int) error {
	scale := 1 / math.Sqrt(math.Max(1, float64(len(n.Layers[from].Neurons))))
	for i := range n.Layers[from].Neurons {
		for j := range n.Layers[to].Neurons {
			w := 1.0
			if rng != nil {
				w = rng.NormFloat64() * scale
			}
			if err := n.AddConnection(Link{from, i}, Link{to, j}, w); err != nil {
				return err
			}
		}
	}
	return nil
}

// InputLayer returns the first layer.
func (n *NeuralNetwork) InputLayer() *NeuronLayer {
	return &n.Layers[0]
}

// OutputLayer returns the last layer.
func (n *NeuralNetwork) OutputLayer() *NeuronLayer {
	return &n.Layers[len(n.Layers)-1]
}

// Neuron returns the neuron addressed by l.
func (n *NeuralNetwork) Neuron(l Link) (*Neuron, error) {
	if !n.valid(l) {
		return nil, fmt.Errorf("%w: %s", ErrBadLink, l)
	}
	return &n.Layers[l.Layer].Neurons[l.Neuron], nil
}

// Connection returns the connection from src to dest.
func (n *NeuralNetwork) Connection(src, dest Link) (*Connection, error) {
	s, err := n.Neuron(src)
	if err != nil {
		return nil, err
	}
	i, ok := s.connection(dest)
	if !ok {
		return nil, fmt.Errorf("no connection %s -> %s", src, dest)
	}
	return &s.Connections[i], nil
}

func (n *NeuralNetwork) valid(l Link) bool {
	return l.Layer >= 0 && l.Layer < len(n.Layers) && l.Neuron >= 0 && l.Neuron < len(n.Layers[l.Layer].Neurons)
}

func (n *NeuralNetwork) at(l Link) *Neuron {
	return &n.Layers[l.Layer].Neurons[l.Neuron]
}

func (n *NeuralNetwork) isOutput(l Link) bool {
	return l.Layer == len(n.Layers)-1
}

// NeuronCount returns the number of neurons in all layers.
func (n *NeuralNetwork) NeuronCount() int {
	return len(n.neurons())
}

// Connections returns every connection in evaluation order. The pointers stay
// valid until the next structural edit.
func (n *NeuralNetwork) Connections() []*Connection {
	if !n.connsCached {
		n.connCache = n.connCache[:0]
		for _, ref := range n.neurons() {
			for i := range ref.neuron.Connections {
				n.connCache = append(n.connCache, &ref.neuron.Connections[i])
			}
		}
		n.connsCached = true
	}
	return n.connCache
}

func (n *NeuralNetwork) neurons() []neuronRef {
	if !n.neuronsCached {
		n.neuronCache = n.neuronCache[:0]
		for l := range n.Layers {
			for i := range n.Layers[l].Neurons {
				n.neuronCache = append(n.neuronCache, neuronRef{Link{l, i}, &n.Layers[l].Neurons[i]})
			}
		}
		n.neuronsCached = true
	}
	return n.neuronCache
}

func (n *NeuralNetwork) invalidate() {
	n.neuronsCached = false
	n.connsCached = false
}

// AddLayer inserts an empty hidden layer at index at, which must lie strictly
// between the input and output layers. Links to later layers shift up by one.
func (n *NeuralNetwork) AddLayer(at int, layer NeuronLayer) error {
	if at <= 0 || at >= len(n.Layers) {
		return fmt.Errorf("%w: layer %d", ErrBadLink, at)
	}
	for i := range layer.Neurons {
		if len(layer.Neurons[i].Connections) > 0 {
			return fmt.Errorf("%w: new layer must not carry connections", ErrBadConnection)
		}
		if t := layer.Neurons[i].Type; t == Input || t == Output {
			layer.Neurons[i].Type = Hidden
		}
	}
	for _, c := range n.Connections() {
		if c.Src.Layer >= at {
			c.Src.Layer++
		}
		if c.Dest.Layer >= at {
			c.Dest.Layer++
		}
	}
	n.Layers = slices.Insert(n.Layers, at, layer)
	n.invalidate()
	return nil
}

// AddNeuron appends a neuron to the given layer and returns its Link.
func (n *NeuralNetwork) AddNeuron(layer int, neuron Neuron) (Link, error) {
	if layer < 0 || layer >= len(n.Layers) {
		return Link{}, fmt.Errorf("%w: layer %d", ErrBadLink, layer)
	}
	switch layer {
	case 0:
		neuron.Type = Input
	case len(n.Layers) - 1:
		neuron.Type = Output
	}
	l := Link{layer, len(n.Layers[layer].Neurons)}
	conns := neuron.Connections
	neuron.Connections = nil
	n.Layers[layer].Neurons = append(n.Layers[layer].Neurons, neuron)
	n.invalidate()
	for _, c := range conns {
		if err := n.AddConnection(l, c.Dest, c.Weight); err != nil {
			n.Layers[layer].Neurons = n.Layers[layer].Neurons[:l.Neuron]
			n.invalidate()
			n.markContext()
			return Link{}, err
		}
	}
	n.markContext()
	return l, nil
}

// RemoveNeuron deletes the neuron at l with its incoming and outgoing
// connections. Links to later neurons of the same layer shift down by one.
func (n *NeuralNetwork) RemoveNeuron(l Link) error {
	if !n.valid(l) {
		return fmt.Errorf("%w: %s", ErrBadLink, l)
	}
	layer := &n.Layers[l.Layer]
	layer.Neurons = slices.Delete(layer.Neurons, l.Neuron, l.Neuron+1)

	shift := func(x *Link) {
		if x.Layer == l.Layer && x.Neuron > l.Neuron {
			x.Neuron--
		}
	}
	for li := range n.Layers {
		for ni := range n.Layers[li].Neurons {
			src := &n.Layers[li].Neurons[ni]
			src.Connections = slices.DeleteFunc(src.Connections, func(c Connection) bool {
				return c.Dest == l
			})
			for ci := range src.Connections {
				shift(&src.Connections[ci].Src)
				shift(&src.Connections[ci].Dest)
			}
		}
	}
	n.invalidate()
	n.markContext()
	return nil
}

// AddConnection connects src to dest. Connections into the input layer,
// forward connections out of the output layer, self connections and
// duplicates are rejected. A backward connection turns its destination into a
// Context neuron.
func (n *NeuralNetwork) AddConnection(src, dest Link, weight float64) error {
	if err := n.checkConnection(src, dest); err != nil {
		return err
	}
	s := n.at(src)
	if _, ok := s.connection(dest); ok {
		return fmt.Errorf("%w: duplicate %s -> %s", ErrBadConnection, src, dest)
	}
	s.Connections = append(s.Connections, Connection{
		Src:       src,
		Dest:      dest,
		Weight:    weight,
		Recurrent: IsRecurrent(src, dest),
	})
	n.invalidate()
	if d := n.at(dest); IsRecurrent(src, dest) && d.Type == Hidden {
		d.Type = Context
	}
	return nil
}

func (n *NeuralNetwork) checkConnection(src, dest Link) error {
	if !n.valid(src) {
		return fmt.Errorf("%w: source %s", ErrBadLink, src)
	}
	if !n.valid(dest) {
		return fmt.Errorf("%w: destination %s", ErrBadLink, dest)
	}
	switch {
	case src == dest:
		return fmt.Errorf("%w: self connection %s", ErrBadConnection, src)
	case dest.Layer == 0:
		return fmt.Errorf("%w: %s targets the input layer", ErrBadConnection, dest)
	case IsRecurrent(src, dest) && n.isOutput(dest):
		return fmt.Errorf("%w: recurrent connection %s -> %s targets the output layer", ErrBadConnection, src, dest)
	case !IsRecurrent(src, dest) && n.isOutput(src):
		return fmt.Errorf("%w: forward connection %s -> %s leaves the output layer", ErrBadConnection, src, dest)
	}
	return nil
}

// RemoveConnection deletes the connection from src to dest.
func (n *NeuralNetwork) RemoveConnection(src, dest Link) error {
	if !n.valid(src) {
		return fmt.Errorf("%w: source %s", ErrBadLink, src)
	}
	s := n.at(src)
	i, ok := s.connection(dest)
	if !ok {
		return fmt.Errorf("no connection %s -> %s", src, dest)
	}
	s.Connections = slices.Delete(s.Connections, i, i+1)
	n.invalidate()
	n.markContext()
	return nil
}

// SetCyclesLimit sets the context persistence bound of a layer.
func (n *NeuralNetwork) SetCyclesLimit(layer, limit int) error {
	if layer < 0 || layer >= len(n.Layers) {
		return fmt.Errorf("%w: layer %d", ErrBadLink, layer)
	}
	n.Layers[layer].CyclesLimit = limit
	return nil
}

// markContext re-derives Hidden/Context types from recurrent connections.
func (n *NeuralNetwork) markContext() {
	targets := make(map[Link]bool)
	for _, c := range n.Connections() {
		if c.Recurrent {
			targets[c.Dest] = true
		}
	}
	for _, ref := range n.neurons() {
		switch {
		case ref.neuron.Type == Hidden && targets[ref.link]:
			ref.neuron.Type = Context
		case ref.neuron.Type == Context && !targets[ref.link]:
			ref.neuron.Type = Hidden
		}
	}
}

func (n *NeuralNetwork) softmaxOutput() bool {
	out := n.OutputLayer().Neurons
	if len(out) == 0 {
		return false
	}
	for i := range out {
		if out[i].Activation != Softmax {
			return false
		}
	}
	return true
}
