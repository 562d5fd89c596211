package nn

// Connection is a weighted edge. It is stored inside its source neuron, so Src
// always equals the Link of the neuron that owns it.
type Connection struct {
	Src  Link
	Dest Link

	Weight   float64
	Gradient float64 // accumulated dLoss/dWeight since the last ZeroGradients

	// Recurrent connections point backwards (Dest <= Src). When the destination
	// is a Context neuron the source's raw sum is copied into it instead of
	// being weighted.
	Recurrent bool
	// Frozen connections are skipped by weight mutation and by optimizers.
	Frozen bool
	// Cycles counts copies made into a Context neuron since its last reset.
	Cycles int
}

// Neuron is a single unit of the network. It owns its outgoing connections.
type Neuron struct {
	Type       NeuronType
	Activation ActivationType
	Bias       float64

	Sum          float64
	Output       float64
	Gradient     float64
	BiasGradient float64

	Connections []Connection
}

// NewNeuron returns a neuron of the given type with no connections.
func NewNeuron(typ NeuronType, activation ActivationType, bias float64) Neuron {
	return Neuron{Type: typ, Activation: activation, Bias: bias}
}

func (n *Neuron) connection(dest Link) (int, bool) {
	for i := range n.Connections {
		if n.Connections[i].Dest == dest {
			return i, true
		}
	}
	return -1, false
}

func (n *Neuron) activate() {
	if n.Type == Input {
		n.Output = n.Sum
		return
	}
	n.Output = n.Activation.Apply(n.Sum + n.Bias)
}

func (n *Neuron) reset() {
	n.Sum = 0
	n.Output = 0
	n.Gradient = 0
}

// NeuronLayer is an ordered group of neurons. The layer index is its position
// in the network.
type NeuronLayer struct {
	Neurons []Neuron
	// CyclesLimit bounds how many consecutive copies a Context neuron in this
	// layer keeps before it is cleared. Zero or less means no limit.
	CyclesLimit int
}

// NewNeuronLayer returns a layer of size identical neurons.
func NewNeuronLayer(size int, typ NeuronType, activation ActivationType) NeuronLayer {
	layer := NeuronLayer{Neurons: make([]Neuron, size)}
	for i := range layer.Neurons {
		layer.Neurons[i] = NewNeuron(typ, activation, 0)
	}
	return layer
}

// Size returns the number of neurons in the layer.
func (l *NeuronLayer) Size() int {
	return len(l.Neurons)
}
