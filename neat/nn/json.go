package nn

import (
	"encoding/json"
	"fmt"

	"github.com/baldhumanity/hyperneat-go/neat/internal/jsonnum"
)

type linkJSON struct {
	Layer  string `json:"layer"`
	Neuron string `json:"neuron"`
}

func (l Link) toJSON() linkJSON {
	return linkJSON{Layer: jsonnum.Format(l.Layer), Neuron: jsonnum.Format(l.Neuron)}
}

func (j linkJSON) link() (Link, error) {
	layer, err := jsonnum.Parse(j.Layer)
	if err != nil {
		return Link{}, err
	}
	neuron, err := jsonnum.Parse(j.Neuron)
	if err != nil {
		return Link{}, err
	}
	return Link{Layer: layer, Neuron: neuron}, nil
}

// MarshalJSON writes layer and neuron as decimal strings.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.toJSON())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Link) UnmarshalJSON(data []byte) error {
	var j linkJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	parsed, err := j.link()
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

type connectionJSON struct {
	Src       Link    `json:"src"`
	Dest      Link    `json:"dest"`
	Weight    float64 `json:"weight"`
	Recurrent bool    `json:"recurrent"`
	Frozen    bool    `json:"frozen"`
	Cycles    string  `json:"cycles"`
}

// MarshalJSON implements json.Marshaler.
func (c Connection) MarshalJSON() ([]byte, error) {
	return json.Marshal(connectionJSON{
		Src:       c.Src,
		Dest:      c.Dest,
		Weight:    c.Weight,
		Recurrent: c.Recurrent,
		Frozen:    c.Frozen,
		Cycles:    jsonnum.Format(c.Cycles),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Gradients are not persisted.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var j connectionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	cycles, err := jsonnum.Parse(j.Cycles)
	if err != nil {
		return err
	}
	*c = Connection{
		Src:       j.Src,
		Dest:      j.Dest,
		Weight:    j.Weight,
		Recurrent: j.Recurrent,
		Frozen:    j.Frozen,
		Cycles:    cycles,
	}
	return nil
}

type neuronJSON struct {
	Type        NeuronType     `json:"type"`
	Activation  ActivationType `json:"activation"`
	Bias        float64        `json:"bias"`
	Sum         float64        `json:"sum"`
	Output      float64        `json:"output"`
	Connections []Connection   `json:"connections"`
}

type layerJSON struct {
	CyclesLimit string       `json:"cyclesLimit"`
	Neurons     []neuronJSON `json:"neurons"`
}

type networkJSON struct {
	Layers []layerJSON `json:"layers"`
}

// MarshalJSON writes the network structure together with neuron state, so a
// reloaded recurrent network keeps its context values.
func (n *NeuralNetwork) MarshalJSON() ([]byte, error) {
	out := networkJSON{Layers: make([]layerJSON, len(n.Layers))}
	for l, layer := range n.Layers {
		lj := layerJSON{
			CyclesLimit: jsonnum.Format(layer.CyclesLimit),
			Neurons:     make([]neuronJSON, len(layer.Neurons)),
		}
		for i, nr := range layer.Neurons {
			conns := nr.Connections
			if conns == nil {
				conns = []Connection{}
			}
			lj.Neurons[i] = neuronJSON{
				Type:        nr.Type,
				Activation:  nr.Activation,
				Bias:        nr.Bias,
				Sum:         nr.Sum,
				Output:      nr.Output,
				Connections: conns,
			}
		}
		out.Layers[l] = lj
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a network written by MarshalJSON and validates it.
func (n *NeuralNetwork) UnmarshalJSON(data []byte) error {
	var in networkJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	layers := make([]NeuronLayer, len(in.Layers))
	for l, lj := range in.Layers {
		limit, err := jsonnum.Parse(lj.CyclesLimit)
		if err != nil {
			return fmt.Errorf("layer %d: %w", l, err)
		}
		layer := NeuronLayer{CyclesLimit: limit, Neurons: make([]Neuron, len(lj.Neurons))}
		for i, nj := range lj.Neurons {
			layer.Neurons[i] = Neuron{
				Type:        nj.Type,
				Activation:  nj.Activation,
				Bias:        nj.Bias,
				Sum:         nj.Sum,
				Output:      nj.Output,
				Connections: nj.Connections,
			}
		}
		layers[l] = layer
	}
	loaded, err := NewNeuralNetwork(layers)
	if err != nil {
		return err
	}
	*n = *loaded
	return nil
}
