package neat

import (
	"encoding/json"
	"fmt"

	"github.com/baldhumanity/hyperneat-go/neat/internal/jsonnum"
	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

type nodeGeneJSON struct {
	Layer      string            `json:"layer"`
	Neuron     string            `json:"neuron"`
	Type       nn.NeuronType     `json:"type"`
	Activation nn.ActivationType `json:"activation"`
	Bias       float64           `json:"bias"`
}

// MarshalJSON implements json.Marshaler. The innovation ID is not written; it
// is recomputed from the coordinates on load.
func (ng NodeGene) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeGeneJSON{
		Layer:      jsonnum.Format(ng.LayerID),
		Neuron:     jsonnum.Format(ng.NeuronID),
		Type:       ng.Type,
		Activation: ng.Activation,
		Bias:       ng.Bias,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (ng *NodeGene) UnmarshalJSON(data []byte) error {
	var j nodeGeneJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	layer, err := jsonnum.Parse(j.Layer)
	if err != nil {
		return err
	}
	neuron, err := jsonnum.Parse(j.Neuron)
	if err != nil {
		return err
	}
	parsed, err := NewNodeGene(layer, neuron, j.Type, j.Activation, j.Bias)
	if err != nil {
		return err
	}
	*ng = parsed
	return nil
}

type connectionGeneJSON struct {
	Src     nn.Link `json:"src"`
	Dest    nn.Link `json:"dest"`
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
	Frozen  bool    `json:"frozen"`
}

// MarshalJSON implements json.Marshaler.
func (cg ConnectionGene) MarshalJSON() ([]byte, error) {
	return json.Marshal(connectionGeneJSON{
		Src:     cg.Connection.Src,
		Dest:    cg.Connection.Dest,
		Weight:  cg.Connection.Weight,
		Enabled: cg.Enabled,
		Frozen:  cg.Connection.Frozen,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (cg *ConnectionGene) UnmarshalJSON(data []byte) error {
	var j connectionGeneJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	parsed, err := NewConnectionGene(j.Src, j.Dest, j.Weight)
	if err != nil {
		return err
	}
	parsed.Enabled = j.Enabled
	parsed.Connection.Frozen = j.Frozen
	*cg = parsed
	return nil
}

type genomeJSON struct {
	ID               string            `json:"id"`
	SpeciesID        string            `json:"speciesId"`
	Fitness          float64           `json:"fitness"`
	RecurrentAllowed bool              `json:"recurrentAllowed"`
	IsCPPN           bool              `json:"isCppn"`
	HiddenActivation nn.ActivationType `json:"hiddenActivation"`
	Nodes            []NodeGene        `json:"nodes"`
	Connections      []ConnectionGene  `json:"connections"`
}

// MarshalJSON implements json.Marshaler.
func (g *Genome) MarshalJSON() ([]byte, error) {
	j := genomeJSON{
		ID:               jsonnum.Format(g.ID),
		SpeciesID:        jsonnum.Format(g.SpeciesID),
		Fitness:          g.Fitness,
		RecurrentAllowed: g.RecurrentAllowed,
		IsCPPN:           g.IsCPPN,
		HiddenActivation: g.HiddenActivation,
		Nodes:            g.Nodes,
		Connections:      g.Connections,
	}
	if j.Nodes == nil {
		j.Nodes = []NodeGene{}
	}
	if j.Connections == nil {
		j.Connections = []ConnectionGene{}
	}
	return json.Marshal(j)
}

// UnmarshalJSON loads a genome and validates it. Genes are re-sorted, so
// hand-edited files need not keep the order.
func (g *Genome) UnmarshalJSON(data []byte) error {
	var j genomeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	id, err := jsonnum.Parse(j.ID)
	if err != nil {
		return err
	}
	speciesID, err := jsonnum.Parse(j.SpeciesID)
	if err != nil {
		return err
	}
	loaded := Genome{
		ID:               id,
		SpeciesID:        speciesID,
		Fitness:          j.Fitness,
		RecurrentAllowed: j.RecurrentAllowed,
		IsCPPN:           j.IsCPPN,
		HiddenActivation: j.HiddenActivation,
		Nodes:            j.Nodes,
		Connections:      j.Connections,
	}
	loaded.sortGenes()
	loaded.refreshNodeTypes()
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("genome %d: %w", id, err)
	}
	*g = loaded
	return nil
}
