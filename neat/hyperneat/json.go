package hyperneat

import (
	"encoding/json"
	"errors"

	"github.com/baldhumanity/hyperneat-go/neat"
	"github.com/baldhumanity/hyperneat-go/neat/internal/jsonnum"
	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

type shapeJSON struct {
	Inputs  string   `json:"inputs"`
	Hidden  []string `json:"hidden"`
	Outputs string   `json:"outputs"`
}

type hyperNeatJSON struct {
	Mode             Mode              `json:"mode"`
	Shape            shapeJSON         `json:"shape"`
	HiddenActivation nn.ActivationType `json:"hiddenActivation"`
	OutputActivation nn.ActivationType `json:"outputActivation"`
	LEOThreshold     float64           `json:"leoThreshold"`
	MaxWeight        float64           `json:"maxWeight"`
	Genome           *neat.Genome      `json:"genome"`
}

// MarshalJSON writes the settings and the CPPN genome. The substrate is not
// stored; it is regenerated on first use after loading.
func (h *HyperNeat) MarshalJSON() ([]byte, error) {
	s := h.settings
	return json.Marshal(hyperNeatJSON{
		Mode: s.Mode,
		Shape: shapeJSON{
			Inputs:  jsonnum.Format(s.Shape.Inputs),
			Hidden:  jsonnum.FormatAll(s.Shape.Hidden),
			Outputs: jsonnum.Format(s.Shape.Outputs),
		},
		HiddenActivation: s.HiddenActivation,
		OutputActivation: s.OutputActivation,
		LEOThreshold:     s.LEOThreshold,
		MaxWeight:        s.MaxWeight,
		Genome:           h.genome,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HyperNeat) UnmarshalJSON(data []byte) error {
	var j hyperNeatJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.Genome == nil {
		return errors.New("hyperneat has no genome")
	}
	inputs, err := jsonnum.Parse(j.Shape.Inputs)
	if err != nil {
		return err
	}
	hidden, err := jsonnum.ParseAll(j.Shape.Hidden)
	if err != nil {
		return err
	}
	outputs, err := jsonnum.Parse(j.Shape.Outputs)
	if err != nil {
		return err
	}
	loaded, err := New(j.Genome, Settings{
		Mode:             j.Mode,
		Shape:            Shape{Inputs: inputs, Hidden: hidden, Outputs: outputs},
		HiddenActivation: j.HiddenActivation,
		OutputActivation: j.OutputActivation,
		LEOThreshold:     j.LEOThreshold,
		MaxWeight:        j.MaxWeight,
	})
	if err != nil {
		return err
	}
	*h = *loaded
	return nil
}

// Wrap returns a loader callback for neat.LoadPopulation and
// neat.LoadCheckpoint that rebuilds HyperNeat members around stored genomes.
func Wrap(settings Settings) func(*neat.Genome) (*HyperNeat, error) {
	return func(g *neat.Genome) (*HyperNeat, error) {
		return New(g, settings)
	}
}
