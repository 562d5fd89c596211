package neat

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/baldhumanity/hyperneat-go/neat/internal/jsonnum"
)

type speciesJSON struct {
	ID             string   `json:"id"`
	Members        []string `json:"members"`
	Representative *Genome  `json:"representative"`
	Age            string   `json:"age"`
	AvgFitness     float64  `json:"avgFitness"`
	OldAvgFitness  float64  `json:"oldAvgFitness"`
	MaxFitness     float64  `json:"maxFitness"`
	Killable       bool     `json:"killable"`
	Novel          bool     `json:"novel"`
}

// MarshalJSON implements json.Marshaler.
func (s *Species) MarshalJSON() ([]byte, error) {
	return json.Marshal(speciesJSON{
		ID:             jsonnum.Format(s.ID),
		Members:        jsonnum.FormatAll(s.Members),
		Representative: s.Representative,
		Age:            jsonnum.Format(s.Age),
		AvgFitness:     s.AvgFitness,
		OldAvgFitness:  s.OldAvgFitness,
		MaxFitness:     s.MaxFitness,
		Killable:       s.Killable,
		Novel:          s.Novel,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Species) UnmarshalJSON(data []byte) error {
	var j speciesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	id, err := jsonnum.Parse(j.ID)
	if err != nil {
		return err
	}
	members, err := jsonnum.ParseAll(j.Members)
	if err != nil {
		return err
	}
	age, err := jsonnum.Parse(j.Age)
	if err != nil {
		return err
	}
	if j.Representative == nil {
		return fmt.Errorf("species %d has no representative", id)
	}
	*s = Species{
		ID:             id,
		Members:        members,
		Representative: j.Representative,
		Age:            age,
		AvgFitness:     j.AvgFitness,
		OldAvgFitness:  j.OldAvgFitness,
		MaxFitness:     j.MaxFitness,
		Killable:       j.Killable,
		Novel:          j.Novel,
	}
	return nil
}

type populationJSON struct {
	Generation    string     `json:"generation"`
	NextGenomeID  string     `json:"nextGenomeId"`
	NextSpeciesID string     `json:"nextSpeciesId"`
	Members       []*Genome  `json:"members"`
	Alive         []bool     `json:"alive"`
	Available     []string   `json:"available"`
	Species       []*Species `json:"species"`
	Best          *Genome    `json:"best,omitempty"`
}

// MarshalJSON writes the generation counter, every slot's genome, the species
// and the best genome seen so far.
func (p *Population[M]) MarshalJSON() ([]byte, error) {
	j := populationJSON{
		Generation:    jsonnum.Format(p.Generation),
		NextGenomeID:  jsonnum.Format(p.nextGenomeID),
		NextSpeciesID: jsonnum.Format(p.nextSpeciesID),
		Members:       make([]*Genome, len(p.members)),
		Alive:         p.alive,
		Available:     jsonnum.FormatAll(p.available),
		Species:       p.Species,
		Best:          p.best,
	}
	for i, m := range p.members {
		j.Members[i] = m.GetGenome()
	}
	if j.Species == nil {
		j.Species = []*Species{}
	}
	return json.Marshal(j)
}

// LoadPopulation rebuilds an owning population from MarshalJSON output. wrap
// turns each stored genome back into a member; factory is used for later
// regrowth.
func LoadPopulation[M Member](data []byte, cfg *Config, rng *rand.Rand, factory Factory[M], wrap func(*Genome) (M, error)) (*Population[M], error) {
	var j populationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode population: %w", err)
	}
	if len(j.Members) != len(j.Alive) {
		return nil, fmt.Errorf("population has %d members but %d alive flags", len(j.Members), len(j.Alive))
	}

	p, err := newPopulation(cfg, rng, factory, true)
	if err != nil {
		return nil, err
	}
	if p.Generation, err = jsonnum.Parse(j.Generation); err != nil {
		return nil, err
	}
	if p.nextGenomeID, err = jsonnum.Parse(j.NextGenomeID); err != nil {
		return nil, err
	}
	if p.nextSpeciesID, err = jsonnum.Parse(j.NextSpeciesID); err != nil {
		return nil, err
	}
	if p.available, err = jsonnum.ParseAll(j.Available); err != nil {
		return nil, err
	}

	p.members = make([]M, len(j.Members))
	p.alive = j.Alive
	for i, g := range j.Members {
		if g == nil {
			return nil, fmt.Errorf("population slot %d has no genome", i)
		}
		if p.members[i], err = wrap(g); err != nil {
			return nil, fmt.Errorf("population slot %d: %w", i, err)
		}
	}
	for _, s := range j.Species {
		for _, slot := range s.Members {
			if slot < 0 || slot >= len(p.members) {
				return nil, fmt.Errorf("species %d refers to missing slot %d", s.ID, slot)
			}
		}
	}
	p.Species = j.Species
	p.best = j.Best
	return p, nil
}
