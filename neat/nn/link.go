package nn

import (
	"cmp"
	"fmt"
	"strings"
)

// Link addresses a neuron by its layer index and its index inside the layer.
// It is a coordinate, not a reference: structural edits rewrite Links instead
// of invalidating pointers.
type Link struct {
	Layer  int
	Neuron int
}

// Compare orders Links by layer, then by neuron.
func (l Link) Compare(other Link) int {
	if c := cmp.Compare(l.Layer, other.Layer); c != 0 {
		return c
	}
	return cmp.Compare(l.Neuron, other.Neuron)
}

// Less reports whether l sorts before other.
func (l Link) Less(other Link) bool {
	return l.Compare(other) < 0
}

func (l Link) String() string {
	return fmt.Sprintf("(%d,%d)", l.Layer, l.Neuron)
}

// IsRecurrent reports whether a connection from src to dest points backwards.
// Self connections count as recurrent.
func IsRecurrent(src, dest Link) bool {
	return !src.Less(dest)
}

// NeuronType is the role a neuron plays in the network.
type NeuronType int

const (
	Input NeuronType = iota
	Hidden
	Output
	// Context neurons hold the value copied over a recurrent connection on the
	// previous run. Reset leaves them untouched; ResetContext clears them.
	Context
)

var neuronTypeNames = map[NeuronType]string{
	Input:   "input",
	Hidden:  "hidden",
	Output:  "output",
	Context: "context",
}

func (t NeuronType) String() string {
	if name, ok := neuronTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("neurontype(%d)", int(t))
}

// ParseNeuronType maps a tag written by String back to its NeuronType.
func ParseNeuronType(name string) (NeuronType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range neuronTypeNames {
		if n == name {
			return t, nil
		}
	}
	return Hidden, fmt.Errorf("unknown neuron type: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t NeuronType) MarshalText() ([]byte, error) {
	if _, ok := neuronTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown neuron type: %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *NeuronType) UnmarshalText(text []byte) error {
	parsed, err := ParseNeuronType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
