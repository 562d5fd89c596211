package hyperneat

import (
	"fmt"
	"math"
	"strings"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// Mode selects how substrate neurons are laid out and which neuron pairs the
// CPPN is asked about.
type Mode int

const (
	// Grid flattens all neurons onto one axis and queries every pair that
	// runs from an earlier layer to a later one with (src, dest, distance).
	Grid Mode = iota
	// Sandwich stacks the layers as parallel sheets and queries the pairs
	// of adjacent layers with (x1, y1, x2, y2, distance).
	Sandwich
)

var modeNames = map[Mode]string{
	Grid:     "grid",
	Sandwich: "sandwich",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a tag written by String back to its Mode.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return Grid, fmt.Errorf("unknown substrate mode: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("unknown substrate mode: %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// CPPNInputs returns the number of values in one CPPN query.
func (m Mode) CPPNInputs() int {
	if m == Sandwich {
		return 5
	}
	return 3
}

// point is the position of a substrate neuron. t is its position on the
// flattened grid axis; x and y place it on its layer's sheet.
type point struct {
	t, x, y float64
}

// spread maps i in [0, n) evenly onto [-1, 1]. A single element sits at 0.
func spread(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return -1 + 2*float64(i)/float64(n-1)
}

type sheet [][]point

func newSheet(sizes []int) sheet {
	total := 0
	for _, size := range sizes {
		total += size
	}
	s := make(sheet, len(sizes))
	k := 0
	for l, size := range sizes {
		s[l] = make([]point, size)
		for i := range s[l] {
			s[l][i] = point{
				t: spread(k, total),
				x: spread(i, size),
				y: spread(l, len(sizes)),
			}
			k++
		}
	}
	return s
}

func (s sheet) at(l nn.Link) point { return s[l.Layer][l.Neuron] }

// candidates lists the substrate connections the CPPN is queried for, in
// Link order of source then destination.
func (m Mode) candidates(sizes []int) [][2]nn.Link {
	var out [][2]nn.Link
	for sl := 0; sl < len(sizes)-1; sl++ {
		for sn := 0; sn < sizes[sl]; sn++ {
			src := nn.Link{Layer: sl, Neuron: sn}
			first, last := sl+1, len(sizes)-1
			if m == Sandwich {
				last = sl + 1
			}
			for dl := first; dl <= last; dl++ {
				for dn := 0; dn < sizes[dl]; dn++ {
					out = append(out, [2]nn.Link{src, {Layer: dl, Neuron: dn}})
				}
			}
		}
	}
	return out
}

// fill writes the CPPN query for src -> dest into query.
func (m Mode) fill(query []float64, s sheet, src, dest nn.Link) {
	a, b := s.at(src), s.at(dest)
	if m == Sandwich {
		query[0], query[1], query[2], query[3] = a.x, a.y, b.x, b.y
		query[4] = math.Hypot(b.x-a.x, b.y-a.y)
		return
	}
	query[0], query[1], query[2] = a.t, b.t, math.Abs(b.t-a.t)
}
