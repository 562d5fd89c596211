package nn

import (
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

type graphNode struct {
	id     int64
	link   Link
	neuron *Neuron
}

func (n graphNode) ID() int64 { return n.id }

func (n graphNode) DOTID() string { return "n" + strconv.Itoa(n.link.Layer) + "_" + strconv.Itoa(n.link.Neuron) }

func (n graphNode) Attributes() []encoding.Attribute {
	shape := "circle"
	switch n.neuron.Type {
	case Input:
		shape = "box"
	case Output:
		shape = "doublecircle"
	case Context:
		shape = "diamond"
	}
	return []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(fmt.Sprintf("%s %s\nsum=%.4g out=%.4g grad=%.4g",
			n.link, n.neuron.Activation, n.neuron.Sum, n.neuron.Output, n.neuron.Gradient))},
		{Key: "shape", Value: shape},
	}
}

type graphEdge struct {
	from, to graphNode
	conn     *Connection
}

func (e graphEdge) From() graph.Node         { return e.from }
func (e graphEdge) To() graph.Node           { return e.to }
func (e graphEdge) ReversedEdge() graph.Edge { return graphEdge{from: e.to, to: e.from, conn: e.conn} }

func (e graphEdge) Attributes() []encoding.Attribute {
	label := fmt.Sprintf("w=%.4g g=%.4g", e.conn.Weight, e.conn.Gradient)
	attrs := []encoding.Attribute{{Key: "label", Value: strconv.Quote(label)}}
	if e.conn.Recurrent {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

// Graph returns the network as a gonum directed graph. Node IDs follow Link
// order. Recurrent connections are included unless forwardOnly is set.
func (n *NeuralNetwork) Graph(forwardOnly bool) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	nodes := make(map[Link]graphNode)
	for i, ref := range n.neurons() {
		node := graphNode{id: int64(i), link: ref.link, neuron: ref.neuron}
		nodes[ref.link] = node
		g.AddNode(node)
	}
	for _, c := range n.Connections() {
		if forwardOnly && c.Recurrent {
			continue
		}
		from, to := nodes[c.Src], nodes[c.Dest]
		if from.id == to.id {
			continue
		}
		g.SetEdge(graphEdge{from: from, to: to, conn: c})
	}
	return g
}

// Validate checks that every connection is stored under its source neuron,
// obeys the AddConnection rules, is unique and carries the right recurrent
// flag.
func (n *NeuralNetwork) Validate() error {
	for _, ref := range n.neurons() {
		seen := make(map[Link]bool, len(ref.neuron.Connections))
		for _, c := range ref.neuron.Connections {
			if c.Src != ref.link {
				return fmt.Errorf("%w: connection %s -> %s stored under %s", ErrBadConnection, c.Src, c.Dest, ref.link)
			}
			if err := n.checkConnection(c.Src, c.Dest); err != nil {
				return err
			}
			if seen[c.Dest] {
				return fmt.Errorf("%w: duplicate %s -> %s", ErrBadConnection, c.Src, c.Dest)
			}
			seen[c.Dest] = true
			if c.Recurrent != IsRecurrent(c.Src, c.Dest) {
				return fmt.Errorf("%w: connection %s -> %s has recurrent=%t", ErrBadConnection, c.Src, c.Dest, c.Recurrent)
			}
		}
	}
	return nil
}

// MarshalDOT renders the network in Graphviz DOT format.
func (n *NeuralNetwork) MarshalDOT(name string) ([]byte, error) {
	return dot.Marshal(n.Graph(false), name, "", "  ")
}

// WriteDOT writes the DOT rendering of the network to w.
func (n *NeuralNetwork) WriteDOT(w io.Writer, name string) error {
	b, err := dot.Marshal(n.Graph(false), name, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
