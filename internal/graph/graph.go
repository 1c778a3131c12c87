// Package graph builds the ffmpeg filter graph that composites a reframe
// plan: a blurred cover background and a feathered fit foreground.
package graph

import (
	"fmt"
	"strings"
)

// Arg is one filter option. An empty Key renders the value positionally.
type Arg struct {
	Key   string
	Value string
}

// Node is a single filter with its input and output stream labels.
type Node struct {
	ID      int
	Filter  string
	Args    []Arg
	Inputs  []string
	Outputs []string
}

// String renders the node in filter_complex syntax.
func (n Node) String() string {
	var sb strings.Builder
	for _, in := range n.Inputs {
		sb.WriteString("[" + in + "]")
	}
	sb.WriteString(n.Filter)
	for i, a := range n.Args {
		if i == 0 {
			sb.WriteByte('=')
		} else {
			sb.WriteByte(':')
		}
		if a.Key != "" {
			sb.WriteString(a.Key + "=")
		}
		sb.WriteString(a.Value)
	}
	for _, out := range n.Outputs {
		sb.WriteString("[" + out + "]")
	}
	return sb.String()
}

// Graph is an ordered, immutable list of filter nodes.
type Graph struct {
	nodes  []Node
	output string
}

// Nodes returns a copy of the graph's nodes in order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Output is the label of the final composited stream.
func (g *Graph) Output() string {
	return g.output
}

// String renders the full -filter_complex expression.
func (g *Graph) String() string {
	parts := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ";")
}

// builder assigns node IDs and stream labels from a per-graph counter.
type builder struct {
	nodes []Node
	label int
}

func (b *builder) newLabel(prefix string) string {
	b.label++
	return fmt.Sprintf("%s%d", prefix, b.label)
}

func (b *builder) add(filter string, args []Arg, inputs []string, outputs ...string) {
	b.nodes = append(b.nodes, Node{
		ID:      len(b.nodes),
		Filter:  filter,
		Args:    args,
		Inputs:  inputs,
		Outputs: outputs,
	})
}

// chain appends a single-input filter and returns its output label.
func (b *builder) chain(input, prefix, filter string, args ...Arg) string {
	out := b.newLabel(prefix)
	b.add(filter, args, []string{input}, out)
	return out
}

func (b *builder) graph(output string) *Graph {
	return &Graph{nodes: b.nodes, output: output}
}

func kv(key string, value any) Arg {
	return Arg{Key: key, Value: fmt.Sprint(value)}
}

func pos(value any) Arg {
	return Arg{Value: fmt.Sprint(value)}
}
