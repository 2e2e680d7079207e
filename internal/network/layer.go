// Package network builds the two layers agents live on: a physical contact
// layer grown by preferential attachment, and a virtual communication layer
// that starts as a copy of it and gains extra random links.
package network

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat"
)

// Layer is an undirected graph over node ids [0, N). It carries no agent data;
// per-agent state lives in a flat slice indexed by the same ids.
type Layer struct {
	g     *simple.UndirectedGraph
	nodes int
	edges int
}

// NewLayer creates a layer with n isolated nodes.
func NewLayer(n int) *Layer {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	return &Layer{g: g, nodes: n}
}

// Graph exposes the underlying gonum graph for read-only algorithms.
func (l *Layer) Graph() graph.Undirected {
	return l.g
}

// NodeCount returns the number of nodes.
func (l *Layer) NodeCount() int {
	return l.nodes
}

// EdgeCount returns the number of undirected edges.
func (l *Layer) EdgeCount() int {
	return l.edges
}

// HasEdge reports whether a and b are adjacent.
func (l *Layer) HasEdge(a, b int64) bool {
	return l.g.HasEdgeBetween(a, b)
}

// AddEdge connects a and b. Self-loops and existing edges are ignored; the
// return value reports whether a new edge was created.
func (l *Layer) AddEdge(a, b int64) bool {
	if a == b || l.g.HasEdgeBetween(a, b) {
		return false
	}
	l.g.SetEdge(l.g.NewEdge(simple.Node(a), simple.Node(b)))
	l.edges++
	return true
}

// RemoveEdge disconnects a and b if they are adjacent.
func (l *Layer) RemoveEdge(a, b int64) bool {
	if !l.g.HasEdgeBetween(a, b) {
		return false
	}
	l.g.RemoveEdge(a, b)
	l.edges--
	return true
}

// Isolate removes every edge incident to id and returns how many were removed.
func (l *Layer) Isolate(id int64) int {
	removed := 0
	for _, nb := range l.Neighbors(id) {
		if l.RemoveEdge(id, nb) {
			removed++
		}
	}
	return removed
}

// Degree returns the number of neighbors of id.
func (l *Layer) Degree(id int64) int {
	return l.g.From(id).Len()
}

// Neighbors returns the neighbors of id in ascending id order. The order is
// fixed so that a seeded run draws the same random numbers every time.
func (l *Layer) Neighbors(id int64) []int64 {
	it := l.g.From(id)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	slices.Sort(out)
	return out
}

// Degrees returns the degree sequence indexed by node id.
func (l *Layer) Degrees() []float64 {
	out := make([]float64, l.nodes)
	for i := range out {
		out[i] = float64(l.Degree(int64(i)))
	}
	return out
}

// Edges returns every edge once as (lo, hi), sorted.
func (l *Layer) Edges() [][2]int64 {
	out := make([][2]int64, 0, l.edges)
	it := l.g.Edges()
	for it.Next() {
		e := it.Edge()
		a, b := e.From().ID(), e.To().ID()
		if a > b {
			a, b = b, a
		}
		out = append(out, [2]int64{a, b})
	}
	slices.SortFunc(out, func(x, y [2]int64) int {
		if c := cmp.Compare(x[0], y[0]); c != 0 {
			return c
		}
		return cmp.Compare(x[1], y[1])
	})
	return out
}

// Clone returns an independent copy with the same node set and edges.
func (l *Layer) Clone() *Layer {
	c := NewLayer(l.nodes)
	for _, e := range l.Edges() {
		c.AddEdge(e[0], e[1])
	}
	return c
}

// DegreeCorrelation is the Pearson correlation between the degree sequences
// of two layers over the same node ids. Returns 0 when either sequence is
// constant.
func DegreeCorrelation(a, b *Layer) float64 {
	if a.nodes != b.nodes || a.nodes < 2 {
		return 0
	}
	x, y := a.Degrees(), b.Degrees()
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0
	}
	return stat.Correlation(x, y, nil)
}
