package zgraph

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// AdjacencyGraph is the reference Graph implementation, backed by
// gonum's simple.UndirectedGraph for vertex/edge bookkeeping. It is
// correct and unremarkable, matching the Non-goal of providing no novel
// graph algorithms (SPEC_FULL.md section 6).
type AdjacencyGraph struct {
	g        *simple.UndirectedGraph
	mergedBy map[int][]int // vertex -> ids merged into it, transitively
	coloring map[int]uint16
	hist     *History
}

// NewAdjacencyGraph builds an edgeless graph on vertices 0..n-1.
func NewAdjacencyGraph(n int) *AdjacencyGraph {
	g := simple.NewUndirectedGraph()
	for v := 0; v < n; v++ {
		g.AddNode(simple.Node(int64(v)))
	}
	return &AdjacencyGraph{
		g:        g,
		mergedBy: make(map[int][]int),
		hist:     NewHistory(),
	}
}

// NewAdjacencyGraphFromEdges builds a graph on n vertices with the given
// edge list.
func NewAdjacencyGraphFromEdges(n int, edges [][2]int) *AdjacencyGraph {
	ag := NewAdjacencyGraph(n)
	for _, e := range edges {
		ag.addEdgeRaw(e[0], e[1])
	}
	return ag
}

func (a *AdjacencyGraph) addEdgeRaw(u, v int) {
	if u == v {
		return
	}
	a.g.SetEdge(simple.Edge{F: simple.Node(int64(u)), T: simple.Node(int64(v))})
}

func (a *AdjacencyGraph) Clone() Graph {
	clone := &AdjacencyGraph{
		g:        simple.NewUndirectedGraph(),
		mergedBy: make(map[int][]int, len(a.mergedBy)),
		coloring: nil,
		hist:     a.hist, // histories are append-only/shared; see Append
	}
	nodes := a.g.Nodes()
	for nodes.Next() {
		clone.g.AddNode(nodes.Node())
	}
	edges := a.g.Edges()
	for edges.Next() {
		e := edges.Edge()
		clone.g.SetEdge(e)
	}
	for v, merged := range a.mergedBy {
		clone.mergedBy[v] = append([]int(nil), merged...)
	}
	if a.coloring != nil {
		clone.coloring = make(map[int]uint16, len(a.coloring))
		for k, v := range a.coloring {
			clone.coloring[k] = v
		}
	}
	return clone
}

func (a *AdjacencyGraph) AddEdge(u, v int) {
	a.addEdgeRaw(u, v)
	a.hist = a.hist.Append(Op{Kind: OpAddEdge, U: u, V: v})
}

func (a *AdjacencyGraph) MergeVertices(u, v int) {
	if u == v {
		return
	}
	vNode := simple.Node(int64(v))
	if it := a.g.From(int64(v)); it != nil {
		for it.Next() {
			n := it.Node()
			if n.ID() == int64(u) {
				continue
			}
			a.g.SetEdge(simple.Edge{F: simple.Node(int64(u)), T: n})
		}
	}
	a.g.RemoveNode(vNode.ID())
	a.mergedBy[u] = append(a.mergedBy[u], v)
	a.mergedBy[u] = append(a.mergedBy[u], a.mergedBy[v]...)
	delete(a.mergedBy, v)
	a.hist = a.hist.Append(Op{Kind: OpMerge, U: u, V: v})
}

func (a *AdjacencyGraph) GetVertices() []int {
	nodes := a.g.Nodes()
	out := make([]int, 0, nodes.Len())
	for nodes.Next() {
		out = append(out, int(nodes.Node().ID()))
	}
	return out
}

func (a *AdjacencyGraph) GetMergedVertices(v int) []int {
	return append([]int(nil), a.mergedBy[v]...)
}

func (a *AdjacencyGraph) GetNumVertices() int {
	return a.g.Nodes().Len()
}

func (a *AdjacencyGraph) SetFullColoring(coloring map[int]uint16) {
	a.coloring = coloring
}

func (a *AdjacencyGraph) GetFullColoring() map[int]uint16 {
	return a.coloring
}

func (a *AdjacencyGraph) History() *History {
	return a.hist
}

// HasEdge reports whether u and v are adjacent (used by the reference
// oracles in package zoracle).
func (a *AdjacencyGraph) HasEdge(u, v int) bool {
	return a.g.HasEdgeBetween(int64(u), int64(v))
}

// Neighbors returns v's neighbor ids.
func (a *AdjacencyGraph) Neighbors(v int) []int {
	it := a.g.From(int64(v))
	if it == nil {
		return nil
	}
	out := make([]int, 0, it.Len())
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	return out
}

var _ graph.Undirected = (*simple.UndirectedGraph)(nil)
