package zgraph

// Graph is the graph collaborator the search engine consumes. Out of
// scope for the core per spec.md section 1 ("external collaborators
// referenced only by interface"); zsolve never assumes anything about an
// implementation beyond this contract.
type Graph interface {
	// Clone returns a deep copy; the receiver is left untouched.
	Clone() Graph
	// AddEdge forbids u and v from sharing a color. u and v must be
	// distinct surviving vertices and not already adjacent.
	AddEdge(u, v int)
	// MergeVertices contracts v into u: u absorbs v's edges, v is
	// removed, and v is recorded as merged-into-u for later witness
	// reconstruction (GetMergedVertices).
	MergeVertices(u, v int)
	// GetVertices returns the surviving vertex ids, in no particular
	// order.
	GetVertices() []int
	// GetMergedVertices returns the ids of vertices merged into v over
	// the graph's history, directly or transitively.
	GetMergedVertices(v int) []int
	// GetNumVertices returns len(GetVertices()).
	GetNumVertices() int
	// SetFullColoring installs a proper coloring of the surviving
	// vertices.
	SetFullColoring(coloring map[int]uint16)
	// GetFullColoring returns the last coloring installed by
	// SetFullColoring, or nil.
	GetFullColoring() map[int]uint16
	// History returns the sequence of MERGE/ADDEDGE operations that
	// produced this graph from some root.
	History() *History
}
