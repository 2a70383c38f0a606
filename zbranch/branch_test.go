package zbranch

import (
	"testing"

	"github.com/distsolve/zykov/zgraph"
)

func TestBranchSerializeDeserializeRoundTrip(t *testing.T) {
	h := zgraph.NewHistory()
	h = h.Append(zgraph.Op{Kind: zgraph.OpMerge, U: 1, V: 2})
	h = h.Append(zgraph.Op{Kind: zgraph.OpAddEdge, U: 0, V: 3})

	b := Branch{History: h, Lb: 3, Ub: 5, Depth: 3}
	data := b.Serialize()

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Lb != b.Lb || got.Ub != b.Ub || got.Depth != b.Depth {
		t.Fatalf("bounds/depth mismatch: want %+v got %+v", b, got)
	}
	if !got.History.Equal(b.History) {
		t.Fatalf("history mismatch after round trip")
	}
}

func TestBranchSerializeNegativeLb(t *testing.T) {
	b := Branch{History: zgraph.NewHistory(), Lb: -1, Ub: 0, Depth: 1}
	got, err := Deserialize(b.Serialize())
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Lb != -1 {
		t.Fatalf("expected negative lb to round-trip, got %d", got.Lb)
	}
}

func TestDeserializeRejectsShortBuffer(t *testing.T) {
	if _, err := Deserialize([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error on short buffer")
	}
}

func TestEmptySentinel(t *testing.T) {
	var b Branch
	if !b.Empty() {
		t.Fatalf("zero-value Branch must be Empty")
	}
	b.History = zgraph.NewHistory()
	if b.Empty() {
		t.Fatalf("Branch with a history must not be Empty")
	}
}

func TestLessOrdersDeepestFirst(t *testing.T) {
	shallow := Branch{Depth: 1}
	deep := Branch{Depth: 5}
	if !deep.Less(shallow) {
		t.Fatalf("deeper branch must sort first")
	}
	if shallow.Less(deep) {
		t.Fatalf("shallower branch must not sort first")
	}
}

func TestBranchGraphReplaysHistory(t *testing.T) {
	root := zgraph.NewAdjacencyGraph(3)
	h := zgraph.NewHistory().Append(zgraph.Op{Kind: zgraph.OpAddEdge, U: 0, V: 1})
	b := Branch{History: h, Lb: 1, Ub: 2, Depth: 2}

	g := b.Graph(root).(*zgraph.AdjacencyGraph)
	if !g.HasEdge(0, 1) {
		t.Fatalf("expected edge (0,1) from replayed history")
	}
}
