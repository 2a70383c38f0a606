package zgraph

import "testing"

func TestHistoryAppendDoesNotMutateOriginal(t *testing.T) {
	h0 := NewHistory()
	h1 := h0.Append(Op{Kind: OpAddEdge, U: 1, V: 2})
	if h0.Len() != 0 {
		t.Fatalf("expected h0 untouched, got len %d", h0.Len())
	}
	if h1.Len() != 1 {
		t.Fatalf("expected h1 len 1, got %d", h1.Len())
	}
}

func TestHistorySerializeDeserializeRoundTrip(t *testing.T) {
	h := NewHistory()
	h = h.Append(Op{Kind: OpMerge, U: 0, V: 3})
	h = h.Append(Op{Kind: OpAddEdge, U: 1, V: 2})

	data := h.Serialize()
	got := NewHistory()
	if err := got.Deserialize(data); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !h.Equal(got) {
		t.Fatalf("round trip mismatch: want %+v got %+v", h.Ops(), got.Ops())
	}
}

func TestHistoryFingerprintStableAndDistinguishing(t *testing.T) {
	h1 := NewHistory().Append(Op{Kind: OpAddEdge, U: 1, V: 2})
	h2 := NewHistory().Append(Op{Kind: OpAddEdge, U: 1, V: 2})
	h3 := NewHistory().Append(Op{Kind: OpMerge, U: 1, V: 2})

	if h1.Fingerprint() != h2.Fingerprint() {
		t.Fatalf("identical histories must fingerprint identically")
	}
	if h1.Fingerprint() == h3.Fingerprint() {
		t.Fatalf("distinct histories should not collide in this small example")
	}
}

func TestReplayReconstructsGraph(t *testing.T) {
	root := NewAdjacencyGraph(4)
	root.AddEdge(0, 1)
	root.AddEdge(1, 2)
	root.AddEdge(2, 3)

	h := NewHistory()
	h = h.Append(Op{Kind: OpAddEdge, U: 0, V: 2})
	h = h.Append(Op{Kind: OpMerge, U: 1, V: 3})

	replayed := Replay(root, h)
	if replayed.GetNumVertices() != 3 {
		t.Fatalf("expected 3 vertices after merge, got %d", replayed.GetNumVertices())
	}
	ag, ok := replayed.(*AdjacencyGraph)
	if !ok {
		t.Fatalf("expected *AdjacencyGraph")
	}
	if !ag.HasEdge(0, 2) {
		t.Fatalf("expected edge (0,2) added by replay")
	}
	merged := ag.GetMergedVertices(1)
	if len(merged) != 1 || merged[0] != 3 {
		t.Fatalf("expected vertex 3 merged into 1, got %v", merged)
	}
}
