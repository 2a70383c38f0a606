// Package zgraph defines the graph collaborator consumed by the zsolve
// search engine, and ships one reference implementation of it.
package zgraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// OpKind distinguishes the two Zykov branching decisions recorded in a
// History.
type OpKind uint8

const (
	OpMerge OpKind = iota
	OpAddEdge
)

func (k OpKind) String() string {
	if k == OpMerge {
		return "MERGE"
	}
	return "ADDEDGE"
}

// Op is a single step applied to the root graph: MERGE(u,v) or
// ADDEDGE(u,v).
type Op struct {
	Kind OpKind
	U, V int
}

// History is the ordered sequence of operations that, applied to a known
// root graph, reconstructs a Branch's graph. It is the sole inter-process
// transport for a Branch's graph (see zbranch.Branch).
type History struct {
	ops []Op
}

// NewHistory returns an empty history (the root Branch's history).
func NewHistory() *History {
	return &History{}
}

// Append records one more operation, returning a new History that shares
// no backing storage with h (histories are cloned, never mutated in
// place, once pushed into the queue).
func (h *History) Append(op Op) *History {
	next := make([]Op, len(h.ops)+1)
	copy(next, h.ops)
	next[len(h.ops)] = op
	return &History{ops: next}
}

// Ops returns the recorded operations in application order.
func (h *History) Ops() []Op {
	return h.ops
}

// Len reports the number of recorded operations (depth-1, since the root
// Branch carries an empty history).
func (h *History) Len() int {
	return len(h.ops)
}

// Serialize encodes the history as a little-endian uint32 record count
// followed by a flat sequence of (kind byte, u int32, v int32) records,
// little-endian. This is the "history bytes" suffix of
// the Branch wire layout in spec.md section 4.1.
func (h *History) Serialize() []byte {
	buf := make([]byte, 4+len(h.ops)*9)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(h.ops)))
	off := 4
	for _, op := range h.ops {
		buf[off] = byte(op.Kind)
		binary.LittleEndian.PutUint32(buf[off+1:off+5], uint32(int32(op.U)))
		binary.LittleEndian.PutUint32(buf[off+5:off+9], uint32(int32(op.V)))
		off += 9
	}
	return buf
}

// Deserialize replaces h's contents with the history encoded in data.
func (h *History) Deserialize(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("zgraph: history buffer too short: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	need := 4 + n*9
	if len(data) < need {
		return fmt.Errorf("zgraph: history buffer truncated: have %d want %d", len(data), need)
	}
	ops := make([]Op, n)
	off := 4
	for i := 0; i < n; i++ {
		ops[i] = Op{
			Kind: OpKind(data[off]),
			U:    int(int32(binary.LittleEndian.Uint32(data[off+1 : off+5]))),
			V:    int(int32(binary.LittleEndian.Uint32(data[off+5 : off+9]))),
		}
		off += 9
	}
	h.ops = ops
	return nil
}

// Fingerprint returns a 64-bit FNV-1a hash of the serialized history,
// used as the bounds-cache key (SPEC_FULL.md section 3).
func (h *History) Fingerprint() uint64 {
	sum := fnv.New64a()
	sum.Write(h.Serialize())
	return sum.Sum64()
}

// Equal reports whether two histories record the same operations in the
// same order (used by round-trip tests).
func (h *History) Equal(o *History) bool {
	return bytes.Equal(h.Serialize(), o.Serialize())
}

// Replay applies h's operations, in order, to root, returning the
// resulting graph. root is never mutated; Replay clones internally.
func Replay(root Graph, h *History) Graph {
	g := root.Clone()
	for _, op := range h.Ops() {
		switch op.Kind {
		case OpMerge:
			g.MergeVertices(op.U, op.V)
		case OpAddEdge:
			g.AddEdge(op.U, op.V)
		}
	}
	return g
}
