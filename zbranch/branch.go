// Package zbranch implements the Branch search-tree node (spec.md
// section 3), its wire serialization (section 4.1), the per-process
// priority queue (section 4.2), and the history-fingerprint bounds
// cache (SPEC_FULL.md section 3).
package zbranch

import (
	"encoding/binary"
	"fmt"

	"github.com/distsolve/zykov/zgraph"
)

// Branch is a search-tree node: a graph (transported as a History plus
// the implicit root), a lower bound, an upper bound, and a depth. Root
// depth is 1.
type Branch struct {
	History *zgraph.History
	Lb      int
	Ub      uint16
	Depth   int
}

// Empty reports whether b is the sentinel returned after a cancelled
// receive (spec.md section 4.1).
func (b Branch) Empty() bool {
	return b.History == nil
}

// Less orders branches by depth, deepest first — the depth-greedy
// discipline of spec.md section 3.
func (b Branch) Less(other Branch) bool {
	return b.Depth > other.Depth
}

// Serialize encodes b per spec.md section 4.1: lb int32 LE, ub uint16 LE,
// depth int32 LE, then the history bytes.
func (b Branch) Serialize() []byte {
	hist := b.History.Serialize()
	buf := make([]byte, 4+2+4+len(hist))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(b.Lb)))
	binary.LittleEndian.PutUint16(buf[4:6], b.Ub)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(int32(b.Depth)))
	copy(buf[10:], hist)
	return buf
}

// Deserialize is the inverse of Serialize.
func Deserialize(data []byte) (Branch, error) {
	if len(data) < 10 {
		return Branch{}, fmt.Errorf("zbranch: buffer too short: %d bytes", len(data))
	}
	lb := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	ub := binary.LittleEndian.Uint16(data[4:6])
	depth := int(int32(binary.LittleEndian.Uint32(data[6:10])))
	h := zgraph.NewHistory()
	if err := h.Deserialize(data[10:]); err != nil {
		return Branch{}, err
	}
	return Branch{History: h, Lb: lb, Ub: ub, Depth: depth}, nil
}

// Graph replays b's history atop root to reconstruct b's graph.
func (b Branch) Graph(root zgraph.Graph) zgraph.Graph {
	return zgraph.Replay(root, b.History)
}
