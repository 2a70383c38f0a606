// Package zoracle ships reference implementations of the three
// collaborator oracles the core consumes by interface: a branching
// chooser, a clique lower-bound finder, and a greedy colorer. None of
// these claim to be competitive; spec.md's Non-goals explicitly exclude
// "novel coloring heuristics" from this repository's scope.
package zoracle

import (
	"math/rand"
	"sort"

	"github.com/distsolve/zykov/zgraph"
)

// CliqueFinder lower-bounds chi(G) by the size of a clique it finds.
type CliqueFinder interface {
	FindClique(zgraph.Graph) int
}

// Colorer upper-bounds chi(G) with a full proper coloring.
type Colorer interface {
	Color(zgraph.Graph) (uint16, map[int]uint16)
}

// Brancher chooses the next non-adjacent vertex pair to branch on, or
// (-1,-1) if the graph is complete.
type Brancher interface {
	ChooseVertices(zgraph.Graph) (int, int)
}

type adjacencyAccess interface {
	HasEdge(u, v int) bool
	Neighbors(v int) []int
}

// GreedyClique repeatedly extends a candidate clique with a random
// eligible vertex until none remains, restarting a few times and keeping
// the largest clique found. It is a lower bound, never an exact oracle.
type GreedyClique struct {
	Restarts int
	Rand     *rand.Rand
}

func NewGreedyClique(restarts int) *GreedyClique {
	return &GreedyClique{Restarts: restarts, Rand: rand.New(rand.NewSource(1))}
}

func (c *GreedyClique) FindClique(g zgraph.Graph) int {
	aa, ok := g.(adjacencyAccess)
	if !ok {
		return 1
	}
	verts := g.GetVertices()
	if len(verts) == 0 {
		return 0
	}
	restarts := c.Restarts
	if restarts < 1 {
		restarts = 1
	}
	best := 1
	for r := 0; r < restarts; r++ {
		order := append([]int(nil), verts...)
		c.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		clique := []int{order[0]}
		for _, cand := range order[1:] {
			fits := true
			for _, member := range clique {
				if !aa.HasEdge(cand, member) {
					fits = false
					break
				}
			}
			if fits {
				clique = append(clique, cand)
			}
		}
		if len(clique) > best {
			best = len(clique)
		}
	}
	return best
}

// GreedyColorer colors vertices in decreasing-degree (Welsh-Powell) order,
// assigning each vertex the smallest color not used by an already-colored
// neighbor.
type GreedyColorer struct{}

func (GreedyColorer) Color(g zgraph.Graph) (uint16, map[int]uint16) {
	aa, ok := g.(adjacencyAccess)
	verts := g.GetVertices()
	coloring := make(map[int]uint16, len(verts))
	if !ok {
		for i, v := range verts {
			coloring[v] = uint16(i + 1)
		}
		return uint16(len(verts)), coloring
	}
	order := append([]int(nil), verts...)
	sort.Slice(order, func(i, j int) bool {
		return len(aa.Neighbors(order[i])) > len(aa.Neighbors(order[j]))
	})
	var maxColor uint16
	for _, v := range order {
		used := make(map[uint16]bool)
		for _, n := range aa.Neighbors(v) {
			if c, ok := coloring[n]; ok {
				used[c] = true
			}
		}
		var c uint16 = 1
		for used[c] {
			c++
		}
		coloring[v] = c
		if c > maxColor {
			maxColor = c
		}
	}
	return maxColor, coloring
}

// MaxDegreeBrancher picks the highest-degree vertex u and the first
// vertex v non-adjacent to it. Returns (-1,-1) when the graph is a
// clique (no branchable pair exists).
type MaxDegreeBrancher struct{}

func (MaxDegreeBrancher) ChooseVertices(g zgraph.Graph) (int, int) {
	aa, ok := g.(adjacencyAccess)
	verts := g.GetVertices()
	if !ok || len(verts) < 2 {
		return -1, -1
	}
	order := append([]int(nil), verts...)
	sort.Slice(order, func(i, j int) bool {
		return len(aa.Neighbors(order[i])) > len(aa.Neighbors(order[j]))
	})
	for _, u := range order {
		for _, v := range order {
			if u == v {
				continue
			}
			if !aa.HasEdge(u, v) {
				return u, v
			}
		}
	}
	return -1, -1
}
