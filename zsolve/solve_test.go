package zsolve

import (
	"sync"
	"testing"
	"time"

	"github.com/distsolve/zykov/zconfig"
	"github.com/distsolve/zykov/zfabric"
	"github.com/distsolve/zykov/zfabric/localfab"
	"github.com/distsolve/zykov/zgraph"
	"github.com/distsolve/zykov/zoracle"
)

func newOracles() Oracles {
	return Oracles{
		Clique:   zoracle.NewGreedyClique(8),
		Colorer:  zoracle.GreedyColorer{},
		Brancher: zoracle.MaxDegreeBrancher{},
	}
}

type rankResult struct {
	chi         uint16
	optimumTime float64
	root        *zgraph.AdjacencyGraph
}

// runFleet drives Solve on size ranks concurrently over a shared
// localfab bus, each rank working an independent clone of the graph
// produced by newRoot.
func runFleet(t *testing.T, size int, newRoot func() *zgraph.AdjacencyGraph, cfg zconfig.SolverConfig) []rankResult {
	t.Helper()
	fabs := localfab.New(size)
	results := make([]rankResult, size)
	var wg sync.WaitGroup
	wg.Add(size)
	for i := 0; i < size; i++ {
		go func(i int, fab zfabric.Fabric) {
			defer wg.Done()
			root := newRoot()
			chi, optTime, err := Solve(fab, root, newOracles(), cfg, nil)
			if err != nil {
				t.Errorf("rank %d: Solve error: %v", i, err)
			}
			results[i] = rankResult{chi: chi, optimumTime: optTime, root: root}
		}(i, fabs[i])
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatalf("fleet of %d ranks did not terminate in time", size)
	}
	return results
}

func assertProperColoring(t *testing.T, g *zgraph.AdjacencyGraph, maxColors uint16) {
	t.Helper()
	coloring := g.GetFullColoring()
	if coloring == nil {
		t.Fatalf("expected a witness coloring to be installed")
	}
	for _, v := range g.GetVertices() {
		c, ok := coloring[v]
		if !ok {
			t.Fatalf("vertex %d left uncolored", v)
		}
		if c == 0 || c > maxColors {
			t.Fatalf("vertex %d colored %d, outside [1,%d]", v, c, maxColors)
		}
		for _, n := range g.Neighbors(v) {
			if coloring[v] == coloring[n] {
				t.Fatalf("adjacent vertices %d,%d share color %d", v, n, c)
			}
		}
	}
}

// S1: K4, P=2, expected_chi=4.
func TestSolveK4TwoRanksShortCircuits(t *testing.T) {
	edges := [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	cfg := zconfig.SolverConfig{
		Timeout:         10 * time.Second,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     4,
		Variant:         zconfig.VariantStandard,
	}
	results := runFleet(t, 2, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(4, edges)
	}, cfg)

	for i, r := range results {
		if r.chi != 4 {
			t.Fatalf("rank %d: want chi=4, got %d", i, r.chi)
		}
		if r.optimumTime < 0 {
			t.Fatalf("rank %d: expected a non-negative optimum time, got %v", i, r.optimumTime)
		}
		assertProperColoring(t, r.root, 4)
	}
}

// S2: C5, P=1, expected_chi=3.
func TestSolveC5SingleRank(t *testing.T) {
	edges := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}}
	cfg := zconfig.SolverConfig{
		Timeout:         10 * time.Second,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     3,
		Variant:         zconfig.VariantStandard,
	}
	results := runFleet(t, 1, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(5, edges)
	}, cfg)

	if results[0].chi != 3 {
		t.Fatalf("want chi=3, got %d", results[0].chi)
	}
	assertProperColoring(t, results[0].root, 3)
}

// S4: bipartite K_{3,3}, P=3, expected_chi=2.
func TestSolveK33ThreeRanks(t *testing.T) {
	var edges [][2]int
	for u := 0; u < 3; u++ {
		for v := 3; v < 6; v++ {
			edges = append(edges, [2]int{u, v})
		}
	}
	cfg := zconfig.SolverConfig{
		Timeout:         10 * time.Second,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     2,
		Variant:         zconfig.VariantStandard,
	}
	results := runFleet(t, 3, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(6, edges)
	}, cfg)

	for i, r := range results {
		if r.chi != 2 {
			t.Fatalf("rank %d: want chi=2, got %d", i, r.chi)
		}
		assertProperColoring(t, r.root, 2)
	}
}

// S5: empty graph on 7 vertices, P=2, expected_chi=1.
func TestSolveEmptyGraphTwoRanks(t *testing.T) {
	cfg := zconfig.SolverConfig{
		Timeout:         10 * time.Second,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     1,
		Variant:         zconfig.VariantStandard,
	}
	results := runFleet(t, 2, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(7, nil)
	}, cfg)

	for i, r := range results {
		if r.chi != 1 {
			t.Fatalf("rank %d: want chi=1, got %d", i, r.chi)
		}
		coloring := r.root.GetFullColoring()
		for _, v := range r.root.GetVertices() {
			if coloring[v] != 1 {
				t.Fatalf("vertex %d: want color 1, got %d", v, coloring[v])
			}
		}
	}
}

// Boundary property 9: root already optimally colored and expected_chi
// matches the initial coloring's size — resolves on the very first
// iteration.
func TestSolveResolvesOnFirstIterationWhenAlreadyOptimal(t *testing.T) {
	cfg := zconfig.SolverConfig{
		Timeout:         5 * time.Second,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     1,
		Variant:         zconfig.VariantStandard,
	}
	results := runFleet(t, 1, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(3, nil)
	}, cfg)
	if results[0].chi != 1 {
		t.Fatalf("want chi=1, got %d", results[0].chi)
	}
}

// Boundary property 10: a zero timeout makes T0 declare timeout_signal
// on its first tick; Solve must still return cleanly with whatever
// CurrentBest the brief initialization produced.
func TestSolveZeroTimeoutReturnsCleanly(t *testing.T) {
	edges := [][2]int{{0, 1}, {1, 2}, {2, 0}}
	cfg := zconfig.SolverConfig{
		Timeout:         0,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     0,
		Variant:         zconfig.VariantStandard,
	}
	results := runFleet(t, 1, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(3, edges)
	}, cfg)
	if results[0].chi == 0 {
		t.Fatalf("expected some upper bound to have been recorded before timeout")
	}
}

// BALANCED variant should also reach the correct chromatic number on a
// simple case.
func TestSolveBalancedVariantK4(t *testing.T) {
	edges := [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	cfg := zconfig.SolverConfig{
		Timeout:         10 * time.Second,
		SolGatherPeriod: 50 * time.Millisecond,
		ExpectedChi:     4,
		Variant:         zconfig.VariantBalanced,
	}
	results := runFleet(t, 2, func() *zgraph.AdjacencyGraph {
		return zgraph.NewAdjacencyGraphFromEdges(4, edges)
	}, cfg)
	for i, r := range results {
		if r.chi != 4 {
			t.Fatalf("rank %d: want chi=4, got %d", i, r.chi)
		}
	}
}
