package zsolve

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zconfig"
	"github.com/distsolve/zykov/zfabric"
	"github.com/distsolve/zykov/zgraph"
	"github.com/distsolve/zykov/zlog"
)

// Solve is the public entrypoint of spec.md section 6: it runs the
// four-role thread choreography to completion on this rank and
// re-colors root in place with the witness assignment. The returned
// chi is this rank's view of BestUB at termination; optimumTime is the
// wall-clock seconds at which the search concluded, or -1 on timeout
// with no match found.
func Solve(fab zfabric.Fabric, root zgraph.Graph, oracles Oracles, cfg zconfig.SolverConfig, log *zlog.Logger) (chi uint16, optimumTime float64, err error) {
	return SolveWithSinks(fab, root, oracles, cfg, log, Sinks{})
}

// SolveWithSinks is Solve plus the optional observability/checkpoint
// fan-out of SPEC_FULL.md sections 4.10-4.11. cmd/zykov-solve uses this
// entrypoint; Solve itself stays dependency-free for callers (and
// tests) that don't want the telemetry stack wired in.
func SolveWithSinks(fab zfabric.Fabric, root zgraph.Graph, oracles Oracles, cfg zconfig.SolverConfig, log *zlog.Logger, sinks Sinks) (chi uint16, optimumTime float64, err error) {
	if fab == nil || root == nil || oracles.Clique == nil || oracles.Colorer == nil || oracles.Brancher == nil {
		return 0, -1, errors.New("zsolve: nil fabric, graph or oracle")
	}
	if fab.Size() < 1 {
		return 0, -1, fmt.Errorf("zsolve: fabric size %d < 1", fab.Size())
	}
	if log == nil {
		log = zlog.Nop()
	}
	st := NewState(fab.Rank(), fab.Size(), root, oracles, cfg.ExpectedChi, log)
	st.Sinks = sinks

	switch cfg.Variant {
	case zconfig.VariantBalanced:
		InitBalanced(st, fab.Size())
	default:
		InitStandard(st)
	}

	// A checkpointed incumbent from a prior process on this rank
	// (SPEC_FULL.md section 4.11) re-joins here, before the search
	// threads start, exactly like the normal single-branch seed above —
	// it never interrupts a search already in flight.
	if sinks.Resume != nil {
		st.UpdateCurrentBest(*sinks.Resume)
		st.Queue.Push(*sinks.Resume)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); RunTerminator(fab, st, cfg.Timeout, start) }()
	go func() { defer wg.Done(); RunGatherer(fab, st, cfg.SolGatherPeriod) }()
	go func() { defer wg.Done(); RunEmployer(fab, st) }()

	RunWorker(fab, st, cfg.Variant)

	wg.Wait()

	if best, ok := st.CurrentBest(); ok {
		ReconstructWitness(root, oracles, best)
	}
	return st.BestUB(), st.OptimumTime(), nil
}

// ReconstructWitness implements spec.md section 4.8: it recolors b's
// reconstructed graph, then propagates each surviving vertex's color to
// itself and to every vertex merged into it along the path to b,
// installing the result on root.
func ReconstructWitness(root zgraph.Graph, oracles Oracles, b zbranch.Branch) {
	bg := b.Graph(root)
	_, coloring := oracles.Colorer.Color(bg)
	bg.SetFullColoring(coloring)

	full := make(map[int]uint16, root.GetNumVertices())
	for _, v := range bg.GetVertices() {
		c := coloring[v]
		full[v] = c
		for _, w := range bg.GetMergedVertices(v) {
			full[w] = c
		}
	}
	root.SetFullColoring(full)
}
