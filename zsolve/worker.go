package zsolve

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zconfig"
	"github.com/distsolve/zykov/zfabric"
	"github.com/distsolve/zykov/zgraph"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// stealRetryInterval is how often an idle worker re-tries the steal
// client while waiting for donated work.
const stealRetryInterval = 10 * time.Millisecond

// boundsFor computes (lb, ub, coloring) for g, consulting the bounds
// cache by history fingerprint to skip the clique lower bound when a
// branch with the same history has already been scored (SPEC_FULL.md
// section 3). An oracle result with lb > ub is logged at error level and
// ub is clamped to lb. Color is always recomputed: the coloring it produces is
// what SetFullColoring installs on g for later witness reconstruction,
// and the cache does not retain colorings.
func boundsFor(st *State, g zgraph.Graph) (int, uint16, map[int]uint16) {
	ub, coloring := st.Oracles.Colorer.Color(g)
	g.SetFullColoring(coloring)

	fp := g.History().Fingerprint()
	if cached, ok := st.Bounds.Get(fp); ok && cached.Lb <= int(ub) {
		return cached.Lb, ub, coloring
	}
	lb := st.Oracles.Clique.FindClique(g)
	if lb > int(ub) {
		st.Log.Error("oracle returned lb > ub; clamping ub to lb",
			zap.Int("lb", lb), zap.Uint16("ub", ub), zap.Uint64("fingerprint", fp))
		ub = uint16(lb)
	}
	st.Bounds.Put(fp, zbranch.Bounds{Lb: lb, Ub: ub})
	return lb, ub, coloring
}

// colorComplete assigns every vertex of a complete graph its own color
// and installs the coloring, for the "no branchable pair exists" leaf of
// spec.md section 4.6 step 5.
func colorComplete(g zgraph.Graph) uint16 {
	verts := g.GetVertices()
	coloring := make(map[int]uint16, len(verts))
	for i, v := range verts {
		coloring[v] = uint16(i + 1)
	}
	g.SetFullColoring(coloring)
	return uint16(len(verts))
}

// InitStandard seeds the queue for the STANDARD variant: score the whole
// root graph and push it at depth 1 (spec.md section 4.6).
func InitStandard(st *State) {
	g := st.Root.Clone()
	lb, ub, _ := boundsFor(st, g)
	seed := zbranch.Branch{History: g.History(), Lb: lb, Ub: uint16(ub), Depth: 1}
	st.ImproveBestUB(ub)
	st.UpdateCurrentBest(seed)
	st.Queue.Push(seed)
}

// InitBalanced seeds the queue for the BALANCED variant by descending
// ceil(log2 P) levels from the root (so the seed sits at depth
// ceil(log2 P)+1), picking MERGE or ADDEDGE at each
// level according to which half of the current [a,b] rank interval this
// rank falls in: the lower half takes ADDEDGE, the upper half takes
// MERGE (spec.md section 4.6, "Initialization (BALANCED)"). Only the
// resulting single Branch is pushed.
func InitBalanced(st *State, size int) {
	g := st.Root.Clone()
	levels := 0
	if size > 1 {
		levels = int(math.Ceil(math.Log2(float64(size))))
	}
	a, b := 0, size-1
	depth := 1
	for l := 0; l < levels; l++ {
		u, v := st.Oracles.Brancher.ChooseVertices(g)
		if u < 0 || v < 0 {
			break
		}
		mid := a + (b-a)/2
		if st.Rank <= mid {
			g.AddEdge(u, v)
			b = mid
		} else {
			g.MergeVertices(u, v)
			a = mid + 1
		}
		depth++
	}
	lb, ub, _ := boundsFor(st, g)
	seed := zbranch.Branch{History: g.History(), Lb: lb, Ub: ub, Depth: depth}
	st.ImproveBestUB(ub)
	st.UpdateCurrentBest(seed)
	st.Queue.Push(seed)
}

// RunWorker implements T3 (spec.md section 4.6): the search loop proper,
// for either variant. The whole run lives under a single Worker span
// (SPEC_FULL.md section 4.10); each popped node is an event on it
// rather than a span of its own, keeping span volume flat regardless of
// how many branches this rank explores.
func RunWorker(fab zfabric.Fabric, st *State, variant zconfig.Variant) {
	_, span := st.Sinks.startSpan(context.Background(), "worker")
	defer span.End()

	iteration := 0
	for !st.Terminated() {
		b, ok := st.Queue.Pop()
		if !ok {
			stolen, got := idlePath(fab, st)
			if !got {
				continue
			}
			b = stolen
		}
		iteration++
		st.Sinks.recordNode()
		span.AddEvent("node", trace.WithAttributes(
			attribute.Int("depth", b.Depth),
			attribute.Int("lb", b.Lb),
			attribute.Int("ub", int(b.Ub)),
		))

		if st.ExpectedChi > 0 && b.Ub == st.ExpectedChi {
			st.ImproveBestUB(b.Ub)
			st.UpdateCurrentBest(b)
			st.MarkSolutionFound()
			sh := fab.ISend(zfabric.TagSolutionFound, 0, b.Serialize())
			awaitSend(st, sh)
			return
		}

		if b.Lb == int(b.Ub) {
			st.UpdateCurrentBest(b)
			if variant == zconfig.VariantStandard && iteration == 1 && b.Depth == 1 {
				st.MarkSolutionFound()
				sh := fab.ISend(zfabric.TagSolutionFound, 0, b.Serialize())
				awaitSend(st, sh)
				return
			}
			continue
		}

		if b.Lb >= int(st.BestUB()) {
			continue
		}

		g := b.Graph(st.Root)
		u, v := st.Oracles.Brancher.ChooseVertices(g)
		if u < 0 || v < 0 {
			ub := colorComplete(g)
			st.UpdateCurrentBest(zbranch.Branch{History: g.History(), Lb: int(ub), Ub: ub, Depth: b.Depth})
			continue
		}

		if variant == zconfig.VariantBalanced {
			branchTwoChildren(st, g, u, v, b.Depth)
			continue
		}
		branchStandard(st, g, u, v, b.Depth)
	}
}

// branchStandard implements the depth-conditioned branching rule of
// spec.md section 4.6 step 6: the first my_rank+1 levels are single-
// child so distinct ranks explore disjoint subtrees.
func branchStandard(st *State, g zgraph.Graph, u, v, depth int) {
	switch {
	case depth < st.Rank+1:
		child := g.Clone()
		child.AddEdge(u, v)
		lb, ub, _ := boundsFor(st, child)
		branch := zbranch.Branch{History: child.History(), Lb: lb, Ub: ub, Depth: depth + 1}
		st.UpdateCurrentBest(branch)
		st.Queue.Push(branch)
	case depth == st.Rank+1:
		child := g.Clone()
		child.MergeVertices(u, v)
		lb, ub, _ := boundsFor(st, child)
		branch := zbranch.Branch{History: child.History(), Lb: lb, Ub: ub, Depth: depth + 1}
		st.UpdateCurrentBest(branch)
		st.Queue.Push(branch)
	default:
		branchTwoChildren(st, g, u, v, depth)
	}
}

// branchTwoChildren pushes both the MERGE and ADDEDGE children, applying
// the tie rule of spec.md section 4.6: prefer MERGE's ub if it improves
// on the previous BestUB and is no worse than ADDEDGE's; otherwise
// prefer ADDEDGE's ub if it improves on the previous BestUB.
func branchTwoChildren(st *State, g zgraph.Graph, u, v, depth int) {
	mergeChild := g.Clone()
	mergeChild.MergeVertices(u, v)
	mlb, mub, _ := boundsFor(st, mergeChild)
	mergeBranch := zbranch.Branch{History: mergeChild.History(), Lb: mlb, Ub: mub, Depth: depth + 1}

	addChild := g.Clone()
	addChild.AddEdge(u, v)
	alb, aub, _ := boundsFor(st, addChild)
	addBranch := zbranch.Branch{History: addChild.History(), Lb: alb, Ub: aub, Depth: depth + 1}

	prevBestUB := st.BestUB()
	switch {
	case mub < prevBestUB && mub <= aub:
		st.UpdateCurrentBest(mergeBranch)
	case aub < prevBestUB:
		st.UpdateCurrentBest(addBranch)
	}

	st.Queue.Push(mergeBranch)
	st.Queue.Push(addBranch)
}

// idlePath implements the IDLE PATH of spec.md section 4.6 step 1:
// report idle, retry the steal client until work arrives or
// TerminateFlag trips, then report busy again.
func idlePath(fab zfabric.Fabric, st *State) (zbranch.Branch, bool) {
	sh := fab.ISend(zfabric.TagIdle, 0, []byte{1})
	awaitSend(st, sh)
	for !st.Terminated() {
		if b, ok := stealOnce(fab, st); ok {
			bh := fab.ISend(zfabric.TagIdle, 0, []byte{0})
			awaitSend(st, bh)
			return b, true
		}
		time.Sleep(stealRetryInterval)
	}
	return zbranch.Branch{}, false
}

// stealOnce implements the steal client of spec.md section 4.7: pick a
// uniformly random victim != self, request work, and receive it if
// offered. A completed steal's round-trip latency feeds T1's per-cycle
// summary (SPEC_FULL.md section 4.10).
func stealOnce(fab zfabric.Fabric, st *State) (zbranch.Branch, bool) {
	start := time.Now()
	size := fab.Size()
	if size <= 1 {
		return zbranch.Branch{}, false
	}
	victim := rand.Intn(size - 1)
	if victim >= st.Rank {
		victim++
	}

	sh := fab.ISend(zfabric.TagWorkRequest, victim, nil)
	if !awaitSend(st, sh) {
		return zbranch.Branch{}, false
	}

	rh := fab.IRecv(zfabric.TagWorkResponse, victim)
	payload, ok := awaitRecv(st, rh)
	if !ok || len(payload) == 0 || payload[0] == 0 {
		return zbranch.Branch{}, false
	}

	bh := fab.IRecv(zfabric.TagWorkStealing, victim)
	branchPayload, ok := awaitRecv(st, bh)
	if !ok {
		return zbranch.Branch{}, false
	}
	b, err := zbranch.Deserialize(branchPayload)
	if err != nil {
		return zbranch.Branch{}, false
	}
	st.Sinks.recordSteal(time.Since(start))
	return b, true
}
