// Package zsolve implements the four-role per-process thread
// choreography (T0 Terminator, T1 Bound Gatherer, T2 Employer, T3
// Worker) that drives the distributed Zykov branch-and-bound search
// described in spec.md sections 2-5, plus the Solve entrypoint and
// witness reconstruction of section 4.8.
package zsolve

import (
	"sync"
	"sync/atomic"

	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zgraph"
	"github.com/distsolve/zykov/zlog"
	"github.com/distsolve/zykov/zoracle"
)

// Oracles bundles the three collaborator capabilities the search
// consumes by interface (spec.md section 6). They are injected at
// startup and held by shared reference for the lifetime of Solve.
type Oracles struct {
	Clique   zoracle.CliqueFinder
	Colorer  zoracle.Colorer
	Brancher zoracle.Brancher
}

// maxUB is the BestUB sentinel meaning "no upper bound known yet"
// (spec.md section 3: "Initialized to 2^16-1").
const maxUB uint32 = 0xFFFF

// State is the per-process global mutable state of section 9: three
// atomics (TerminateFlag, BestUB, plus an internal solution-found latch)
// and mutex-guarded CurrentBest and priority queue.
type State struct {
	Rank int
	Size int

	Root    zgraph.Graph
	Oracles Oracles
	Queue   *zbranch.Queue
	Bounds  *zbranch.BoundsCache
	Log     *zlog.Logger

	ExpectedChi uint16

	Sinks Sinks

	bestUB      atomic.Uint32
	terminate   atomic.Bool
	solutionHit atomic.Bool // set by T3 when it declares a solution, consumed by T0

	curBestMu sync.Mutex
	curBest   zbranch.Branch
	haveBest  bool

	idleMu     sync.Mutex
	idleStatus []int32 // rank 0 only; idleStatus[i] is the last reported idleness of rank i

	// optimumTime is written once, by whichever path concludes the
	// search; -1 means "timed out" per spec.md section 7.
	optimumMu   sync.Mutex
	optimumTime float64
}

// NewState builds the shared state for one rank's run.
func NewState(rank, size int, root zgraph.Graph, oracles Oracles, expectedChi uint16, log *zlog.Logger) *State {
	st := &State{
		Rank:        rank,
		Size:        size,
		Root:        root,
		Oracles:     oracles,
		Queue:       zbranch.NewQueue(),
		Bounds:      zbranch.NewBoundsCache(4096),
		Log:         log,
		ExpectedChi: expectedChi,
		optimumTime: -1,
	}
	st.bestUB.Store(maxUB)
	if rank == 0 {
		st.idleStatus = make([]int32, size)
	}
	return st
}

// BestUB returns the current local upper bound.
func (st *State) BestUB() uint16 {
	return uint16(st.bestUB.Load())
}

// ImproveBestUB installs ub if it is strictly better than the current
// value, preserving the monotone non-increasing invariant (spec.md
// section 3, testable property 1) under concurrent writers via CAS.
func (st *State) ImproveBestUB(ub uint16) {
	for {
		cur := st.bestUB.Load()
		if uint32(ub) >= cur {
			return
		}
		if st.bestUB.CompareAndSwap(cur, uint32(ub)) {
			return
		}
	}
}

// SetTerminate monotonically flips TerminateFlag to true.
func (st *State) SetTerminate() {
	st.terminate.Store(true)
}

// Terminated reports the current value of TerminateFlag.
func (st *State) Terminated() bool {
	return st.terminate.Load()
}

// MarkSolutionFound records that this process's T3 has declared a
// matching solution, so its own T0 can short-circuit immediately rather
// than waiting for a message it sent to itself.
func (st *State) MarkSolutionFound() {
	st.solutionHit.Store(true)
}

func (st *State) solutionFoundLocally() bool {
	return st.solutionHit.Load()
}

// UpdateCurrentBest installs b as CurrentBest and improves BestUB if
// b.Ub is better than what's currently known. Grounded on the original
// implementation's UpdateCurrentBest helper (branch_n_bound_par.cpp).
func (st *State) UpdateCurrentBest(b zbranch.Branch) {
	st.ImproveBestUB(b.Ub)
	st.curBestMu.Lock()
	defer st.curBestMu.Unlock()
	if !st.haveBest || b.Ub < st.curBest.Ub {
		st.curBest = b
		st.haveBest = true
	}
}

// CurrentBest returns the best Branch found so far on this process, and
// whether one has been recorded at all.
func (st *State) CurrentBest() (zbranch.Branch, bool) {
	st.curBestMu.Lock()
	defer st.curBestMu.Unlock()
	return st.curBest, st.haveBest
}

// SetIdle updates rank 0's bookkeeping of a worker's idleness. Only
// meaningful when called on rank 0's State.
func (st *State) SetIdle(rank int, idle bool) {
	st.idleMu.Lock()
	defer st.idleMu.Unlock()
	if rank < 0 || rank >= len(st.idleStatus) {
		return
	}
	v := int32(0)
	if idle {
		v = 1
	}
	st.idleStatus[rank] = v
}

// AllIdle reports whether every worker rank (1..Size-1) currently shows
// idle_status=1. Rank 0's own slot is never considered when there are
// real peers to check (spec.md section 3: "Rank 0 has idle_status[0]=0
// permanently"). The P=1 boundary case (section 8, property 8) has no
// such peers, so rank 0's own T3 is the only source of idleness and its
// slot is consulted instead — otherwise AllIdle would be vacuously true
// on the very first tick regardless of whether the lone worker still had
// branches left to explore.
func (st *State) AllIdle() bool {
	st.idleMu.Lock()
	defer st.idleMu.Unlock()
	if len(st.idleStatus) <= 1 {
		return len(st.idleStatus) == 1 && st.idleStatus[0] == 1
	}
	for i := 1; i < len(st.idleStatus); i++ {
		if st.idleStatus[i] == 0 {
			return false
		}
	}
	return true
}

// IdleCount reports how many ranks rank 0's idle table currently shows
// as idle. Returns 0 on any other rank, since only rank 0 maintains
// idleStatus.
func (st *State) IdleCount() int {
	st.idleMu.Lock()
	defer st.idleMu.Unlock()
	n := 0
	for _, v := range st.idleStatus {
		if v == 1 {
			n++
		}
	}
	return n
}

// SetOptimumTime records the wall-clock seconds at which the search
// concluded, or -1 for a timeout.
func (st *State) SetOptimumTime(t float64) {
	st.optimumMu.Lock()
	defer st.optimumMu.Unlock()
	st.optimumTime = t
}

// OptimumTime returns the recorded conclusion time.
func (st *State) OptimumTime() float64 {
	st.optimumMu.Lock()
	defer st.optimumMu.Unlock()
	return st.optimumTime
}
