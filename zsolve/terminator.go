package zsolve

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zfabric"
	"github.com/distsolve/zykov/zgraph"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// terminatorTick is the coordinator's polling cadence (spec.md section
// 4.3, step 8: "Sleep ~10 ms").
const terminatorTick = 10 * time.Millisecond

// RunTerminator implements T0 (spec.md section 4.3). Rank 0 runs the
// coordinator half: it watches for a declared solution, drains idle
// reports, checks the wall clock, and broadcasts the two termination
// flags every tick. Every other rank runs the participant half: it
// mirrors the same broadcasts and, on timeout, ships its CurrentBest
// back to rank 0.
//
// The declared solution path consolidates the original two-message
// "ub then Branch" transfer (spec.md section 9, open question 3) into a
// single Branch send on TAG_SOLUTION_FOUND, since Branch.Serialize
// already carries ub.
func RunTerminator(fab zfabric.Fabric, st *State, timeout time.Duration, start time.Time) {
	_, span := st.Sinks.startSpan(context.Background(), "terminator")
	defer span.End()

	if st.Rank == 0 {
		runTerminatorCoordinator(fab, st, timeout, start, span)
		return
	}
	runTerminatorWorker(fab, st, timeout, start, span)
}

func runTerminatorCoordinator(fab zfabric.Fabric, st *State, timeout time.Duration, start time.Time, span trace.Span) {
	for {
		timeoutSignal := time.Since(start) >= timeout
		solutionFound := st.solutionFoundLocally()

		for {
			ok, from := fab.IProbe(zfabric.TagSolutionFound, zfabric.AnySource)
			if !ok {
				break
			}
			h := fab.IRecv(zfabric.TagSolutionFound, from)
			payload, recvOK := awaitRecv(st, h)
			if !recvOK {
				break
			}
			b, err := zbranch.Deserialize(payload)
			if err != nil {
				st.Log.Error("terminator: bad solution branch", zap.Error(err))
				continue
			}
			st.ImproveBestUB(b.Ub)
			st.UpdateCurrentBest(b)
			solutionFound = true
			span.AddEvent("solution_found", trace.WithAttributes(attribute.Int("ub", int(b.Ub))))
		}

		for {
			ok, from := fab.IProbe(zfabric.TagIdle, zfabric.AnySource)
			if !ok {
				break
			}
			h := fab.IRecv(zfabric.TagIdle, from)
			payload, recvOK := awaitRecv(st, h)
			if !recvOK {
				break
			}
			st.SetIdle(from, payload[0] == 1)
		}

		if st.AllIdle() {
			solutionFound = true
			span.AddEvent("all_idle")
		}

		flags := make([]byte, 8)
		if solutionFound {
			binary.LittleEndian.PutUint32(flags[0:4], 1)
		}
		if timeoutSignal {
			binary.LittleEndian.PutUint32(flags[4:8], 1)
		}
		ctx, cancel := cooperativeContext(st)
		fab.Broadcast(ctx, 0, flags)
		cancel()

		if timeoutSignal {
			span.AddEvent("timeout")
			collectTimeoutSolutions(fab, st)
		}

		if solutionFound || timeoutSignal {
			if timeoutSignal && !solutionFound {
				st.SetOptimumTime(-1)
			} else {
				st.SetOptimumTime(time.Since(start).Seconds())
			}
			st.SetTerminate()
			return
		}
		time.Sleep(terminatorTick)
	}
}

func runTerminatorWorker(fab zfabric.Fabric, st *State, timeout time.Duration, start time.Time, span trace.Span) {
	for {
		ctx, cancel := cooperativeContext(st)
		resp, err := fab.Broadcast(ctx, 0, nil)
		cancel()
		if err != nil {
			return
		}
		solutionFound := len(resp) >= 4 && binary.LittleEndian.Uint32(resp[0:4]) != 0
		timeoutSignal := len(resp) >= 8 && binary.LittleEndian.Uint32(resp[4:8]) != 0

		if solutionFound {
			span.AddEvent("solution_found")
		}
		if timeoutSignal {
			span.AddEvent("timeout")
			best, ok := st.CurrentBest()
			if !ok {
				best = zbranch.Branch{History: zgraph.NewHistory(), Lb: 0, Ub: maxUBPlaceholder, Depth: 1}
			}
			h := fab.ISend(zfabric.TagTimeoutSolution, 0, best.Serialize())
			awaitSend(st, h)
		}

		if solutionFound || timeoutSignal {
			if timeoutSignal && !solutionFound {
				st.SetOptimumTime(-1)
			} else {
				st.SetOptimumTime(time.Since(start).Seconds())
			}
			st.SetTerminate()
			return
		}
		if st.Terminated() {
			return
		}
		time.Sleep(terminatorTick)
	}
}

// collectTimeoutSolutions gathers one Branch from each worker rank and
// keeps the incumbent with the smallest ub not exceeding BestUB (spec.md
// section 4.3, step 6).
func collectTimeoutSolutions(fab zfabric.Fabric, st *State) {
	for r := 1; r < fab.Size(); r++ {
		h := fab.IRecv(zfabric.TagTimeoutSolution, r)
		payload, ok := awaitRecv(st, h)
		if !ok {
			continue
		}
		b, err := zbranch.Deserialize(payload)
		if err != nil {
			continue
		}
		if b.History == nil {
			continue
		}
		if b.Ub <= st.BestUB() {
			st.UpdateCurrentBest(b)
		}
	}
}

// cooperativeContext returns a context cancelled either by its own
// cancel func or, in the background, by TerminateFlag tripping — so a
// Broadcast/AllGather call blocked waiting on peers unwinds promptly
// once shutdown has been decided.
func cooperativeContext(st *State) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(pollInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if st.Terminated() {
					cancel()
					return
				}
			}
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}

// maxUBPlaceholder marks a timeout report with no real CurrentBest (a
// worker that never found any feasible bound before timing out) so the
// coordinator's "smallest ub" selection in collectTimeoutSolutions never
// prefers it over a real incumbent.
const maxUBPlaceholder = uint16(0xFFFF)
