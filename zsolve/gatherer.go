package zsolve

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/distsolve/zykov/zfabric"
)

// RunGatherer implements T1 (spec.md section 4.4): every gatherPeriod it
// all-gathers each process's local BestUB and installs the fleet
// minimum. The cadence is approximate, not a wall clock — drift is
// acceptable because a stale BestUB only weakens pruning, never
// invalidates it.
func RunGatherer(fab zfabric.Fabric, st *State, gatherPeriod time.Duration) {
	if gatherPeriod <= 0 {
		gatherPeriod = 5 * time.Second
	}
	for {
		if !sleepCooperatively(st, gatherPeriod) {
			return
		}

		local := make([]byte, 2)
		binary.LittleEndian.PutUint16(local, st.BestUB())

		ctx, cancel := cooperativeContext(st)
		gathered, err := fab.AllGather(ctx, local)
		cancel()
		if err != nil {
			if st.Terminated() {
				return
			}
			continue
		}

		for _, g := range gathered {
			if len(g) < 2 {
				continue
			}
			st.ImproveBestUB(binary.LittleEndian.Uint16(g))
		}

		st.Sinks.publishProgress(st.Rank, st.Queue.Size(), st.BestUB(), st.IdleCount())
		st.Sinks.logSummary(st.Log)
		if best, ok := st.CurrentBest(); ok {
			st.Sinks.checkpointBest(context.Background(), st.Rank, best)
		}
	}
}
