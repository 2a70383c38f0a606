package zsolve

import (
	"time"

	"github.com/distsolve/zykov/zfabric"
)

// employerTick mirrors spec.md section 4.5: "Sleep ~10 ms between
// probes."
const employerTick = 10 * time.Millisecond

// RunEmployer implements T2 (spec.md section 4.5): it answers
// TAG_WORK_REQUEST probes from any source by donating from the local
// queue when queue.size() > 1, sending the availability flag before the
// Branch itself so a timed-out requester can cancel cleanly.
func RunEmployer(fab zfabric.Fabric, st *State) {
	for !st.Terminated() {
		ok, from := fab.IProbe(zfabric.TagWorkRequest, zfabric.AnySource)
		if !ok {
			time.Sleep(employerTick)
			continue
		}
		h := fab.IRecv(zfabric.TagWorkRequest, from)
		if _, recvOK := awaitRecv(st, h); !recvOK {
			continue
		}

		branch, donated := st.Queue.Donate()
		avail := byte(0)
		if donated {
			avail = 1
		}
		sh := fab.ISend(zfabric.TagWorkResponse, from, []byte{avail})
		if !awaitSend(st, sh) {
			continue
		}
		if donated {
			bh := fab.ISend(zfabric.TagWorkStealing, from, branch.Serialize())
			awaitSend(st, bh)
		}
	}
}
