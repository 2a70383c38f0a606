package zsolve

import (
	"time"

	"github.com/distsolve/zykov/zfabric"
)

// pollInterval is the cooperative-sleep length of spec.md section 5 ("sleeps 1-100 ms before retrying").
const pollInterval = 5 * time.Millisecond

// awaitSend blocks on h the cooperative way: test, check TerminateFlag,
// sleep, repeat. Returns false (and cancels h) if TerminateFlag trips
// first or the send itself fails.
func awaitSend(st *State, h zfabric.SendHandle) bool {
	for {
		done, err := h.Test()
		if done {
			return err == nil
		}
		if st.Terminated() {
			h.Cancel()
			return false
		}
		time.Sleep(pollInterval)
	}
}

// sleepCooperatively waits up to d, in short increments, returning false
// early if TerminateFlag trips — the same discipline T1's gather cadence
// uses instead of a bare time.Sleep(d).
func sleepCooperatively(st *State, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if st.Terminated() {
			return false
		}
		time.Sleep(pollInterval)
	}
	return !st.Terminated()
}

// awaitRecv blocks on h the cooperative way, returning the payload once
// available. ok is false when TerminateFlag trips first (the sentinel
// empty-Branch path of spec.md section 4.1) or the receive fails.
func awaitRecv(st *State, h zfabric.RecvHandle) (payload []byte, ok bool) {
	for {
		done, p, err := h.Test()
		if done {
			if err != nil {
				return nil, false
			}
			return p, true
		}
		if st.Terminated() {
			h.Cancel()
			return nil, false
		}
		time.Sleep(pollInterval)
	}
}
