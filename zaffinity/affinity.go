// Package zaffinity best-effort pins each of the four per-rank threads
// (T0-T3) to its own CPU so the terminator's and employer's frequent
// short polls don't contend with the worker's hot loop for the same
// core. The package is Linux-only (it uses the Linux affinity syscall).
// Pinning never fails a run: every function here degrades to a no-op,
// and logs nothing, if the kernel refuses the affinity change, the same
// defensive posture the pack's container
// isolation code takes around runtime.LockOSThread (container/isolation.go
// in the sigmaos example) before an operation that can legitimately be
// unavailable in a sandboxed environment.
package zaffinity

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"golang.org/x/sys/unix"
)

// Role identifies which of the four per-rank threads is requesting a
// pin, used only to choose a deterministic, distinct core per role.
type Role int

const (
	RoleTerminator Role = iota
	RoleGatherer
	RoleEmployer
	RoleWorker
)

// physicalCores caches the machine's physical core count (gopsutil,
// not runtime.NumCPU, since the latter counts logical CPUs and
// hyperthreads would otherwise pair two roles onto the same physical
// core).
var physicalCores = func() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}()

// PinCurrentThread locks the calling goroutine to its current OS
// thread and restricts that thread to one CPU, chosen round-robin from
// rank and role so that distinct ranks on the same machine also spread
// across cores rather than collapsing onto the same one. Returns false
// if pinning wasn't possible (insufficient permission, or a single-core
// machine); the OS thread lock is then released and callers proceed
// unpinned.
func PinCurrentThread(rank int, role Role) bool {
	if physicalCores <= 1 {
		return false
	}
	runtime.LockOSThread()
	core := (rank*4 + int(role)) % physicalCores

	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return false
	}
	return true
}

// UnpinCurrentThread releases the OS thread lock taken by
// PinCurrentThread. Safe to call even if pinning never succeeded.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}

// PhysicalCores reports the cached physical core count used to choose
// pin targets.
func PhysicalCores() int {
	return physicalCores
}
