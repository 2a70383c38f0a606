package zaffinity

import "testing"

func TestPhysicalCoresIsPositive(t *testing.T) {
	if PhysicalCores() <= 0 {
		t.Fatalf("PhysicalCores() = %d, want > 0", PhysicalCores())
	}
}

// PinCurrentThread must never panic regardless of whether the sandbox
// this test runs in actually grants CGROUP/affinity permissions; a
// false return is an acceptable outcome, a panic is not.
func TestPinCurrentThreadNeverPanics(t *testing.T) {
	defer UnpinCurrentThread()
	for _, role := range []Role{RoleTerminator, RoleGatherer, RoleEmployer, RoleWorker} {
		_ = PinCurrentThread(0, role)
	}
}
