package zlog

import "testing"

func TestDebugEnabledRespectsEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		label string
		want  bool
	}{
		{"unset disables everything", "", "worker", false},
		{"star enables everything", "*", "worker", true},
		{"all keyword enables everything", "all", "terminator", true},
		{"matching label enabled", "worker,terminator", "worker", true},
		{"non-matching label disabled", "worker,terminator", "employer", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ZYKOV_DEBUG", tt.env)
			resetDebugState()
			if got := DebugEnabled(tt.label); got != tt.want {
				t.Fatalf("DebugEnabled(%q) with ZYKOV_DEBUG=%q = %v, want %v", tt.label, tt.env, got, tt.want)
			}
		})
	}
}

func TestChildIncrementsDepth(t *testing.T) {
	l := Nop()
	if l.depth != 0 {
		t.Fatalf("fresh logger depth = %d, want 0", l.depth)
	}
	c := l.Child().Child()
	if c.depth != 2 {
		t.Fatalf("depth after two Child() calls = %d, want 2", c.depth)
	}
	d := c.WithDepth(5)
	if d.depth != 5 {
		t.Fatalf("WithDepth(5) depth = %d, want 5", d.depth)
	}
}

func TestNopLoggerNeverPanics(t *testing.T) {
	l := Nop()
	l.Info("hello")
	l.Warn("hello")
	l.Error("hello")
	l.Debug("anylabel", "hello")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync on nop logger: %v", err)
	}
}

// resetDebugState lets each subtest re-parse ZYKOV_DEBUG rather than
// reusing the package-level memoized value from a previous subtest.
func resetDebugState() {
	debugMu.Lock()
	debugInit = false
	debugAll = false
	debugLabels = nil
	debugMu.Unlock()
}
