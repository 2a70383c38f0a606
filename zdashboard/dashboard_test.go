package zdashboard

import "testing"

func TestPublishWithNoConnectionsOrRedisIsSafe(t *testing.T) {
	d := New(0, "")
	d.Publish(ProgressEvent{Rank: 0, BestUB: 4, QueueSize: 3, Idle: false})
}

func TestHandlerIsRegistered(t *testing.T) {
	d := New(1, "")
	if d.Handler() == nil {
		t.Fatalf("expected a non-nil http.Handler")
	}
}

func TestRunRelayNoopsWithoutRedis(t *testing.T) {
	d := New(2, "")
	// RunRelay must return immediately rather than blocking forever when
	// no Redis client was configured.
	d.RunRelay(nil)
}
