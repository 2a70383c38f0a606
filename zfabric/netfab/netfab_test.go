package netfab

import (
	"context"
	"testing"
	"time"

	"github.com/distsolve/zykov/zfabric"
)

func dialPair(t *testing.T) (*Fabric, *Fabric) {
	t.Helper()
	peers := []string{"127.0.0.1:18301", "127.0.0.1:18302"}
	f0 := New(0, peers)
	f1 := New(1, peers)

	errCh := make(chan error, 2)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errCh <- f0.Dial(ctx)
	}()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errCh <- f1.Dial(ctx)
	}()
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("dial: %v", err)
		}
	}
	return f0, f1
}

func TestNetfabSendRecv(t *testing.T) {
	f0, f1 := dialPair(t)

	f0.ISend(11, 1, []byte("over-the-wire"))
	rh := f1.IRecv(11, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if done, payload, err := rh.Test(); done {
			if err != nil {
				t.Fatalf("recv error: %v", err)
			}
			if string(payload) != "over-the-wire" {
				t.Fatalf("got %q", payload)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for message")
}

func TestNetfabBroadcast(t *testing.T) {
	f0, f1 := dialPair(t)

	results := make(chan []byte, 2)
	errs := make(chan error, 2)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		out, err := f0.Broadcast(ctx, 0, []byte("bcast"))
		results <- out
		errs <- err
	}()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		out, err := f1.Broadcast(ctx, 0, nil)
		results <- out
		errs <- err
	}()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("broadcast error: %v", err)
		}
		if got := <-results; string(got) != "bcast" {
			t.Fatalf("got %q, want bcast", got)
		}
	}
}

var _ zfabric.Fabric = (*Fabric)(nil)
