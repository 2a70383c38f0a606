package zcheckpoint

import (
	"context"
	"testing"

	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zgraph"
)

func TestNewWithNoEndpointsDisables(t *testing.T) {
	store, err := New(nil, "run-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store != nil {
		t.Fatalf("expected a nil Store when no endpoints are configured")
	}
}

func TestNilStoreMethodsAreNoops(t *testing.T) {
	var store *Store
	ctx := context.Background()
	b := zbranch.Branch{History: zgraph.NewHistory(), Lb: 1, Ub: 2, Depth: 1}

	if err := store.SaveBest(ctx, 0, b); err != nil {
		t.Fatalf("SaveBest on nil store: %v", err)
	}
	if _, ok, err := store.LoadBest(ctx, 0); ok || err != nil {
		t.Fatalf("LoadBest on nil store: ok=%v err=%v, want ok=false err=nil", ok, err)
	}
	if err := store.SaveRunMeta(ctx, 4); err != nil {
		t.Fatalf("SaveRunMeta on nil store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
}
