package zbranch

import "testing"

func TestQueuePopReturnsDeepestFirst(t *testing.T) {
	q := NewQueue()
	q.Push(Branch{Depth: 1})
	q.Push(Branch{Depth: 5})
	q.Push(Branch{Depth: 3})

	first, ok := q.Pop()
	if !ok || first.Depth != 5 {
		t.Fatalf("expected depth 5 first, got %+v ok=%v", first, ok)
	}
	second, ok := q.Pop()
	if !ok || second.Depth != 3 {
		t.Fatalf("expected depth 3 second, got %+v", second)
	}
}

func TestQueuePopEmpty(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected ok=false on empty queue")
	}
}

func TestDonateSizeOneGuard(t *testing.T) {
	q := NewQueue()
	q.Push(Branch{Depth: 1})
	if _, ok := q.Donate(); ok {
		t.Fatalf("donating from a size-1 queue must be refused")
	}
	if q.Size() != 1 {
		t.Fatalf("refused donation must not remove the branch")
	}
}

func TestDonateTakesDeepest(t *testing.T) {
	q := NewQueue()
	q.Push(Branch{Depth: 1})
	q.Push(Branch{Depth: 9})

	donated, ok := q.Donate()
	if !ok || donated.Depth != 9 {
		t.Fatalf("expected deepest branch donated, got %+v ok=%v", donated, ok)
	}
	if q.Size() != 1 {
		t.Fatalf("expected 1 branch left, got %d", q.Size())
	}
}

func TestBoundsCacheGetPut(t *testing.T) {
	c := NewBoundsCache(16)
	if _, ok := c.Get(42); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Put(42, Bounds{Lb: 2, Ub: 4})
	got, ok := c.Get(42)
	if !ok || got.Lb != 2 || got.Ub != 4 {
		t.Fatalf("expected hit with stored bounds, got %+v ok=%v", got, ok)
	}
}
