// Package localfab implements zfabric.Fabric in-process over goroutines
// and channels, so a full multi-rank run can be driven from a single
// test binary without any real networking. The multi-rank solver tests
// in package zsolve, including the P=1 boundary case, use this fabric.
package localfab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/distsolve/zykov/zfabric"
)

// collectiveStallTimeout bounds how long Broadcast/AllGather will wait
// on a peer that never shows up for the round — a non-root rank whose
// root never makes that round's Broadcast call, or an AllGather round
// some rank never joins, would otherwise leave a caller parked on a
// channel nobody will ever write to, even though its own ctx was never
// cancelled. This is a backstop on top of ctx, not a
// replacement for it: a caller that wires a cancellable ctx still
// unblocks sooner via ctx.Done().
var collectiveStallTimeout = 30 * time.Second

type envelope struct {
	tag     int
	from    int
	payload []byte
}

// bus is the shared state for one simulated run: size ranks, each with
// one inbox per tag it might receive.
type bus struct {
	mu    sync.Mutex
	ranks []*rankState

	bcastMu  sync.Mutex
	bcastSeq []int // bcastSeq[r] counts the Broadcast calls rank r has made
	bcastSub map[int]chan []byte

	gatherMu  sync.Mutex
	gatherSeq int
	gather    map[int]*gatherState
}

type gatherState struct {
	data  [][]byte
	count int
	done  chan struct{}
}

type rankState struct {
	mu     sync.Mutex
	inbox  []envelope
	notify chan struct{}
}

func newRankState() *rankState {
	return &rankState{notify: make(chan struct{}, 1)}
}

func (r *rankState) push(e envelope) {
	r.mu.Lock()
	r.inbox = append(r.inbox, e)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// NewBus allocates the shared state for a size-rank simulated fabric.
// Call Fabric(rank) once per rank to get that rank's view of it.
func NewBus(size int) *bus {
	b := &bus{
		ranks:    make([]*rankState, size),
		bcastSeq: make([]int, size),
		bcastSub: make(map[int]chan []byte),
		gather:   make(map[int]*gatherState),
	}
	for i := range b.ranks {
		b.ranks[i] = newRankState()
	}
	return b
}

// Fabric returns the zfabric.Fabric view of b for the given rank.
func Fabric(b *bus, rank int) zfabric.Fabric {
	return &localFabric{bus: b, rank: rank}
}

// New is a convenience constructor building size fabrics sharing one bus,
// the common case in tests that spin up every rank in one process.
func New(size int) []zfabric.Fabric {
	b := NewBus(size)
	out := make([]zfabric.Fabric, size)
	for i := 0; i < size; i++ {
		out[i] = Fabric(b, i)
	}
	return out
}

type localFabric struct {
	bus  *bus
	rank int
}

func (f *localFabric) Rank() int { return f.rank }
func (f *localFabric) Size() int { return len(f.bus.ranks) }

type sendHandle struct{}

func (sendHandle) Test() (bool, error) { return true, nil }
func (sendHandle) Cancel()             {}

func (f *localFabric) ISend(tag, dest int, payload []byte) zfabric.SendHandle {
	cp := append([]byte(nil), payload...)
	f.bus.ranks[dest].push(envelope{tag: tag, from: f.rank, payload: cp})
	return sendHandle{}
}

type recvHandle struct {
	mu        sync.Mutex
	fabric    *localFabric
	tag       int
	source    int
	done      bool
	payload   []byte
	cancelled bool
}

func (h *recvHandle) Test() (bool, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return true, h.payload, nil
	}
	if h.cancelled {
		return true, nil, nil
	}
	r := h.fabric.bus.ranks[h.fabric.rank]
	r.mu.Lock()
	for i, e := range r.inbox {
		if e.tag != h.tag {
			continue
		}
		if h.source != zfabric.AnySource && e.from != h.source {
			continue
		}
		r.inbox = append(r.inbox[:i], r.inbox[i+1:]...)
		h.done = true
		h.payload = e.payload
		break
	}
	r.mu.Unlock()
	return h.done, h.payload, nil
}

func (h *recvHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.done {
		h.cancelled = true
	}
}

func (f *localFabric) IRecv(tag, source int) zfabric.RecvHandle {
	return &recvHandle{fabric: f, tag: tag, source: source}
}

func (f *localFabric) IProbe(tag, source int) (bool, int) {
	r := f.bus.ranks[f.rank]
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.inbox {
		if e.tag != tag {
			continue
		}
		if source != zfabric.AnySource && e.from != source {
			continue
		}
		return true, e.from
	}
	return false, 0
}

var errCancelledCtx = errors.New("zfabric/localfab: context cancelled")
var errCollectiveStalled = errors.New("zfabric/localfab: collective stalled past deadline")

func (f *localFabric) Broadcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	size := len(f.bus.ranks)
	f.bus.bcastMu.Lock()
	seq := f.bus.bcastSeq[f.rank]
	f.bus.bcastSeq[f.rank]++
	ch, ok := f.bus.bcastSub[seq]
	if !ok {
		ch = make(chan []byte, size)
		f.bus.bcastSub[seq] = ch
	}
	f.bus.bcastMu.Unlock()

	if f.rank == root {
		cp := append([]byte(nil), data...)
		for i := 0; i < size; i++ {
			ch <- cp
		}
	}
	timer := time.NewTimer(collectiveStallTimeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return nil, errCancelledCtx
	case <-timer.C:
		return nil, errCollectiveStalled
	}
}

func (f *localFabric) AllGather(ctx context.Context, data []byte) ([][]byte, error) {
	size := len(f.bus.ranks)
	f.bus.gatherMu.Lock()
	seq := f.bus.gatherSeq
	g, ok := f.bus.gather[seq]
	if !ok {
		g = &gatherState{data: make([][]byte, size), done: make(chan struct{})}
		f.bus.gather[seq] = g
	}
	f.bus.gatherMu.Unlock()

	g.data[f.rank] = append([]byte(nil), data...)
	f.bus.gatherMu.Lock()
	g.count++
	last := g.count == size
	if last {
		f.bus.gatherSeq++
		delete(f.bus.gather, seq)
	}
	f.bus.gatherMu.Unlock()
	if last {
		close(g.done)
	}

	timer := time.NewTimer(collectiveStallTimeout)
	defer timer.Stop()
	select {
	case <-g.done:
		return g.data, nil
	case <-ctx.Done():
		return nil, errCancelledCtx
	case <-timer.C:
		return nil, errCollectiveStalled
	}
}
