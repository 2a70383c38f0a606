// Package netfab implements zfabric.Fabric over plain TCP connections
// for a real multi-process deployment: every rank dials every rank with
// a higher index and accepts from every rank with a lower index, giving
// a full mesh of Size*(Size-1)/2 connections. Each connection carries a
// length-prefixed frame (4-byte tag, 4-byte length, payload) and is read
// by one dedicated goroutine that demultiplexes into per-tag inboxes,
// the same shape localfab gives its in-process bus.
package netfab

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/distsolve/zykov/zfabric"
)

type envelope struct {
	tag     int
	from    int
	payload []byte
}

// Fabric is a TCP-backed zfabric.Fabric. Dial must be called once before
// use; it blocks until every rank has connected to every other rank.
type Fabric struct {
	rank  int
	peers []string // peers[i] is host:port for rank i; peers[rank] is this rank's listen address

	mu    sync.Mutex
	inbox map[int][]envelope // by tag
	conns []net.Conn         // conns[i] is the connection to rank i (nil for self)

	notifyMu sync.Mutex
	notify   map[int]chan struct{}

	bcastMu  sync.Mutex
	bcastSeq int
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

// New builds an unconnected Fabric. peers[i] must be the "host:port"
// listen address of rank i, including this process's own rank.
func New(rank int, peers []string) *Fabric {
	return &Fabric{
		rank:     rank,
		peers:    peers,
		inbox:    make(map[int][]envelope),
		conns:    make([]net.Conn, len(peers)),
		notify:   make(map[int]chan struct{}),
		bcastSub: make(map[int]chan []byte),
		gather:   make(map[int]*gatherState),
	}
}

// Dial establishes the full mesh: listens on this rank's own address,
// dials every higher-indexed rank, and accepts from every lower-indexed
// rank until all Size-1 peer connections are up. It returns an error if
// any of them could not be established.
func (f *Fabric) Dial(ctx context.Context) error {
	size := len(f.peers)
	ln, err := net.Listen("tcp", f.peers[f.rank])
	if err != nil {
		return fmt.Errorf("netfab: listen: %w", err)
	}
	defer ln.Close()

	var wg sync.WaitGroup
	accepted := make(chan net.Conn, size)
	go func() {
		for i := 0; i < f.rank; i++ {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()

	for i := f.rank + 1; i < size; i++ {
		wg.Add(1)
		go func(dest int) {
			defer wg.Done()
			var conn net.Conn
			for {
				c, err := net.Dial("tcp", f.peers[dest])
				if err == nil {
					conn = c
					break
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			if err := binary.Write(conn, binary.LittleEndian, int32(f.rank)); err != nil {
				return
			}
			f.mu.Lock()
			f.conns[dest] = conn
			f.mu.Unlock()
			go f.readLoop(dest, conn)
		}(i)
	}

	for i := 0; i < f.rank; i++ {
		select {
		case c := <-accepted:
			var peerRank int32
			if err := binary.Read(c, binary.LittleEndian, &peerRank); err != nil {
				continue
			}
			f.mu.Lock()
			f.conns[peerRank] = c
			f.mu.Unlock()
			go f.readLoop(int(peerRank), c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	wg.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < size; i++ {
		if i != f.rank && f.conns[i] == nil {
			return fmt.Errorf("netfab: no connection to rank %d", i)
		}
	}
	return nil
}

func (f *Fabric) readLoop(from int, conn net.Conn) {
	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		tag := int(int32(binary.LittleEndian.Uint32(hdr[0:4])))
		n := binary.LittleEndian.Uint32(hdr[4:8])
		payload := make([]byte, n)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		f.mu.Lock()
		f.inbox[tag] = append(f.inbox[tag], envelope{tag: tag, from: from, payload: payload})
		f.mu.Unlock()
		f.wake(tag)
	}
}

func (f *Fabric) wake(tag int) {
	f.notifyMu.Lock()
	ch, ok := f.notify[tag]
	f.notifyMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (f *Fabric) Rank() int { return f.rank }
func (f *Fabric) Size() int { return len(f.peers) }

type sendHandle struct {
	done chan struct{}
	err  error
}

func (h *sendHandle) Test() (bool, error) {
	select {
	case <-h.done:
		return true, h.err
	default:
		return false, nil
	}
}

func (h *sendHandle) Cancel() {}

func (f *Fabric) ISend(tag, dest int, payload []byte) zfabric.SendHandle {
	h := &sendHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		f.mu.Lock()
		conn := f.conns[dest]
		f.mu.Unlock()
		if conn == nil {
			h.err = fmt.Errorf("netfab: no connection to rank %d", dest)
			return
		}
		hdr := make([]byte, 8)
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(tag))
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
		if _, err := conn.Write(hdr); err != nil {
			h.err = err
			return
		}
		if _, err := conn.Write(payload); err != nil {
			h.err = err
		}
	}()
	return h
}

type recvHandle struct {
	mu        sync.Mutex
	fabric    *Fabric
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
	f := h.fabric
	f.mu.Lock()
	list := f.inbox[h.tag]
	for i, e := range list {
		if h.source != zfabric.AnySource && e.from != h.source {
			continue
		}
		f.inbox[h.tag] = append(list[:i], list[i+1:]...)
		h.done = true
		h.payload = e.payload
		break
	}
	f.mu.Unlock()
	return h.done, h.payload, nil
}

func (h *recvHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.done {
		h.cancelled = true
	}
}

func (f *Fabric) IRecv(tag, source int) zfabric.RecvHandle {
	f.notifyMu.Lock()
	if _, ok := f.notify[tag]; !ok {
		f.notify[tag] = make(chan struct{}, 1)
	}
	f.notifyMu.Unlock()
	return &recvHandle{fabric: f, tag: tag, source: source}
}

func (f *Fabric) IProbe(tag, source int) (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.inbox[tag] {
		if source != zfabric.AnySource && e.from != source {
			continue
		}
		return true, e.from
	}
	return false, 0
}

var errCancelledCtx = errors.New("netfab: context cancelled")

// Broadcast and AllGather are implemented as rank-0-rooted fan-out and
// fan-in over the same point-to-point connections, using dedicated tags
// so they never collide with the solver's own TagWork* traffic.
const (
	tagBroadcast   = -100
	tagGather      = -101
	tagGatherReply = -102
)

func (f *Fabric) Broadcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	if f.rank == root {
		var result []byte = data
		for i := 0; i < f.Size(); i++ {
			if i == root {
				continue
			}
			f.ISend(tagBroadcast, i, data)
		}
		return result, nil
	}
	h := f.IRecv(tagBroadcast, root)
	for {
		done, payload, err := h.Test()
		if err != nil {
			return nil, err
		}
		if done {
			return payload, nil
		}
		select {
		case <-ctx.Done():
			h.Cancel()
			return nil, errCancelledCtx
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *Fabric) AllGather(ctx context.Context, data []byte) ([][]byte, error) {
	size := f.Size()
	root := 0
	if f.rank == root {
		out := make([][]byte, size)
		out[root] = data
		received := 1
		handles := make(map[int]zfabric.RecvHandle)
		for i := 0; i < size; i++ {
			if i != root {
				handles[i] = f.IRecv(tagGather, i)
			}
		}
		for received < size {
			for i, h := range handles {
				done, payload, err := h.Test()
				if err != nil {
					return nil, err
				}
				if done {
					out[i] = payload
					delete(handles, i)
					received++
				}
			}
			if received >= size {
				break
			}
			select {
			case <-ctx.Done():
				return nil, errCancelledCtx
			case <-time.After(time.Millisecond):
			}
		}
		for i := 0; i < size; i++ {
			if i != root {
				f.ISend(tagGatherReply, i, flatten(out))
			}
		}
		return out, nil
	}

	f.ISend(tagGather, root, data)
	h := f.IRecv(tagGatherReply, root)
	for {
		done, payload, err := h.Test()
		if err != nil {
			return nil, err
		}
		if done {
			return unflatten(payload, size)
		}
		select {
		case <-ctx.Done():
			h.Cancel()
			return nil, errCancelledCtx
		case <-time.After(time.Millisecond):
		}
	}
}

// flatten/unflatten pack a [][]byte as a count-prefixed sequence of
// length-prefixed chunks, for shipping the gathered set back out to
// non-root ranks in a single message.
func flatten(chunks [][]byte) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(chunks)))
	for _, c := range chunks {
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(c)))
		buf = append(buf, lenBuf...)
		buf = append(buf, c...)
	}
	return buf
}

func unflatten(data []byte, expect int) ([][]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("netfab: truncated gather payload")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	out := make([][]byte, 0, n)
	off := 4
	for i := 0; i < n; i++ {
		if off+4 > len(data) {
			return nil, fmt.Errorf("netfab: truncated gather payload")
		}
		l := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if off+l > len(data) {
			return nil, fmt.Errorf("netfab: truncated gather payload")
		}
		out = append(out, data[off:off+l])
		off += l
	}
	return out, nil
}
