// Package zfabric abstracts the point-to-point and collective messaging
// the solver needs across ranks: non-blocking send/receive with
// cooperative cancellation, any-source probing, and broadcast/all-gather
// collectives (SPEC_FULL.md section 4.9). It plays the role the original
// system gave to MPI, without binding to any specific wire protocol —
// package zfabric/localfab implements it over goroutines and channels
// for tests and single-process runs, zfabric/netfab over TCP for a real
// multi-process deployment.
package zfabric

import "context"

// AnySource matches a receive or probe against any sending rank,
// mirroring MPI_ANY_SOURCE.
const AnySource = -1

// SendHandle tracks an in-flight non-blocking send.
type SendHandle interface {
	// Test reports whether the send has completed. done is false while
	// still in flight; err is non-nil only on failure.
	Test() (done bool, err error)
	// Cancel aborts the send if still in flight. Safe to call after
	// completion.
	Cancel()
}

// RecvHandle tracks an in-flight non-blocking receive.
type RecvHandle interface {
	// Test reports whether a matching message has arrived. done is false
	// while still waiting; payload is valid only when done is true.
	Test() (done bool, payload []byte, err error)
	// Cancel aborts the receive if still waiting. Safe to call after
	// completion.
	Cancel()
}

// Fabric is the messaging substrate one rank uses to talk to its peers.
// Every blocking-looking call in the solver is built from ISend/IRecv
// plus a bounded poll loop that also checks the terminate flag — the
// cooperative-cancellation discipline carried over from the original
// OpenMP+MPI implementation's sendBranch/recvBranch helpers.
type Fabric interface {
	// Rank returns this process's rank in [0, Size()).
	Rank() int
	// Size returns the number of ranks participating in this run.
	Size() int

	// ISend starts a non-blocking send of payload, tagged tag, to dest.
	ISend(tag, dest int, payload []byte) SendHandle
	// IRecv starts a non-blocking receive for messages tagged tag from
	// source, or from any rank when source is AnySource.
	IRecv(tag, source int) RecvHandle
	// IProbe reports whether a message tagged tag is available from
	// source (or AnySource) without consuming it, and if so which rank
	// it came from.
	IProbe(tag, source int) (ok bool, from int)

	// Broadcast distributes data from root to every rank. Every rank
	// including root must call it. Returns the broadcast payload.
	Broadcast(ctx context.Context, root int, data []byte) ([]byte, error)
	// AllGather exchanges each rank's data with every other rank. Every
	// rank must call it. Returns one entry per rank, ordered by rank.
	AllGather(ctx context.Context, data []byte) ([][]byte, error)
}

// Message tags. Named after the original implementation's TAG_* constants
// so the two are easy to cross-reference.
const (
	TagWorkRequest     = 1
	TagWorkResponse    = 2
	TagSolutionFound   = 4
	TagIdle            = 5
	TagWorkStealing    = 6
	TagTimeoutSolution = 7
)
