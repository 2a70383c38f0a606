package zsolve

import (
	"context"
	"time"

	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zcheckpoint"
	"github.com/distsolve/zykov/zdashboard"
	"github.com/distsolve/zykov/zlog"
	"github.com/distsolve/zykov/ztelemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sinks bundles the optional, best-effort observability and
// persistence fan-outs of SPEC_FULL.md section 4.10-4.11: a Prometheus
// /OpenTelemetry telemetry sink, a WebSocket/Redis progress dashboard,
// and an etcd checkpoint store. Every field may be nil; a nil Sinks
// value (the zero value) disables all of them. None of these
// participate in correctness — a failing or slow sink is dropped, never
// awaited by the search threads.
//
// Resume, if set, is a Branch checkpointed by a prior process on this
// same rank (SPEC_FULL.md section 4.11): the caller loads it before
// Solve begins and SolveWithSinks folds it into the initial queue
// state, the same way a fresh join sees the root problem.
type Sinks struct {
	Telemetry  *ztelemetry.Telemetry
	Dashboard  *zdashboard.Dashboard
	Checkpoint *zcheckpoint.Store
	Resume     *zbranch.Branch
}

// startSpan opens a span on the configured tracer, or returns ctx
// unchanged with a no-op span when telemetry isn't wired in.
func (s Sinks) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.Telemetry == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.Telemetry.StartSpan(ctx, name)
}

// recordSteal best-effort records one completed steal's latency.
func (s Sinks) recordSteal(latency time.Duration) {
	if s.Telemetry != nil {
		s.Telemetry.RecordSteal(latency)
	}
}

// logSummary emits T1's per-cycle steal-latency percentiles and
// throughput (SPEC_FULL.md section 10) to log at info level. A no-op
// when telemetry isn't wired in.
func (s Sinks) logSummary(log *zlog.Logger) {
	if s.Telemetry == nil || log == nil {
		return
	}
	p50, p95, p99, err := s.Telemetry.StealLatencyPercentiles()
	if err != nil {
		return
	}
	log.Info("telemetry summary",
		zap.Float64("steal_p50_us", p50),
		zap.Float64("steal_p95_us", p95),
		zap.Float64("steal_p99_us", p99),
		zap.Float64("nodes_per_sec", s.Telemetry.NodesPerSecond()),
	)
}

// publishProgress reports the current BestUB and idle-worker count to
// every configured sink. Called from T1's gather cycle (spec.md section
// 4.4), since that's the one place a fresh fleet-wide BestUB is
// available without an extra round of communication.
func (s Sinks) publishProgress(rank, queueSize int, bestUB uint16, idleWorkers int) {
	if s.Telemetry != nil {
		s.Telemetry.ObserveProgress(bestUB, idleWorkers)
	}
	if s.Dashboard != nil {
		go s.Dashboard.Publish(zdashboard.ProgressEvent{
			Rank:      rank,
			BestUB:    bestUB,
			QueueSize: queueSize,
			Idle:      idleWorkers > 0,
		})
	}
}

// checkpointBest best-effort persists b to the configured checkpoint
// store. Errors are swallowed: checkpointing is an enrichment, not a
// correctness dependency (SPEC_FULL.md section 4.11).
func (s Sinks) checkpointBest(ctx context.Context, rank int, b zbranch.Branch) {
	if s.Checkpoint == nil {
		return
	}
	go func() { _ = s.Checkpoint.SaveBest(ctx, rank, b) }()
}

// recordNode best-effort records one explored branch for throughput
// statistics.
func (s Sinks) recordNode() {
	if s.Telemetry != nil {
		s.Telemetry.RecordNode()
	}
}
