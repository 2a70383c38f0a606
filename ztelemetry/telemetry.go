// Package ztelemetry wires the solver's progress into Prometheus
// metrics and OpenTelemetry spans, and keeps rolling latency/throughput
// statistics the way the pack's sigmaos tracer and netperf benchmarks
// do: a thread-safe jaeger exporter wrapper (jaeger's exporter is not
// safe for concurrent ExportSpans calls), a parent-based ratio sampler,
// and montanaflynn/stats percentiles computed over an in-memory window.
package ztelemetry

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thanhpk/randstr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.14.0"
	"go.opentelemetry.io/otel/trace"
)

// sampleRatio keeps span volume low on a solver that may push thousands
// of branches a second; most of the interesting signal is in the
// aggregate metrics, not in any one span.
const sampleRatio = 0.01

// threadSafeExporter works around the jaeger exporter's lack of
// internal locking (the same issue the pack's tracing package
// documents) by serializing ExportSpans/Shutdown behind a mutex.
type threadSafeExporter struct {
	mu       sync.Mutex
	exporter sdktrace.SpanExporter
}

func (t *threadSafeExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exporter.ExportSpans(ctx, spans)
}

func (t *threadSafeExporter) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exporter.Shutdown(ctx)
}

// Telemetry bundles the metrics, tracer, and rolling statistics one
// rank reports for the lifetime of a run. RunID is a short random tag
// (thanhpk/randstr) distinguishing concurrent runs in the same metrics
// namespace.
type Telemetry struct {
	RunID string

	tracer trace.Tracer
	tp     *sdktrace.TracerProvider

	bestUB      prometheus.Gauge
	idleWorkers prometheus.Gauge
	nodesTotal  prometheus.Counter
	stealTotal  prometheus.Counter

	nodesSeen atomic.Int64

	mu             sync.Mutex
	stealLatency   []float64
	nodeTimestamps []time.Time
}

// Options configures which optional sinks get started.
type Options struct {
	Rank           int
	JaegerEndpoint string // empty disables tracing
	MetricsAddr    string // empty disables the /metrics HTTP server
}

// New builds a Telemetry instance, registering Prometheus collectors
// under a per-run namespace and, if a Jaeger endpoint is configured,
// an OpenTelemetry tracer exporting to it.
func New(opts Options) (*Telemetry, error) {
	t := &Telemetry{RunID: randstr.Hex(6)}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	t.bestUB = factory.NewGauge(prometheus.GaugeOpts{
		Name:        "zykov_best_ub",
		Help:        "Current best known upper bound on the chromatic number.",
		ConstLabels: prometheus.Labels{"rank": itoa(opts.Rank), "run": t.RunID},
	})
	t.idleWorkers = factory.NewGauge(prometheus.GaugeOpts{
		Name:        "zykov_idle_workers",
		Help:        "Number of worker ranks this process believes are idle.",
		ConstLabels: prometheus.Labels{"rank": itoa(opts.Rank), "run": t.RunID},
	})
	t.nodesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name:        "zykov_nodes_explored_total",
		Help:        "Total branch-and-bound nodes popped and processed.",
		ConstLabels: prometheus.Labels{"rank": itoa(opts.Rank), "run": t.RunID},
	})
	t.stealTotal = factory.NewCounter(prometheus.CounterOpts{
		Name:        "zykov_steals_total",
		Help:        "Total successful work steals completed by this rank.",
		ConstLabels: prometheus.Labels{"rank": itoa(opts.Rank), "run": t.RunID},
	})

	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go http.ListenAndServe(opts.MetricsAddr, mux)
	}

	if opts.JaegerEndpoint != "" {
		unsafeExp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			return nil, err
		}
		exp := &threadSafeExporter{exporter: unsafeExp}
		sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))
		res, err := resource.New(context.Background(),
			resource.WithAttributes(semconv.ServiceNameKey.String("zykov-solve")))
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sampler),
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		t.tp = tp
		t.tracer = tp.Tracer("zykov-solve")
	}

	return t, nil
}

// Shutdown flushes and closes the tracer provider, if one was started.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tp == nil {
		return nil
	}
	return t.tp.Shutdown(ctx)
}

// StartSpan opens a span if tracing is enabled; when it isn't, it
// returns ctx unchanged and a no-op span so callers never need a nil
// check.
func (t *Telemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name)
}

// ObserveProgress updates the best-known-bound and idle-worker gauges.
func (t *Telemetry) ObserveProgress(bestUB uint16, idleWorkers int) {
	t.bestUB.Set(float64(bestUB))
	t.idleWorkers.Set(float64(idleWorkers))
}

// RecordNode increments the explored-node counter and timestamps it for
// the rolling nodes/sec estimate.
func (t *Telemetry) RecordNode() {
	t.nodesTotal.Inc()
	t.nodesSeen.Add(1)
	now := time.Now()
	t.mu.Lock()
	t.nodeTimestamps = append(t.nodeTimestamps, now)
	if len(t.nodeTimestamps) > 4096 {
		t.nodeTimestamps = t.nodeTimestamps[len(t.nodeTimestamps)-4096:]
	}
	t.mu.Unlock()
}

// RecordSteal records a completed steal's latency and increments the
// steal counter.
func (t *Telemetry) RecordSteal(latency time.Duration) {
	t.stealTotal.Inc()
	t.mu.Lock()
	t.stealLatency = append(t.stealLatency, float64(latency.Microseconds()))
	if len(t.stealLatency) > 4096 {
		t.stealLatency = t.stealLatency[len(t.stealLatency)-4096:]
	}
	t.mu.Unlock()
}

// StealLatencyPercentiles returns the p50/p95/p99 steal latency in
// microseconds over the retained window, computed with
// montanaflynn/stats the way the pack's netperf benchmarks summarize
// round-trip samples.
func (t *Telemetry) StealLatencyPercentiles() (p50, p95, p99 float64, err error) {
	t.mu.Lock()
	sample := append([]float64(nil), t.stealLatency...)
	t.mu.Unlock()
	if len(sample) == 0 {
		return 0, 0, 0, nil
	}
	if p50, err = stats.Percentile(sample, 50); err != nil {
		return 0, 0, 0, err
	}
	if p95, err = stats.Percentile(sample, 95); err != nil {
		return 0, 0, 0, err
	}
	if p99, err = stats.Percentile(sample, 99); err != nil {
		return 0, 0, 0, err
	}
	return p50, p95, p99, nil
}

// NodesPerSecond estimates throughput over the last second of recorded
// node timestamps.
func (t *Telemetry) NodesPerSecond() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-time.Second)
	count := 0
	for i := len(t.nodeTimestamps) - 1; i >= 0; i-- {
		if t.nodeTimestamps[i].Before(cutoff) {
			break
		}
		count++
	}
	return float64(count)
}

// Summary renders a human-readable one-line progress report using
// dustin/go-humanize for the node count, the way the pack's mr and
// seqwc commands report throughput.
func (t *Telemetry) Summary() string {
	p50, p95, p99, _ := t.StealLatencyPercentiles()
	return humanize.Comma(t.nodesSeen.Load()) + " nodes; steal p50/p95/p99 us: " +
		humanize.Commaf(p50) + "/" + humanize.Commaf(p95) + "/" + humanize.Commaf(p99)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
