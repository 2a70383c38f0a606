// Command zykov-solve runs one rank of the distributed Zykov
// branch-and-bound chromatic number solver, wiring together config
// loading, fabric selection, the reference oracles, and the optional
// observability sinks into a single process. The fabric kind and the
// peer list come from the config (fabric_kind, peers, or the
// ZYKOV_FABRIC_KIND and ZYKOV_PEERS overrides). Launching P copies of
// this binary with fabric_kind tcp, the same peers list and distinct
// --rank values forms one distributed run; fabric_kind local is only
// useful for quick single-process smoke tests (it ignores peers and
// runs --size ranks as goroutines of the one process).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/distsolve/zykov/zaffinity"
	"github.com/distsolve/zykov/zbranch"
	"github.com/distsolve/zykov/zcheckpoint"
	"github.com/distsolve/zykov/zconfig"
	"github.com/distsolve/zykov/zdashboard"
	"github.com/distsolve/zykov/zfabric"
	"github.com/distsolve/zykov/zfabric/localfab"
	"github.com/distsolve/zykov/zfabric/netfab"
	"github.com/distsolve/zykov/zgraph"
	"github.com/distsolve/zykov/zlog"
	"github.com/distsolve/zykov/zoracle"
	"github.com/distsolve/zykov/zsolve"
	"github.com/distsolve/zykov/ztelemetry"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML SolverConfig file")
		rank       = flag.Int("rank", 0, "this process's rank for the tcp fabric (the local fabric runs every rank itself)")
		size       = flag.Int("size", 1, "number of ranks for the local fabric (ignored by the tcp fabric, which uses len(peers))")
		graphPath  = flag.String("graph", "", "path to an edge-list file: a vertex count on the first line, then one \"u v\" pair per line")
		pin        = flag.Bool("pin", false, "best-effort pin this rank's worker thread (T3) to a CPU core; tcp fabric only, the other thread roles are not pinned")
	)
	flag.Parse()

	cfg, err := zconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zykov-solve: config:", err)
		os.Exit(1)
	}

	root, err := loadGraph(*graphPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zykov-solve: graph:", err)
		os.Exit(1)
	}

	log, err := zlog.New(*rank, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zykov-solve: logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.FabricKind == zconfig.FabricLocal {
		runLocal(cfg, root, log, *size)
		return
	}
	runDistributed(cfg, root, log, *rank, *pin)
}

// runLocal drives every configured rank as a goroutine of this one
// process over an in-memory fabric; useful for a quick smoke test on a
// laptop without standing up TCP peers.
func runLocal(cfg zconfig.SolverConfig, root zgraph.Graph, log *zlog.Logger, size int) {
	if size < 1 {
		size = 1
	}
	fabs := localfab.New(size)
	var wg sync.WaitGroup
	wg.Add(size)
	for i := 0; i < size; i++ {
		go func(fab zfabric.Fabric) {
			defer wg.Done()
			chi, optTime, err := zsolve.Solve(fab, root.Clone(), defaultOracles(), cfg, log.WithDepth(0))
			report(fab.Rank(), chi, optTime, err)
		}(fabs[i])
	}
	wg.Wait()
}

// runDistributed drives this single rank against TCP peers, with the
// full observability/checkpoint stack wired in.
func runDistributed(cfg zconfig.SolverConfig, root zgraph.Graph, log *zlog.Logger, rank int, pin bool) {
	if pin {
		if zaffinity.PinCurrentThread(rank, zaffinity.RoleWorker) {
			defer zaffinity.UnpinCurrentThread()
		}
	}

	fab := netfab.New(rank, cfg.Peers)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := fab.Dial(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "zykov-solve: dial peers:", err)
		os.Exit(1)
	}
	cancel()

	telemetry, err := ztelemetry.New(ztelemetry.Options{
		Rank:           rank,
		JaegerEndpoint: cfg.JaegerEndpoint,
		MetricsAddr:    cfg.MetricsAddr,
	})
	if err != nil {
		log.Warn("telemetry init failed, continuing without it", zap.Error(err))
		telemetry = nil
	}

	var dash *zdashboard.Dashboard
	if cfg.DashboardAddr != "" {
		dash = zdashboard.New(rank, cfg.RedisAddr)
		relayCtx, relayCancel := context.WithCancel(context.Background())
		defer relayCancel()
		go dash.RunRelay(relayCtx)
		go func() {
			_ = http.ListenAndServe(cfg.DashboardAddr, dash.Handler())
		}()
	}

	runID := "run"
	if telemetry != nil {
		runID = telemetry.RunID
	}
	checkpoint, err := zcheckpoint.New(cfg.EtcdEndpoints, runID)
	if err != nil {
		log.Warn("checkpoint init failed, continuing without it", zap.Error(err))
		checkpoint = nil
	}
	defer checkpoint.Close()

	// A resumed process re-joins here, before Solve begins, never
	// mid-search (SPEC_FULL.md section 4.11).
	var resume *zbranch.Branch
	if checkpoint != nil {
		loadCtx, loadCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if b, ok, lerr := checkpoint.LoadBest(loadCtx, rank); lerr != nil {
			log.Warn("checkpoint load failed, starting fresh", zap.Error(lerr))
		} else if ok {
			resume = &b
			log.Info("resuming from checkpoint", zap.Uint16("ub", b.Ub), zap.Int("depth", b.Depth))
		}
		loadCancel()
		if err := checkpoint.SaveRunMeta(context.Background(), len(cfg.Peers)); err != nil {
			log.Warn("checkpoint run metadata write failed", zap.Error(err))
		}
	}

	sinks := zsolve.Sinks{Telemetry: telemetry, Dashboard: dash, Checkpoint: checkpoint, Resume: resume}
	chi, optTime, err := zsolve.SolveWithSinks(fab, root, defaultOracles(), cfg, log, sinks)
	report(rank, chi, optTime, err)

	if telemetry != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}
}

func defaultOracles() zsolve.Oracles {
	return zsolve.Oracles{
		Clique:   zoracle.NewGreedyClique(8),
		Colorer:  zoracle.GreedyColorer{},
		Brancher: zoracle.MaxDegreeBrancher{},
	}
}

func report(rank int, chi uint16, optimumTime float64, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "rank %d: solve error: %v\n", rank, err)
		return
	}
	if optimumTime < 0 {
		fmt.Printf("rank %d: timed out; best upper bound found: %d\n", rank, chi)
		return
	}
	fmt.Printf("rank %d: chi = %d (found at %.3fs)\n", rank, chi, optimumTime)
}

// loadGraph reads a vertex count followed by "u v" edge pairs, one per
// line. Deliberately not a DIMACS reader: spec.md's Non-goals exclude
// DIMACS input parsing from this repository's scope, but the CLI still
// needs some way to hand it a graph.
func loadGraph(path string) (*zgraph.AdjacencyGraph, error) {
	if path == "" {
		return zgraph.NewAdjacencyGraph(0), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	n := 0
	var edges [][2]int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if lineNo == 1 || n == 0 {
			v, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: vertex count: %w", lineNo, err)
			}
			n = v
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"u v\"", lineNo)
		}
		u, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		edges = append(edges, [2]int{u, v})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return zgraph.NewAdjacencyGraphFromEdges(n, edges), nil
}
