// Package suite runs the full RFC 2544 measurement sequence against one
// target: connectivity check, zero-loss throughput search, latency
// trains, the frame-loss grid, back-to-back bursts, and the FRER
// dual-path comparison.
package suite

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/NodePath81/tsnperf/internal/config"
	"github.com/NodePath81/tsnperf/internal/control"
	"github.com/NodePath81/tsnperf/internal/frer"
	"github.com/NodePath81/tsnperf/internal/geo"
	"github.com/NodePath81/tsnperf/internal/netinfo"
	"github.com/NodePath81/tsnperf/internal/probe"
	"github.com/NodePath81/tsnperf/internal/report"
	"github.com/NodePath81/tsnperf/internal/search"
	"github.com/NodePath81/tsnperf/internal/sequence"
	"github.com/NodePath81/tsnperf/internal/stats"
	"github.com/NodePath81/tsnperf/internal/util"
)

// LoadGenerator produces offered load for throughput, frame-loss, and
// burst trials. Satisfied by probe.IperfRunner.
type LoadGenerator interface {
	UDPTrial(ctx context.Context, rateMbps float64, frameSize int, duration time.Duration) (probe.LoadTrial, error)
	RateProbe(frameSize int, duration time.Duration) search.ProbeFunc
	BurstProbe(frameSize int, lineRateMbps float64) search.BurstProbeFunc
}

// SockperfGenerator runs the optional sockperf latency stages.
// Satisfied by probe.SockperfRunner.
type SockperfGenerator interface {
	PingPong(ctx context.Context, msgSize int, duration time.Duration) (probe.SockperfReport, error)
	UnderLoad(ctx context.Context, ratePerSec, msgSize int, duration time.Duration) (probe.SockperfReport, error)
}

// PingFunc measures a round-trip latency series. Swapped out in tests
// where raw sockets are unavailable.
type PingFunc func(ctx context.Context, target net.IP, cfg probe.PingConfig, logger util.Logger) ([]float64, error)

type Runner struct {
	cfg     config.Config
	logger  util.Logger
	tracker *control.Tracker

	load     LoadGenerator
	ping     PingFunc
	sockperf SockperfGenerator
}

// New builds a runner from config. tracker may be nil.
func New(cfg config.Config, logger util.Logger, tracker *control.Tracker) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		tracker: tracker,
		load: &probe.IperfRunner{
			Target:  cfg.TargetIP,
			Port:    cfg.Iperf.Port,
			BinPath: cfg.Iperf.Bin,
			Logger:  logger,
		},
		ping: probe.PingSeries,
	}
	if cfg.Sockperf.IsEnabled() {
		r.sockperf = &probe.SockperfRunner{
			Target:  cfg.TargetIP,
			Port:    cfg.Sockperf.Port,
			BinPath: cfg.Sockperf.Bin,
			Logger:  logger,
		}
	}
	return r
}

// Run executes every enabled stage. Stage failures are recorded in the
// results and do not abort the remaining stages; only context
// cancellation and an unreachable target cut the run short.
func (r *Runner) Run(ctx context.Context, runID string) (*report.Results, error) {
	results := &report.Results{
		TestInfo: report.TestInfo{
			RunID:         runID,
			Timestamp:     time.Now(),
			TargetIP:      r.cfg.TargetIP,
			Interface:     r.cfg.Interface,
			FrameSizes:    r.cfg.FrameSizes,
			LoadPercents:  r.cfg.FrameLoss.RatePercents,
			TrialDuration: r.cfg.Throughput.TrialDuration.Duration().Seconds(),
			LossThreshold: r.cfg.Throughput.LossThreshold,
		},
	}
	r.annotate(results)

	r.publish(runID, "connectivity", "", 0, 0, 1)
	if !r.checkConnectivity(ctx, results) {
		r.logger.Error("target unreachable, skipping measurement stages", "target", r.cfg.TargetIP)
		return results, nil
	}

	if err := r.runThroughput(ctx, runID, results); err != nil {
		return results, err
	}
	if err := r.runLatency(ctx, runID, results); err != nil {
		return results, err
	}
	if r.sockperf != nil {
		if err := r.runSockperf(ctx, runID, results); err != nil {
			return results, err
		}
	}
	if err := r.runFrameLoss(ctx, runID, results); err != nil {
		return results, err
	}
	if err := r.runBackToBack(ctx, runID, results); err != nil {
		return results, err
	}
	if r.cfg.FRER.IsEnabled() {
		r.publish(runID, "frer", "", 0, 0, 1)
		r.runFRER(results)
	}
	r.publish(runID, "done", "", 0, 1, 1)
	return results, nil
}

// annotate fills in link and location metadata. Both are best effort.
func (r *Runner) annotate(results *report.Results) {
	if r.cfg.Interface != "" {
		link, err := netinfo.Describe(r.cfg.Interface)
		if err != nil {
			r.logger.Warn("interface inspection failed", "interface", r.cfg.Interface, "error", err)
		}
		results.TestInfo.Link = link
	}
	resolver, err := geo.Open(r.cfg.GeoIP.DBPath)
	if err != nil {
		r.logger.Warn("geoip disabled", "error", err)
		return
	}
	defer resolver.Close()
	loc, err := resolver.Lookup(net.ParseIP(r.cfg.TargetIP))
	if err != nil {
		r.logger.Warn("geoip lookup failed", "error", err)
		return
	}
	results.TestInfo.Location = loc
}

func (r *Runner) checkConnectivity(ctx context.Context, results *report.Results) bool {
	pingCfg := probe.PingConfig{
		Count:       3,
		PayloadSize: probe.PayloadForFrameSize(64),
		Interval:    r.cfg.Latency.Interval.Duration(),
		Timeout:     r.cfg.Latency.Timeout.Duration(),
	}
	samples, err := r.ping(ctx, net.ParseIP(r.cfg.TargetIP), pingCfg, r.logger)
	if err != nil {
		r.recordError(results, fmt.Errorf("connectivity probe: %w", err))
	}
	if len(samples) > 0 {
		results.Connectivity.Reachable = true
		results.Connectivity.RTTMS = samples[0]
	}

	if port := r.cfg.Iperf.Port; port > 0 {
		if ms, info, ok := probe.ConnectLatency(ctx, r.cfg.TargetIP, port, r.cfg.Latency.Timeout.Duration()); ok {
			results.Connectivity.Reachable = true
			results.Connectivity.TCPConnectMS = ms
			if info.RTT > 0 {
				results.Connectivity.KernelRTTMS = float64(info.RTT) / float64(time.Millisecond)
			}
		}
	}
	return results.Connectivity.Reachable
}

func (r *Runner) runThroughput(ctx context.Context, runID string, results *report.Results) error {
	low, err := r.cfg.Throughput.RateLowMbps()
	if err != nil {
		return err
	}
	high, err := r.cfg.Throughput.RateHighMbps()
	if err != nil {
		return err
	}
	opts := search.RateSearchOptions{
		Low:           low,
		High:          high,
		Tolerance:     r.cfg.Throughput.Tolerance,
		LossThreshold: r.cfg.Throughput.LossThreshold,
		MaxIterations: r.cfg.Throughput.MaxIterations,
	}
	duration := r.cfg.Throughput.TrialDuration.Duration()

	results.Throughput = make(map[int]search.RateSearchResult, len(r.cfg.FrameSizes))
	for i, size := range r.cfg.FrameSizes {
		r.publish(runID, "throughput", "", size, i, len(r.cfg.FrameSizes))
		res, err := search.FindMaxRate(ctx, r.load.RateProbe(size, duration), opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.recordError(results, fmt.Errorf("throughput search at %d bytes: %w", size, err))
			continue
		}
		r.logger.Info("throughput search done",
			"frame_size", size,
			"best_rate_mbps", res.BestRate,
			"iterations", res.Iterations,
			"converged", res.Converged)
		results.Throughput[size] = res
	}
	return nil
}

func (r *Runner) runLatency(ctx context.Context, runID string, results *report.Results) error {
	target := net.ParseIP(r.cfg.TargetIP)
	results.Latency = make(map[int]stats.Stats, len(r.cfg.FrameSizes))
	for i, size := range r.cfg.FrameSizes {
		r.publish(runID, "latency", "", size, i, len(r.cfg.FrameSizes))
		pingCfg := probe.PingConfig{
			Count:       r.cfg.Latency.Count,
			PayloadSize: probe.PayloadForFrameSize(size),
			Interval:    r.cfg.Latency.Interval.Duration(),
			Timeout:     r.cfg.Latency.Timeout.Duration(),
		}
		samples, err := r.ping(ctx, target, pingCfg, r.logger)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.recordError(results, fmt.Errorf("latency train at %d bytes: %w", size, err))
			continue
		}
		st, err := stats.Compute(samples)
		if err != nil {
			r.recordError(results, fmt.Errorf("latency stats at %d bytes: %w", size, err))
			continue
		}
		r.logger.Info("latency train done", "frame_size", size, "avg_ms", st.Avg, "p99_ms", st.P99)
		results.Latency[size] = st
	}
	return nil
}

// runSockperf runs the ping-pong trials per message size and then the
// under-load trials per message rate.
func (r *Runner) runSockperf(ctx context.Context, runID string, results *report.Results) error {
	duration := r.cfg.Sockperf.Duration.Duration()

	results.PingPongLatency = make(map[int]probe.SockperfReport, len(r.cfg.Sockperf.MsgSizes))
	for i, size := range r.cfg.Sockperf.MsgSizes {
		r.publish(runID, "sockperf_pingpong", "", size, i, len(r.cfg.Sockperf.MsgSizes))
		rep, err := r.sockperf.PingPong(ctx, size, duration)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.recordError(results, fmt.Errorf("sockperf ping-pong at %d bytes: %w", size, err))
			continue
		}
		r.logger.Info("sockperf ping-pong done", "msg_size", size, "avg_ms", rep.AvgMS, "p99_ms", rep.P99MS)
		results.PingPongLatency[size] = rep
	}

	results.UnderLoadLatency = make(map[int]probe.SockperfReport, len(r.cfg.Sockperf.Rates))
	for i, rate := range r.cfg.Sockperf.Rates {
		r.publish(runID, "sockperf_underload", "", 0, i, len(r.cfg.Sockperf.Rates))
		rep, err := r.sockperf.UnderLoad(ctx, rate, r.cfg.Sockperf.UnderLoadMsgSize, duration)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.recordError(results, fmt.Errorf("sockperf under-load at %d msg/s: %w", rate, err))
			continue
		}
		r.logger.Info("sockperf under-load done", "rate", rate, "avg_ms", rep.AvgMS, "p99_ms", rep.P99MS)
		results.UnderLoadLatency[rate] = rep
	}
	return nil
}

func (r *Runner) runFrameLoss(ctx context.Context, runID string, results *report.Results) error {
	duration := r.cfg.FrameLoss.TrialDuration.Duration()
	results.FrameLoss = make(map[int]map[string]probe.LoadTrial, len(r.cfg.FrameSizes))
	for i, size := range r.cfg.FrameSizes {
		base, ok := results.Throughput[size]
		if !ok || base.BestRate <= 0 {
			continue
		}
		r.publish(runID, "frame_loss", "", size, i, len(r.cfg.FrameSizes))
		grid := make(map[string]probe.LoadTrial, len(r.cfg.FrameLoss.RatePercents))
		for _, pct := range r.cfg.FrameLoss.RatePercents {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rate := base.BestRate * pct / 100
			trial, err := r.load.UDPTrial(ctx, rate, size, duration)
			if err != nil {
				r.recordError(results, fmt.Errorf("frame loss at %d bytes %g%%: %w", size, pct, err))
				continue
			}
			grid[report.LoadKey(pct)] = trial
		}
		results.FrameLoss[size] = grid
	}
	return nil
}

func (r *Runner) runBackToBack(ctx context.Context, runID string, results *report.Results) error {
	lineRate, err := r.cfg.Burst.LineRateMbps()
	if err != nil {
		return err
	}
	opts := search.BurstSearchOptions{
		LossThreshold: r.cfg.Burst.LossThreshold,
		Trials:        r.cfg.Burst.Trials,
	}
	results.BackToBack = make(map[int]search.BurstResult, len(r.cfg.FrameSizes))
	for i, size := range r.cfg.FrameSizes {
		r.publish(runID, "back_to_back", "", size, i, len(r.cfg.FrameSizes))
		res, err := search.FindMaxBurst(ctx, r.cfg.Burst.Sizes, r.load.BurstProbe(size, lineRate), opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.recordError(results, fmt.Errorf("burst search at %d bytes: %w", size, err))
			continue
		}
		res.FrameSize = size
		r.logger.Info("burst search done", "frame_size", size, "max_burst", res.MaxBurstNoLoss)
		results.BackToBack[size] = res
	}
	return nil
}

// runFRER compares a simulated dual-path deployment against its better
// half and runs the R-TAG sequence analysis over the merged arrivals.
func (r *Runner) runFRER(results *report.Results) {
	simCfg := frer.DefaultSimConfig()
	simCfg.Samples = r.cfg.FRER.Samples
	simCfg.Seed = r.cfg.FRER.Seed

	path1, path2 := frer.Simulate(simCfg)
	cmp, err := frer.Compare(path1, path2)
	if err != nil {
		r.recordError(results, fmt.Errorf("frer comparison: %w", err))
		return
	}
	results.FRER = &cmp

	analysis := sequence.Analyze(mergeArrivals(path1, path2))
	results.Sequence = &analysis
	r.logger.Info("frer analysis done",
		"improvement_p99_pct", cmp.ImprovementP99Pct,
		"elimination_efficiency", analysis.EliminationEfficiency)
}

// frameSpacingMS is the simulated send interval. Small against the path
// latencies, so late copies overtake their successors now and then.
const frameSpacingMS = 0.5

// mergeArrivals interleaves the two replicated streams by arrival time,
// the way an elimination point would see them before dropping the late
// copy of each sequence number.
func mergeArrivals(path1, path2 []float64) []sequence.FrameRecord {
	type arrival struct {
		at  float64
		seq uint32
	}
	arrivals := make([]arrival, 0, len(path1)+len(path2))
	for i, lat := range path1 {
		arrivals = append(arrivals, arrival{at: float64(i)*frameSpacingMS + lat, seq: uint32(i)})
	}
	for i, lat := range path2 {
		arrivals = append(arrivals, arrival{at: float64(i)*frameSpacingMS + lat, seq: uint32(i)})
	}
	sort.SliceStable(arrivals, func(i, j int) bool { return arrivals[i].at < arrivals[j].at })
	records := make([]sequence.FrameRecord, len(arrivals))
	for i, a := range arrivals {
		records[i] = sequence.FrameRecord{SeqNum: a.seq, ArrivalIndex: i}
	}
	return records
}

func (r *Runner) publish(runID, stage, detail string, frameSize, completed, total int) {
	r.tracker.Publish(control.Progress{
		RunID:     runID,
		Stage:     stage,
		Detail:    detail,
		FrameSize: frameSize,
		Completed: completed,
		Total:     total,
	})
}

func (r *Runner) recordError(results *report.Results, err error) {
	r.logger.Error("stage failure", "error", err)
	results.Errors = append(results.Errors, err.Error())
}
