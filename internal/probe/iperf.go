package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/NodePath81/tsnperf/internal/search"
	"github.com/NodePath81/tsnperf/internal/util"
)

// IperfRunner shells out to iperf3 for offered-load trials. A missing
// binary, a non-zero exit, or unparseable output all surface as a failed
// ProbeResult, which the search engines treat as full loss.
type IperfRunner struct {
	Target string
	// Port is the iperf3 server port; 0 means the iperf3 default.
	Port int
	// BinPath overrides the iperf3 binary; empty means $PATH lookup.
	BinPath string
	Logger  util.Logger
}

// iperfEndSum mirrors the "end.sum" block of iperf3 -J output.
type iperfEndSum struct {
	BitsPerSecond float64 `json:"bits_per_second"`
	Packets       int64   `json:"packets"`
	LostPackets   int64   `json:"lost_packets"`
	LostPercent   float64 `json:"lost_percent"`
	JitterMS      float64 `json:"jitter_ms"`
}

type iperfOutput struct {
	End struct {
		Sum iperfEndSum `json:"sum"`
	} `json:"end"`
	Error string `json:"error"`
}

// LoadTrial is the parsed outcome of one iperf3 UDP run at a target rate.
// The JSON field names are consumed by the report tooling and must not
// change.
type LoadTrial struct {
	FrameSize           int     `json:"frame_size"`
	TargetBandwidthMbps float64 `json:"target_bandwidth_mbps"`
	ActualBandwidthMbps float64 `json:"actual_bandwidth_mbps"`
	PacketsSent         int64   `json:"packets_sent"`
	PacketsLost         int64   `json:"packets_lost"`
	LossPercent         float64 `json:"loss_percent"`
	JitterMS            float64 `json:"jitter_ms"`
	DurationSec         float64 `json:"duration"`
}

// UDPTrial runs one UDP trial at rateMbps with the given frame size.
func (r *IperfRunner) UDPTrial(ctx context.Context, rateMbps float64, frameSize int, duration time.Duration) (LoadTrial, error) {
	secs := seconds(duration)
	args := []string{
		"-c", r.Target,
		"-u",
		"-b", fmt.Sprintf("%gM", rateMbps),
		"-l", strconv.Itoa(frameSize),
		"-t", strconv.Itoa(secs),
		"-J",
	}

	trial, err := r.run(ctx, args)
	if err != nil {
		return LoadTrial{}, err
	}
	trial.FrameSize = frameSize
	trial.TargetBandwidthMbps = rateMbps
	trial.DurationSec = float64(secs)
	return trial, nil
}

// UDPBurst sends exactly packetCount frames back to back at the given
// rate. Uses iperf3's -k (packet count) mode, so the run ends when the
// burst has been sent rather than after a fixed duration.
func (r *IperfRunner) UDPBurst(ctx context.Context, rateMbps float64, frameSize, packetCount int) (LoadTrial, error) {
	args := []string{
		"-c", r.Target,
		"-u",
		"-b", fmt.Sprintf("%gM", rateMbps),
		"-l", strconv.Itoa(frameSize),
		"-k", strconv.Itoa(packetCount),
		"-J",
	}

	trial, err := r.run(ctx, args)
	if err != nil {
		return LoadTrial{}, err
	}
	trial.FrameSize = frameSize
	trial.TargetBandwidthMbps = rateMbps
	return trial, nil
}

func (r *IperfRunner) run(ctx context.Context, args []string) (LoadTrial, error) {
	bin := r.BinPath
	if bin == "" {
		bin = "iperf3"
	}
	if r.Port > 0 {
		args = append(args, "-p", util.FormatPort(r.Port))
	}
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		return LoadTrial{}, fmt.Errorf("iperf3 run: %w", err)
	}
	return parseIperfOutput(out)
}

func parseIperfOutput(raw []byte) (LoadTrial, error) {
	var parsed iperfOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return LoadTrial{}, fmt.Errorf("parse iperf3 output: %w", err)
	}
	if parsed.Error != "" {
		return LoadTrial{}, fmt.Errorf("iperf3: %s", parsed.Error)
	}
	sum := parsed.End.Sum
	return LoadTrial{
		ActualBandwidthMbps: sum.BitsPerSecond / 1e6,
		PacketsSent:         sum.Packets,
		PacketsLost:         sum.LostPackets,
		LossPercent:         sum.LostPercent,
		JitterMS:            sum.JitterMS,
	}, nil
}

// RateProbe adapts the runner to the rate search engine's callback
// contract for a fixed frame size and trial duration.
func (r *IperfRunner) RateProbe(frameSize int, duration time.Duration) search.ProbeFunc {
	return func(ctx context.Context, rateMbps float64) search.ProbeResult {
		trial, err := r.UDPTrial(ctx, rateMbps, frameSize, duration)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Warn("rate trial failed",
					"target", r.Target,
					"rate_mbps", rateMbps,
					"frame_size", frameSize,
					"error", err)
			}
			return search.ProbeResult{Success: false}
		}
		return search.ProbeResult{
			Success:     true,
			LossPercent: trial.LossPercent,
			ActualValue: trial.ActualBandwidthMbps,
			PacketsSent: trial.PacketsSent,
			PacketsLost: trial.PacketsLost,
		}
	}
}

// BurstProbe adapts the runner for the burst search: the candidate burst
// size is expressed as a short line-rate blast, and the trial's loss rate
// decides whether the burst was absorbed.
func (r *IperfRunner) BurstProbe(frameSize int, lineRateMbps float64) search.BurstProbeFunc {
	return func(ctx context.Context, burstSize int) search.ProbeResult {
		trial, err := r.UDPBurst(ctx, lineRateMbps, frameSize, burstSize)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Warn("burst trial failed",
					"target", r.Target,
					"burst_size", burstSize,
					"frame_size", frameSize,
					"error", err)
			}
			return search.ProbeResult{Success: false}
		}
		return search.ProbeResult{
			Success:     true,
			LossPercent: trial.LossPercent,
			ActualValue: float64(trial.PacketsSent - trial.PacketsLost),
			PacketsSent: trial.PacketsSent,
			PacketsLost: trial.PacketsLost,
		}
	}
}
