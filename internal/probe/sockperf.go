package probe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/NodePath81/tsnperf/internal/util"
)

// SockperfRunner shells out to sockperf for kernel-bypass-grade latency
// trials: ping-pong for unloaded round trips and under-load mode for
// latency at a fixed message rate. Requires a sockperf server on the
// target.
type SockperfRunner struct {
	Target string
	// Port is the sockperf server port.
	Port int
	// BinPath overrides the sockperf binary; empty means $PATH lookup.
	BinPath string
	Logger  util.Logger
}

// SockperfReport is the parsed summary of one sockperf run. sockperf
// reports microseconds; values here are milliseconds like every other
// latency in the results document.
type SockperfReport struct {
	MessageSize int     `json:"message_size"`
	RatePerSec  int     `json:"rate_per_sec,omitempty"`
	AvgMS       float64 `json:"avg_ms"`
	MinMS       float64 `json:"min_ms"`
	MaxMS       float64 `json:"max_ms"`
	P50MS       float64 `json:"p50_ms"`
	P99MS       float64 `json:"p99_ms"`
	P999MS      float64 `json:"p99.9_ms"`
}

// PingPong runs one ping-pong trial at the given message size.
func (r *SockperfRunner) PingPong(ctx context.Context, msgSize int, duration time.Duration) (SockperfReport, error) {
	args := []string{
		"ping-pong",
		"-i", r.Target,
		"-p", util.FormatPort(r.Port),
		"-t", strconv.Itoa(seconds(duration)),
		"--msg-size", strconv.Itoa(msgSize),
	}
	report, err := r.run(ctx, args)
	if err != nil {
		return SockperfReport{}, err
	}
	report.MessageSize = msgSize
	return report, nil
}

// UnderLoad runs one under-load trial at ratePerSec messages per second.
func (r *SockperfRunner) UnderLoad(ctx context.Context, ratePerSec, msgSize int, duration time.Duration) (SockperfReport, error) {
	args := []string{
		"under-load",
		"-i", r.Target,
		"-p", util.FormatPort(r.Port),
		"-t", strconv.Itoa(seconds(duration)),
		"--mps", strconv.Itoa(ratePerSec),
		"--msg-size", strconv.Itoa(msgSize),
	}
	report, err := r.run(ctx, args)
	if err != nil {
		return SockperfReport{}, err
	}
	report.MessageSize = msgSize
	report.RatePerSec = ratePerSec
	return report, nil
}

func (r *SockperfRunner) run(ctx context.Context, args []string) (SockperfReport, error) {
	bin := r.BinPath
	if bin == "" {
		bin = "sockperf"
	}
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		return SockperfReport{}, fmt.Errorf("sockperf run: %w", err)
	}
	return parseSockperfOutput(out)
}

// parseSockperfOutput extracts the summary block sockperf prints at the
// end of a run, e.g.
//
//	sockperf: ---> <MAX> observation =   85.833
//	sockperf: ---> percentile 99.900 =   28.027
//	sockperf: ---> percentile 50.000 =    8.618
//	sockperf: ---> <MIN> observation =    8.152
//	sockperf: Summary: Latency is 8.794 usec
func parseSockperfOutput(raw []byte) (SockperfReport, error) {
	var report SockperfReport
	found := false

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "Summary: Latency is"):
			if v, ok := fieldAfter(line, "is"); ok {
				report.AvgMS = v / 1000
				found = true
			}
		case strings.Contains(line, "<MAX> observation"):
			if v, ok := fieldAfter(line, "="); ok {
				report.MaxMS = v / 1000
			}
		case strings.Contains(line, "<MIN> observation"):
			if v, ok := fieldAfter(line, "="); ok {
				report.MinMS = v / 1000
			}
		case strings.Contains(line, "percentile 99.900"):
			if v, ok := fieldAfter(line, "="); ok {
				report.P999MS = v / 1000
			}
		case strings.Contains(line, "percentile 99.000"):
			if v, ok := fieldAfter(line, "="); ok {
				report.P99MS = v / 1000
			}
		case strings.Contains(line, "percentile 50.000"):
			if v, ok := fieldAfter(line, "="); ok {
				report.P50MS = v / 1000
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return SockperfReport{}, fmt.Errorf("parse sockperf output: %w", err)
	}
	if !found {
		return SockperfReport{}, fmt.Errorf("sockperf output has no latency summary")
	}
	return report, nil
}

// fieldAfter returns the first number following the marker token.
func fieldAfter(line, marker string) (float64, bool) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == marker && i+1 < len(fields) {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

func seconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}
