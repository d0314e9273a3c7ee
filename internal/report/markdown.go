package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const summaryFile = "SUMMARY.md"

// LoadKey formats an offered-load percentage as a frame-loss grid key.
func LoadKey(pct float64) string {
	return strconv.FormatFloat(pct, 'g', -1, 64)
}

// WriteSummary renders the markdown report to <dir>/SUMMARY.md.
func WriteSummary(dir string, results *Results) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	path := filepath.Join(dir, summaryFile)
	if err := os.WriteFile(path, []byte(renderSummary(results)), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func renderSummary(results *Results) string {
	var b strings.Builder
	info := results.TestInfo

	b.WriteString("# RFC 2544 Network Performance Test Report\n\n")

	b.WriteString("## Test Information\n\n")
	fmt.Fprintf(&b, "- **Target IP:** %s\n", info.TargetIP)
	fmt.Fprintf(&b, "- **Interface:** %s\n", info.Interface)
	fmt.Fprintf(&b, "- **Test Duration:** %gs per iteration\n", info.TrialDuration)
	fmt.Fprintf(&b, "- **Test Date:** %s\n", info.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Frame Sizes:** %s bytes\n", joinInts(info.FrameSizes))
	fmt.Fprintf(&b, "- **Load Levels:** %s%%\n\n", joinFloats(info.LoadPercents))

	b.WriteString("## Connectivity\n\n")
	if !results.Connectivity.Reachable {
		b.WriteString("✗ Target is NOT reachable\n\n")
		b.WriteString("**WARNING:** Some tests were skipped due to connectivity issues.\n\n")
		return b.String()
	}
	b.WriteString("✓ Target is reachable\n\n")

	if len(results.Throughput) > 0 {
		b.WriteString("## 1. Throughput Test (Zero-Loss)\n\n")
		fmt.Fprintf(&b, "Maximum throughput with < %g%% packet loss:\n\n", info.LossThreshold)
		b.WriteString("| Frame Size (bytes) | Throughput (Mbps) |\n")
		b.WriteString("|-------------------:|------------------:|\n")
		for _, size := range info.FrameSizes {
			if res, ok := results.Throughput[size]; ok {
				fmt.Fprintf(&b, "| %18d | %17.2f |\n", size, res.BestRate)
			}
		}
		b.WriteString("\n")
	}

	if len(results.Latency) > 0 {
		b.WriteString("## 2. Latency Test (ICMP)\n\n")
		b.WriteString("Round-trip latency statistics:\n\n")
		b.WriteString("| Frame Size | Min (ms) | Avg (ms) | Max (ms) | P99 (ms) | Jitter (ms) |\n")
		b.WriteString("|----------:|---------:|---------:|---------:|---------:|------------:|\n")
		for _, size := range info.FrameSizes {
			if lat, ok := results.Latency[size]; ok {
				fmt.Fprintf(&b, "| %10d | %8.3f | %8.3f | %8.3f | %8.3f | %11.3f |\n",
					size, lat.Min, lat.Avg, lat.Max, lat.P99, lat.Jitter)
			}
		}
		b.WriteString("\n")
	}

	if len(results.FrameLoss) > 0 {
		b.WriteString("## 3. Frame Loss Test\n\n")
		b.WriteString("Packet loss percentage at different load levels:\n\n")
		b.WriteString("| Frame Size |")
		for _, load := range info.LoadPercents {
			fmt.Fprintf(&b, " %g%% |", load)
		}
		b.WriteString("\n|----------:|")
		for range info.LoadPercents {
			b.WriteString("-----:|")
		}
		b.WriteString("\n")
		for _, size := range info.FrameSizes {
			grid, ok := results.FrameLoss[size]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "| %10d |", size)
			for _, load := range info.LoadPercents {
				fmt.Fprintf(&b, " %4.2f |", grid[LoadKey(load)].LossPercent)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(results.BackToBack) > 0 {
		b.WriteString("## 4. Back-to-Back Frame Test\n\n")
		b.WriteString("Maximum burst capacity:\n\n")
		b.WriteString("| Frame Size (bytes) | Max Burst (frames) | Avg Burst |\n")
		b.WriteString("|-------------------:|-------------------:|----------:|\n")
		for _, size := range info.FrameSizes {
			if burst, ok := results.BackToBack[size]; ok {
				fmt.Fprintf(&b, "| %18d | %18d | %9.1f |\n", size, burst.MaxBurstNoLoss, burst.AvgBurst)
			}
		}
		b.WriteString("\n")
	}

	if len(results.PingPongLatency) > 0 {
		b.WriteString("## Latency (sockperf ping-pong)\n\n")
		b.WriteString("| Message Size | Min (ms) | Avg (ms) | P99 (ms) | Max (ms) |\n")
		b.WriteString("|------------:|---------:|---------:|---------:|---------:|\n")
		for _, size := range sortedKeys(results.PingPongLatency) {
			rep := results.PingPongLatency[size]
			fmt.Fprintf(&b, "| %12d | %8.4f | %8.4f | %8.4f | %8.4f |\n",
				size, rep.MinMS, rep.AvgMS, rep.P99MS, rep.MaxMS)
		}
		b.WriteString("\n")
	}

	if len(results.UnderLoadLatency) > 0 {
		b.WriteString("## Latency Under Load (sockperf)\n\n")
		b.WriteString("| Rate (msg/s) | Avg (ms) | P99 (ms) | P99.9 (ms) |\n")
		b.WriteString("|------------:|---------:|---------:|-----------:|\n")
		for _, rate := range sortedKeys(results.UnderLoadLatency) {
			rep := results.UnderLoadLatency[rate]
			fmt.Fprintf(&b, "| %12d | %8.4f | %8.4f | %10.4f |\n",
				rate, rep.AvgMS, rep.P99MS, rep.P999MS)
		}
		b.WriteString("\n")
	}

	if results.FRER != nil {
		cmp := results.FRER
		b.WriteString("## 5. FRER Dual-Path Comparison\n\n")
		b.WriteString("| Metric | Path 1 | Path 2 | FRER | Improvement |\n")
		b.WriteString("|:-------|-------:|-------:|-----:|------------:|\n")
		fmt.Fprintf(&b, "| Avg (ms) | %.3f | %.3f | %.3f | %.1f%% |\n",
			cmp.Path1.Avg, cmp.Path2.Avg, cmp.Selected.Avg, cmp.ImprovementAvgPct)
		fmt.Fprintf(&b, "| P99 (ms) | %.3f | %.3f | %.3f | %.1f%% |\n",
			cmp.Path1.P99, cmp.Path2.P99, cmp.Selected.P99, cmp.ImprovementP99Pct)
		fmt.Fprintf(&b, "| Jitter (ms) | %.3f | %.3f | %.3f | %.1f%% |\n",
			cmp.Path1.Jitter, cmp.Path2.Jitter, cmp.Selected.Jitter, cmp.ImprovementJitterPct)
		b.WriteString("\n")
	}

	b.WriteString("## Conclusions\n\n")
	if size, rate, ok := bestThroughput(results, info.FrameSizes); ok {
		fmt.Fprintf(&b, "- **Best Throughput:** %.2f Mbps at %d byte frames\n", rate, size)
	}
	if size, avg, ok := lowestLatency(results, info.FrameSizes); ok {
		fmt.Fprintf(&b, "- **Lowest Latency:** %.3f ms at %d byte frames\n", avg, size)
	}
	b.WriteString("\n---\n\n")
	b.WriteString("*Generated by tsnperf*\n")
	return b.String()
}

func bestThroughput(results *Results, sizes []int) (int, float64, bool) {
	best, bestSize, found := 0.0, 0, false
	for _, size := range sizes {
		if res, ok := results.Throughput[size]; ok && (!found || res.BestRate > best) {
			best, bestSize, found = res.BestRate, size, true
		}
	}
	return bestSize, best, found
}

func lowestLatency(results *Results, sizes []int) (int, float64, bool) {
	best, bestSize, found := 0.0, 0, false
	for _, size := range sizes {
		if lat, ok := results.Latency[size]; ok && (!found || lat.Avg < best) {
			best, bestSize, found = lat.Avg, size, true
		}
	}
	return bestSize, best, found
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}
