package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NodePath81/tsnperf/internal/probe"
	"github.com/NodePath81/tsnperf/internal/search"
	"github.com/NodePath81/tsnperf/internal/stats"
)

func sampleResults() *Results {
	return &Results{
		TestInfo: TestInfo{
			RunID:         "test-run",
			Timestamp:     time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
			TargetIP:      "192.168.10.2",
			Interface:     "eth0",
			FrameSizes:    []int{64, 1518},
			LoadPercents:  []float64{100, 50},
			TrialDuration: 2,
			LossThreshold: 0.001,
		},
		Connectivity: Connectivity{Reachable: true, RTTMS: 0.412},
		Throughput: map[int]search.RateSearchResult{
			64:   {BestRate: 98.52, Iterations: 11, Converged: true},
			1518: {BestRate: 941.37, Iterations: 12, Converged: true},
		},
		Latency: map[int]stats.Stats{
			64:   {Count: 100, Min: 0.21, Avg: 0.35, Max: 1.02, P99: 0.98, Jitter: 0.11},
			1518: {Count: 100, Min: 0.33, Avg: 0.51, Max: 1.40, P99: 1.31, Jitter: 0.14},
		},
		FrameLoss: map[int]map[string]probe.LoadTrial{
			64: {
				LoadKey(100): {LossPercent: 0.42},
				LoadKey(50):  {LossPercent: 0},
			},
		},
		BackToBack: map[int]search.BurstResult{
			64: {FrameSize: 64, MaxBurstNoLoss: 1000, AvgBurst: 1333.3},
		},
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(dir, sampleResults())
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if filepath.Base(path) != "results.json" {
		t.Errorf("unexpected file name %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	var decoded Results
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if decoded.Throughput[1518].BestRate != 941.37 {
		t.Errorf("throughput round trip: %+v", decoded.Throughput)
	}
	if !decoded.Connectivity.Reachable {
		t.Error("connectivity lost in round trip")
	}
}

func TestRenderSummarySections(t *testing.T) {
	out := renderSummary(sampleResults())

	for _, want := range []string{
		"# RFC 2544 Network Performance Test Report",
		"✓ Target is reachable",
		"## 1. Throughput Test (Zero-Loss)",
		"Maximum throughput with < 0.001% packet loss",
		"## 2. Latency Test (ICMP)",
		"## 3. Frame Loss Test",
		"## 4. Back-to-Back Frame Test",
		"**Best Throughput:** 941.37 Mbps at 1518 byte frames",
		"**Lowest Latency:** 0.350 ms at 64 byte frames",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestRenderSummaryLossThresholdConfigurable(t *testing.T) {
	results := sampleResults()
	results.TestInfo.LossThreshold = 0.5
	out := renderSummary(results)

	if !strings.Contains(out, "Maximum throughput with < 0.5% packet loss") {
		t.Error("summary should render the configured loss threshold")
	}
	if strings.Contains(out, "0.001%") {
		t.Error("summary still carries the default threshold")
	}
}

func TestRenderSummarySockperfSections(t *testing.T) {
	results := sampleResults()
	results.PingPongLatency = map[int]probe.SockperfReport{
		1472: {MessageSize: 1472, MinMS: 0.009, AvgMS: 0.014, P99MS: 0.031, MaxMS: 0.205},
		64:   {MessageSize: 64, MinMS: 0.006, AvgMS: 0.009, P99MS: 0.022, MaxMS: 0.118},
	}
	results.UnderLoadLatency = map[int]probe.SockperfReport{
		50000: {MessageSize: 1024, RatePerSec: 50000, AvgMS: 0.021, P99MS: 0.044, P999MS: 0.092},
	}
	out := renderSummary(results)

	for _, want := range []string{
		"## Latency (sockperf ping-pong)",
		"## Latency Under Load (sockperf)",
		"|        50000 |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	// Ping-pong rows come out sorted by message size.
	if strings.Index(out, "|           64 |") > strings.Index(out, "|         1472 |") {
		t.Error("ping-pong rows not sorted by message size")
	}
}

func TestRenderSummaryUnreachableStopsEarly(t *testing.T) {
	results := sampleResults()
	results.Connectivity.Reachable = false
	out := renderSummary(results)

	if !strings.Contains(out, "NOT reachable") {
		t.Error("summary should flag unreachable target")
	}
	if strings.Contains(out, "Throughput Test") {
		t.Error("summary should stop after connectivity failure")
	}
}

func TestWriteSummaryCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")
	path, err := WriteSummary(dir, sampleResults())
	if err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("summary file missing: %v", err)
	}
}
