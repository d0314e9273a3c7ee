// Package report defines the results document a benchmark run produces
// and writes it out as JSON and as a human-readable markdown summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NodePath81/tsnperf/internal/frer"
	"github.com/NodePath81/tsnperf/internal/geo"
	"github.com/NodePath81/tsnperf/internal/netinfo"
	"github.com/NodePath81/tsnperf/internal/probe"
	"github.com/NodePath81/tsnperf/internal/search"
	"github.com/NodePath81/tsnperf/internal/sequence"
	"github.com/NodePath81/tsnperf/internal/stats"
)

// TestInfo records where and when a run happened.
type TestInfo struct {
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	TargetIP      string    `json:"target_ip"`
	Interface     string    `json:"interface"`
	FrameSizes    []int     `json:"frame_sizes"`
	LoadPercents  []float64 `json:"load_percentages"`
	TrialDuration float64   `json:"duration"`
	// LossThreshold is the throughput search's pass criterion in percent.
	LossThreshold float64           `json:"loss_threshold"`
	Link          netinfo.Interface `json:"link,omitempty"`
	Location      geo.Location      `json:"location,omitempty"`
}

type Connectivity struct {
	Reachable    bool    `json:"reachable"`
	RTTMS        float64 `json:"rtt_ms,omitempty"`
	TCPConnectMS float64 `json:"tcp_connect_ms,omitempty"`
	// KernelRTTMS is the TCP stack's smoothed RTT right after connect,
	// when TCP_INFO is available.
	KernelRTTMS float64 `json:"kernel_rtt_ms,omitempty"`
}

// Results is the full document for one run. Map keys are frame sizes;
// the frame-loss grid is further keyed by offered load percentage.
type Results struct {
	TestInfo     TestInfo                           `json:"test_info"`
	Connectivity Connectivity                       `json:"connectivity"`
	Throughput   map[int]search.RateSearchResult    `json:"throughput,omitempty"`
	Latency      map[int]stats.Stats                `json:"latency,omitempty"`
	FrameLoss    map[int]map[string]probe.LoadTrial `json:"frame_loss,omitempty"`
	BackToBack   map[int]search.BurstResult         `json:"back_to_back,omitempty"`
	// PingPongLatency is keyed by message size, UnderLoadLatency by
	// message rate in messages per second.
	PingPongLatency  map[int]probe.SockperfReport `json:"sockperf_pingpong,omitempty"`
	UnderLoadLatency map[int]probe.SockperfReport `json:"sockperf_underload,omitempty"`
	FRER             *frer.Comparison             `json:"frer,omitempty"`
	Sequence         *sequence.Analysis           `json:"sequence,omitempty"`
	Errors           []string                     `json:"errors,omitempty"`
}

const resultsFile = "results.json"

// WriteJSON writes the results document to <dir>/results.json, creating
// the directory if needed.
func WriteJSON(dir string, results *Results) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(dir, resultsFile)
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
