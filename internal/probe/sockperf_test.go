package probe

import (
	"math"
	"testing"
)

const sockperfSample = `sockperf: == version #3.10-no.git ==
sockperf[CLIENT] send on:sockperf: using recvfrom() to block on socket(s)

[ 0] IP = 192.168.10.2    PORT = 11111 # UDP
sockperf: Warmup stage (sending a few dummy messages)...
sockperf: Starting test...
sockperf: Test end (interrupted by timer)
sockperf: Test ended
sockperf: [Total Run] RunTime=10.000 sec; Warm up time=400 msec; SentMessages=568712; ReceivedMessages=568711
sockperf: ========= Printing statistics for Server No: 0
sockperf: [Valid Duration] RunTime=9.550 sec; SentMessages=543223; ReceivedMessages=543223
sockperf: ====> avg-latency=8.794 (std-dev=1.234)
sockperf: # dropped messages = 0; # duplicated messages = 0; # out-of-order messages = 0
sockperf: Summary: Latency is 8.794 usec
sockperf: Total 543223 observations; each percentile contains 5432.23 observations
sockperf: ---> <MAX> observation =   85.833
sockperf: ---> percentile 99.999 =   63.159
sockperf: ---> percentile 99.990 =   35.400
sockperf: ---> percentile 99.900 =   28.027
sockperf: ---> percentile 99.000 =   12.251
sockperf: ---> percentile 90.000 =    9.359
sockperf: ---> percentile 75.000 =    8.857
sockperf: ---> percentile 50.000 =    8.618
sockperf: ---> percentile 25.000 =    8.408
sockperf: ---> <MIN> observation =    8.152
`

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseSockperfOutput(t *testing.T) {
	report, err := parseSockperfOutput([]byte(sockperfSample))
	if err != nil {
		t.Fatalf("parseSockperfOutput: %v", err)
	}
	if !almostEqual(report.AvgMS, 0.008794) {
		t.Errorf("AvgMS = %v, want 0.008794", report.AvgMS)
	}
	if !almostEqual(report.MinMS, 0.008152) || !almostEqual(report.MaxMS, 0.085833) {
		t.Errorf("min/max = %v/%v", report.MinMS, report.MaxMS)
	}
	if !almostEqual(report.P50MS, 0.008618) {
		t.Errorf("P50MS = %v, want 0.008618", report.P50MS)
	}
	if !almostEqual(report.P99MS, 0.012251) {
		t.Errorf("P99MS = %v, want 0.012251", report.P99MS)
	}
	if !almostEqual(report.P999MS, 0.028027) {
		t.Errorf("P999MS = %v, want 0.028027", report.P999MS)
	}
}

func TestParseSockperfOutputNoSummary(t *testing.T) {
	if _, err := parseSockperfOutput([]byte("sockperf: Test ended\n")); err == nil {
		t.Fatal("expected error when output has no latency summary")
	}
}
