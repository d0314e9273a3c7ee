package probe

import (
	"strings"
	"testing"
)

const iperfSample = `{
	"start": {
		"test_start": {"protocol": "UDP", "blksize": 1024}
	},
	"intervals": [],
	"end": {
		"sum": {
			"bits_per_second": 487650000.0,
			"packets": 59521,
			"lost_packets": 12,
			"lost_percent": 0.020161,
			"jitter_ms": 0.042
		}
	}
}`

func TestParseIperfOutput(t *testing.T) {
	trial, err := parseIperfOutput([]byte(iperfSample))
	if err != nil {
		t.Fatalf("parseIperfOutput: %v", err)
	}
	if got, want := trial.ActualBandwidthMbps, 487.65; got != want {
		t.Errorf("ActualBandwidthMbps = %v, want %v", got, want)
	}
	if trial.PacketsSent != 59521 || trial.PacketsLost != 12 {
		t.Errorf("packets = %d/%d, want 59521/12", trial.PacketsSent, trial.PacketsLost)
	}
	if trial.LossPercent != 0.020161 {
		t.Errorf("LossPercent = %v, want 0.020161", trial.LossPercent)
	}
	if trial.JitterMS != 0.042 {
		t.Errorf("JitterMS = %v, want 0.042", trial.JitterMS)
	}
}

func TestParseIperfOutputError(t *testing.T) {
	_, err := parseIperfOutput([]byte(`{"error": "unable to connect to server: Connection refused"}`))
	if err == nil {
		t.Fatal("expected error for iperf3 error report")
	}
	if !strings.Contains(err.Error(), "Connection refused") {
		t.Errorf("error %q does not carry the iperf3 message", err)
	}
}

func TestParseIperfOutputMalformed(t *testing.T) {
	if _, err := parseIperfOutput([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed output")
	}
}

func TestPayloadForFrameSize(t *testing.T) {
	if got := PayloadForFrameSize(64); got != 56 {
		t.Errorf("PayloadForFrameSize(64) = %d, want 56", got)
	}
	if got := PayloadForFrameSize(4); got != 0 {
		t.Errorf("PayloadForFrameSize(4) = %d, want 0", got)
	}
}
