// Package probe implements the measurement trials the search and stats
// engines are driven by: a raw-socket ICMP echo train for latency
// sampling, an iperf3 invocation for offered-load trials, and a TCP
// connect probe for reachability. The engines never see any of this
// directly; they only consume the sample slices and ProbeResult records
// produced here.
package probe

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/NodePath81/tsnperf/internal/util"
)

const icmpHeaderSize = 8

// PingConfig bounds one ICMP latency train.
type PingConfig struct {
	// Count is the number of echo requests to send.
	Count int
	// PayloadSize is the ICMP payload in bytes; use PayloadForFrameSize
	// to account for the echo header.
	PayloadSize int
	// Interval is the gap between requests.
	Interval time.Duration
	// Timeout bounds the wait for each reply.
	Timeout time.Duration
}

// PayloadForFrameSize converts an on-wire frame size to the ICMP payload
// size producing it, clamped at zero for frames smaller than the header.
func PayloadForFrameSize(frameSize int) int {
	payload := frameSize - icmpHeaderSize
	if payload < 0 {
		return 0
	}
	return payload
}

// PingSeries sends an echo train to the target and returns the round-trip
// latency of each reply in milliseconds, in arrival order. Lost probes
// leave no sample; an empty result with a nil error means everything was
// lost. Socket setup failure is the only error.
func PingSeries(ctx context.Context, target net.IP, cfg PingConfig, logger util.Logger) ([]float64, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("ping count must be > 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	network := "ip4:icmp"
	proto := 1
	echoType := icmp.Type(ipv4.ICMPTypeEcho)
	replyType := icmp.Type(ipv4.ICMPTypeEchoReply)
	if target.To4() == nil {
		network = "ip6:ipv6-icmp"
		proto = 58
		echoType = icmp.Type(ipv6.ICMPTypeEchoRequest)
		replyType = icmp.Type(ipv6.ICMPTypeEchoReply)
	}

	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return nil, fmt.Errorf("icmp socket: %w", err)
	}
	defer conn.Close()

	payload := make([]byte, cfg.PayloadSize)
	for i := range payload {
		payload[i] = 'B'
	}

	id := rand.Intn(0xffff)
	samples := make([]float64, 0, cfg.Count)
	lost := 0

	for seq := 1; seq <= cfg.Count; seq++ {
		if err := ctx.Err(); err != nil {
			return samples, err
		}

		rtt, ok := echoOnce(conn, target, id, uint16(seq), echoType, replyType, proto, payload, cfg.Timeout)
		if ok {
			samples = append(samples, float64(rtt.Microseconds())/1000.0)
		} else {
			lost++
		}

		if cfg.Interval > 0 && seq < cfg.Count {
			select {
			case <-ctx.Done():
				return samples, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
	}

	if lost > 0 && logger != nil {
		logger.Warn("echo probes lost", "target", target.String(), "sent", cfg.Count, "lost", lost)
	}
	return samples, nil
}

func echoOnce(conn *icmp.PacketConn, ip net.IP, id int, seq uint16, echoType, replyType icmp.Type, proto int, payload []byte, timeout time.Duration) (time.Duration, bool) {
	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  int(seq),
			Data: payload,
		},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, false
	}

	dst := &net.IPAddr{IP: ip}
	start := time.Now()
	if _, err := conn.WriteTo(wire, dst); err != nil {
		return 0, false
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, false
	}

	buf := make([]byte, 65536)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, false
		}
		ipAddr, ok := peer.(*net.IPAddr)
		if ok && ipAddr.IP != nil && !ipAddr.IP.Equal(ip) {
			continue
		}
		parsed, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		if parsed.Type != replyType {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if echo.ID == id && echo.Seq == int(seq) {
			return time.Since(start), true
		}
	}
}
