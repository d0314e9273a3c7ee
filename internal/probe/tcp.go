package probe

import (
	"context"
	"net"
	"time"

	"github.com/NodePath81/tsnperf/internal/util"
)

// ConnectLatency measures TCP connect time to host:port in milliseconds.
// On Linux the kernel's TCP_INFO view of the fresh connection comes
// back too; elsewhere info is zero. ok is false when the dial fails or
// times out.
func ConnectLatency(ctx context.Context, host string, port int, timeout time.Duration) (float64, TCPInfo, bool) {
	dialer := &net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", util.NetJoin(host, port))
	if err != nil {
		return 0, TCPInfo{}, false
	}
	defer conn.Close()

	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	var info TCPInfo
	if tcpConn, isTCP := conn.(*net.TCPConn); isTCP {
		info, _ = ReadTCPInfo(tcpConn)
	}
	return elapsed, info, true
}
