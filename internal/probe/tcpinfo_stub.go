//go:build !linux

package probe

import (
	"errors"
	"net"
	"time"
)

// TCPInfo captures the kernel's view of a connection from TCP_INFO.
// Only populated on Linux.
type TCPInfo struct {
	Retransmits  uint64
	SegmentsSent uint64
	RTT          time.Duration
	RTTVar       time.Duration
}

var errTCPInfoUnsupported = errors.New("TCP_INFO not supported on this platform")

// ReadTCPInfo is unavailable off Linux.
func ReadTCPInfo(conn *net.TCPConn) (TCPInfo, error) {
	return TCPInfo{}, errTCPInfoUnsupported
}
