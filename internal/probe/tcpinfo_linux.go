//go:build linux

package probe

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// TCPInfo captures the kernel's view of a connection from TCP_INFO. Used
// as a secondary latency source during the connectivity check: the
// smoothed RTT and its variance come straight from the TCP stack rather
// than from our own timestamping.
type TCPInfo struct {
	Retransmits  uint64
	SegmentsSent uint64
	RTT          time.Duration
	RTTVar       time.Duration
}

// ReadTCPInfo reads TCP_INFO from a connected TCP socket.
func ReadTCPInfo(conn *net.TCPConn) (TCPInfo, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return TCPInfo{}, fmt.Errorf("syscall conn: %w", err)
	}

	var info *unix.TCPInfo
	var sockErr error
	if err := rawConn.Control(func(fd uintptr) {
		info, sockErr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	}); err != nil {
		return TCPInfo{}, fmt.Errorf("control syscall: %w", err)
	}
	if sockErr != nil {
		return TCPInfo{}, fmt.Errorf("getsockopt TCP_INFO: %w", sockErr)
	}
	if info == nil {
		return TCPInfo{}, fmt.Errorf("getsockopt TCP_INFO: nil info")
	}

	segmentsSent := uint64(info.Data_segs_out)
	if segmentsSent == 0 {
		segmentsSent = uint64(info.Segs_out)
	}
	return TCPInfo{
		Retransmits:  uint64(info.Total_retrans),
		SegmentsSent: segmentsSent,
		RTT:          time.Duration(info.Rtt) * time.Microsecond,
		RTTVar:       time.Duration(info.Rttvar) * time.Microsecond,
	}, nil
}
