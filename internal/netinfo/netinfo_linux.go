//go:build linux

package netinfo

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// Describe reads the test interface's state from the kernel. The report
// records this alongside the results so a run can be tied to the link it
// ran on.
func Describe(name string) (Interface, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return Interface{}, fmt.Errorf("lookup link %s: %w", name, err)
	}

	attrs := link.Attrs()
	info := Interface{
		Name:         attrs.Name,
		Index:        attrs.Index,
		MTU:          attrs.MTU,
		HardwareAddr: attrs.HardwareAddr.String(),
		Up:           attrs.OperState == netlink.OperUp,
		Driver:       link.Type(),
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return info, fmt.Errorf("list addrs for %s: %w", name, err)
	}
	for _, addr := range addrs {
		info.Addresses = append(info.Addresses, addr.IPNet.String())
	}

	qdiscs, err := netlink.QdiscList(link)
	if err != nil {
		return info, fmt.Errorf("list qdiscs for %s: %w", name, err)
	}
	for _, q := range qdiscs {
		info.Qdiscs = append(info.Qdiscs, q.Type())
	}
	return info, nil
}
