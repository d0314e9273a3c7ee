// Package netinfo annotates benchmark runs with the state of the network
// interface they ran on.
package netinfo

// Interface is a snapshot of a network interface at run time. Qdiscs are
// interesting for TSN setups where a TAPRIO or CBS schedule is installed.
type Interface struct {
	Name         string   `json:"name"`
	Index        int      `json:"index"`
	MTU          int      `json:"mtu"`
	HardwareAddr string   `json:"hardware_addr"`
	Up           bool     `json:"up"`
	Driver       string   `json:"driver,omitempty"`
	Addresses    []string `json:"addresses,omitempty"`
	Qdiscs       []string `json:"qdiscs,omitempty"`
}
