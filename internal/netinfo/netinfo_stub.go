//go:build !linux

package netinfo

import "errors"

var errUnsupported = errors.New("interface inspection requires linux")

// Describe is unavailable off Linux; the suite records an empty snapshot.
func Describe(name string) (Interface, error) {
	return Interface{Name: name}, errUnsupported
}
