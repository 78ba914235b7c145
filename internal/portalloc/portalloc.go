// Package portalloc picks local ports for new tunnels.
package portalloc

import (
	"math/rand/v2"

	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

// Allocate returns a pseudo-randomly chosen port within r, inclusive.
//
// The allocator keeps no state between calls, so repeated calls may return
// the same value. It deliberately does not probe whether the port is free:
// the tunnel subprocess's bind is the true exclusivity check, and a bind
// collision there surfaces as a tunnel-start failure rather than an
// allocation failure.
func Allocate(r model.PortRange) (int, error) {
	if r.Min > r.Max {
		return 0, fault.New(fault.Configuration, "invalid port range %d-%d: min exceeds max", r.Min, r.Max)
	}
	return r.Min + rand.IntN(r.Max-r.Min+1), nil
}
