package feeds

import (
	"context"
	"net"
	"strings"

	"github.com/bavix/presence/internal/macaddr"
)

const (
	DefaultBridge = "br-lan"

	ipBinary = "ip"
)

// IPNeighbors reads the IPv4 neighbor table of one bridge with iproute2.
type IPNeighbors struct {
	runner CommandRunner
	device string
}

// NewIPNeighbors returns the neighbor feed for device (default br-lan).
func NewIPNeighbors(runner CommandRunner, device string) *IPNeighbors {
	if device == "" {
		device = DefaultBridge
	}

	return &IPNeighbors{runner: runner, device: device}
}

// Neighbors returns uppercase MACs of every entry with a link-layer address.
func (n *IPNeighbors) Neighbors(ctx context.Context) ([]string, error) {
	out, err := n.runner.Run(ctx, ipBinary, "-4", "neigh", "show", "dev", n.device)
	if err != nil {
		return nil, err
	}

	return ParseNeighbors(string(out)), nil
}

// Flush drops every IPv4 neighbor entry on the bridge so the next pass only
// sees devices that answer again.
func (n *IPNeighbors) Flush(ctx context.Context) error {
	_, err := n.runner.Run(ctx, ipBinary, "-4", "neigh", "flush", "dev", n.device)

	return err
}

// ParseNeighbors extracts MACs from "ip neigh show dev X" output, where each
// line reads "<ip> lladdr <mac> <state>". Entries without lladdr (FAILED,
// INCOMPLETE) are skipped, as are duplicates.
func ParseNeighbors(out string) []string {
	seen := map[string]struct{}{}

	var macs []string

	for line := range strings.SplitSeq(out, "\n") {
		fields := strings.Fields(line)

		const minNeighFields = 3
		if len(fields) < minNeighFields || fields[1] != "lladdr" {
			continue
		}

		mac := macaddr.Canonical(fields[2])
		if _, dup := seen[mac]; dup {
			continue
		}

		seen[mac] = struct{}{}
		macs = append(macs, mac)
	}

	return macs
}

// ParseNeighborAddrs maps MAC to address from "ip neigh show" output. The
// first address per MAC is kept, except that a link-local address gives way
// to a routable one.
func ParseNeighborAddrs(out string) map[string]string {
	addrs := map[string]string{}

	for line := range strings.SplitSeq(out, "\n") {
		fields := strings.Fields(line)

		for i := 1; i+1 < len(fields); i++ {
			if fields[i] != "lladdr" {
				continue
			}

			mac := macaddr.Canonical(fields[i+1])
			if cur, ok := addrs[mac]; !ok || (isLinkLocal(cur) && !isLinkLocal(fields[0])) {
				addrs[mac] = fields[0]
			}

			break
		}
	}

	return addrs
}

func isLinkLocal(addr string) bool {
	ip := net.ParseIP(addr)

	return ip != nil && ip.IsLinkLocalUnicast()
}
