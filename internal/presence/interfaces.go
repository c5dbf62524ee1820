package presence

import (
	"context"

	"github.com/bavix/presence/internal/annotations"
	"github.com/bavix/presence/internal/leasetime"
	"github.com/bavix/presence/internal/macaddr"
	"github.com/bavix/presence/internal/wireless"
)

// WirelessSource lists active wireless networks and their stations.
type WirelessSource interface {
	WirelessNetworks(ctx context.Context) ([]wireless.Network, error)
}

// NeighborSource lists MACs currently present in the IPv4 neighbor table.
type NeighborSource interface {
	Neighbors(ctx context.Context) ([]string, error)
}

// HintSource resolves hostnames and addresses per MAC.
type HintSource interface {
	HostHints(ctx context.Context) (HostHints, error)
}

// LeaseSource returns the DHCP lease table and configured durations.
type LeaseSource interface {
	LeaseTable(ctx context.Context) (leasetime.Table, error)
}

// AnnotationSource loads the current annotation snapshot. It never fails.
type AnnotationSource interface {
	Load(ctx context.Context) annotations.Snapshot
}

// HostHints answers per-MAC lookups. An empty string means no hint.
type HostHints interface {
	Hostname(mac string) string
	IPv4(mac string) string
	IPv6(mac string) string
}

// HostHint is what is known about one MAC.
type HostHint struct {
	Hostname string `json:"name,omitempty"`
	IPv4     string `json:"ipv4,omitempty"`
	IPv6     string `json:"ipv6,omitempty"`
}

// Hints is a map-backed HostHints keyed by uppercase MAC.
type Hints map[string]HostHint

func (h Hints) Hostname(mac string) string { return h[macaddr.Canonical(mac)].Hostname }

func (h Hints) IPv4(mac string) string { return h[macaddr.Canonical(mac)].IPv4 }

func (h Hints) IPv6(mac string) string { return h[macaddr.Canonical(mac)].IPv6 }

// Merge fills empty fields of h from other. Existing values win.
func (h Hints) Merge(other Hints) {
	for mac, o := range other {
		mac = macaddr.Canonical(mac)
		cur := h[mac]

		if cur.Hostname == "" {
			cur.Hostname = o.Hostname
		}

		if cur.IPv4 == "" {
			cur.IPv4 = o.IPv4
		}

		if cur.IPv6 == "" {
			cur.IPv6 = o.IPv6
		}

		h[mac] = cur
	}
}
