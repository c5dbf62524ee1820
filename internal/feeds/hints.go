package feeds

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/dhcp"
	"github.com/bavix/presence/internal/macaddr"
	"github.com/bavix/presence/internal/presence"
)

// UbusHints resolves host hints through luci-rpc getHostHints.
type UbusHints struct {
	ubus *Ubus
}

// NewUbusHints returns the hint feed.
func NewUbusHints(ubus *Ubus) *UbusHints {
	return &UbusHints{ubus: ubus}
}

type hostHint struct {
	Name     string   `json:"name"`
	IPAddrs  []string `json:"ipaddrs"`
	IP6Addrs []string `json:"ip6addrs"`
}

func (u *UbusHints) HostHints(ctx context.Context) (presence.HostHints, error) {
	var raw map[string]hostHint
	if err := u.ubus.Call(ctx, "luci-rpc", "getHostHints", nil, &raw); err != nil {
		return nil, err
	}

	hints := make(presence.Hints, len(raw))

	for mac, h := range raw {
		hint := presence.HostHint{Hostname: h.Name}
		if len(h.IPAddrs) > 0 {
			hint.IPv4 = h.IPAddrs[0]
		}

		if len(h.IP6Addrs) > 0 {
			hint.IPv6 = h.IP6Addrs[0]
		}

		hints[macaddr.Canonical(mac)] = hint
	}

	return hints, nil
}

// Resolver looks up the host name of an IP address.
type Resolver interface {
	LookupAddr(ctx context.Context, ip string) (string, error)
}

// LocalHints builds hints without rpcd: names and IPv4 from the lease file,
// IPv6 from the neighbor table and, when a resolver is set, names for
// unnamed addresses from reverse DNS.
type LocalHints struct {
	leases   *dhcp.LeaseFile
	runner   CommandRunner
	device   string
	resolver Resolver
}

// NewLocalHints returns the local hint feed. resolver may be nil.
func NewLocalHints(leases *dhcp.LeaseFile, runner CommandRunner, device string, resolver Resolver) *LocalHints {
	if device == "" {
		device = DefaultBridge
	}

	return &LocalHints{leases: leases, runner: runner, device: device, resolver: resolver}
}

func (l *LocalHints) HostHints(ctx context.Context) (presence.HostHints, error) {
	log := zerolog.Ctx(ctx)

	leases, err := l.leases.Read()
	if err != nil {
		return nil, err
	}

	hints := make(presence.Hints, len(leases))

	for _, lease := range leases {
		h := hints[lease.MAC]
		if h.Hostname == "" {
			h.Hostname = lease.Hostname
		}

		if ip := net.ParseIP(lease.IP); ip != nil && ip.To4() != nil && h.IPv4 == "" {
			h.IPv4 = lease.IP
		}

		hints[lease.MAC] = h
	}

	if out, err := l.runner.Run(ctx, ipBinary, "-6", "neigh", "show", "dev", l.device); err != nil {
		log.Debug().Err(err).Msg("ipv6 neighbor table unavailable")
	} else {
		v6 := presence.Hints{}
		for mac, addr := range ParseNeighborAddrs(string(out)) {
			v6[mac] = presence.HostHint{IPv6: addr}
		}

		hints.Merge(v6)
	}

	if l.resolver != nil {
		for mac, h := range hints {
			if h.Hostname != "" || h.IPv4 == "" {
				continue
			}

			name, err := l.resolver.LookupAddr(ctx, h.IPv4)
			if err != nil {
				log.Debug().Err(err).Str("ip", h.IPv4).Msg("reverse lookup failed")

				continue
			}

			h.Hostname = name
			hints[mac] = h
		}
	}

	return hints, nil
}
