package feeds

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/dhcp"
	"github.com/bavix/presence/internal/leasetime"
	"github.com/bavix/presence/internal/macaddr"
)

// DefaultNetwork is the UCI dhcp section whose leasetime applies.
const DefaultNetwork = "lan"

// DurationSource supplies configured lease durations.
type DurationSource interface {
	LeaseDurations(ctx context.Context) (dhcp.LeaseDurations, error)
}

// UCIDurations reads lease durations from /etc/config/dhcp.
type UCIDurations struct {
	Path    string
	Network string
}

func (u UCIDurations) LeaseDurations(context.Context) (dhcp.LeaseDurations, error) {
	network := u.Network
	if network == "" {
		network = DefaultNetwork
	}

	return dhcp.ReadLeaseDurations(u.Path, network)
}

// flexSeconds accepts a number or a boolean; rpcd reports infinite leases as false.
type flexSeconds int64

func (f *flexSeconds) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		var fv float64
		if json.Unmarshal(b, &fv) == nil {
			*f = flexSeconds(fv)

			return nil
		}

		*f = 0

		return nil //nolint:nilerr // non-numeric means no expiry
	}

	*f = flexSeconds(v)

	return nil
}

type rpcLease struct {
	Expires  flexSeconds `json:"expires"`
	MACAddr  string      `json:"macaddr"`
	Hostname string      `json:"hostname"`
	IPAddr   string      `json:"ipaddr"`
}

type rpcLeases struct {
	DHCP []rpcLease `json:"dhcp_leases"`
}

// UbusLeases fetches active leases through luci-rpc getDHCPLeases.
type UbusLeases struct {
	ubus      *Ubus
	durations DurationSource
}

// NewUbusLeases returns the lease feed. durations may be nil.
func NewUbusLeases(ubus *Ubus, durations DurationSource) *UbusLeases {
	return &UbusLeases{ubus: ubus, durations: durations}
}

func (u *UbusLeases) LeaseTable(ctx context.Context) (leasetime.Table, error) {
	var raw rpcLeases
	if err := u.ubus.Call(ctx, "luci-rpc", "getDHCPLeases", nil, &raw); err != nil {
		return leasetime.Table{}, err
	}

	leases := make([]leasetime.Lease, 0, len(raw.DHCP))
	for _, l := range raw.DHCP {
		leases = append(leases, leasetime.Lease{MAC: macaddr.Canonical(l.MACAddr), ExpiresIn: int64(l.Expires)})
	}

	return withDurations(ctx, leases, u.durations), nil
}

// FileLeases reads the dnsmasq lease file directly.
type FileLeases struct {
	file      *dhcp.LeaseFile
	durations DurationSource
	now       func() time.Time
}

// NewFileLeases returns the lease feed over file. durations may be nil.
func NewFileLeases(file *dhcp.LeaseFile, durations DurationSource) *FileLeases {
	return &FileLeases{file: file, durations: durations, now: time.Now}
}

func (f *FileLeases) LeaseTable(ctx context.Context) (leasetime.Table, error) {
	leases, err := f.file.Read()
	if err != nil {
		return leasetime.Table{}, err
	}

	return withDurations(ctx, dhcp.Remaining(leases, f.now()), f.durations), nil
}

// withDurations attaches configured durations. Without them every lease age
// is unknown, which is logged but not an error.
func withDurations(ctx context.Context, leases []leasetime.Lease, src DurationSource) leasetime.Table {
	t := leasetime.Table{Leases: leases}
	if src == nil {
		return t
	}

	d, err := src.LeaseDurations(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("lease durations unavailable")

		return t
	}

	t.DefaultDuration = d.Default
	t.HostDurations = d.Hosts

	return t
}
