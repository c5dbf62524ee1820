package feeds

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog"

	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/macaddr"
	"github.com/bavix/presence/internal/presence"
	"github.com/bavix/presence/internal/wireless"
)

const (
	deauthReason = 5
	banTimeMs    = 5000
)

// HostapdDisconnector kicks a station off the radio it is associated with.
type HostapdDisconnector struct {
	ubus     *Ubus
	wireless presence.WirelessSource
}

// NewHostapdDisconnector locates stations through source.
func NewHostapdDisconnector(ubus *Ubus, source presence.WirelessSource) *HostapdDisconnector {
	return &HostapdDisconnector{ubus: ubus, wireless: source}
}

type delClientArgs struct {
	Addr    string `json:"addr"`
	Deauth  bool   `json:"deauth"`
	Reason  int    `json:"reason"`
	BanTime int    `json:"ban_time"`
}

// Disconnect deauthenticates mac on every interface it is associated with
// and bans it briefly so it does not reassociate immediately.
func (d *HostapdDisconnector) Disconnect(ctx context.Context, mac string) error {
	mac = macaddr.Canonical(mac)

	networks, err := d.wireless.WirelessNetworks(ctx)
	if err != nil {
		return err
	}

	var (
		errs  []error
		found bool
	)

	for _, net := range networks {
		if !slices.ContainsFunc(net.Stations, func(s wireless.Station) bool { return macaddr.Canonical(s.MAC) == mac }) {
			continue
		}

		found = true

		args := delClientArgs{Addr: mac, Deauth: true, Reason: deauthReason, BanTime: banTimeMs}
		if err := d.ubus.Call(ctx, "hostapd."+net.Interface, "del_client", args, nil); err != nil {
			errs = append(errs, err)

			continue
		}

		zerolog.Ctx(ctx).Info().Str("mac", mac).Str("iface", net.Interface).Msg("station disconnected")
	}

	if !found {
		return customerrors.ErrDeviceNotAssociatedWithMAC(mac)
	}

	return errors.Join(errs...)
}
