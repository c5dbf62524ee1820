package feeds

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/macaddr"
)

const (
	IwprivPath       = "/usr/sbin/iwpriv"
	DefaultIwprivDev = "ra0"
)

// IwprivDisconnector kicks stations on MediaTek proprietary drivers, which
// do not expose hostapd over ubus.
type IwprivDisconnector struct {
	runner CommandRunner
	device string
}

// NewIwprivDisconnector targets device (default ra0).
func NewIwprivDisconnector(runner CommandRunner, device string) *IwprivDisconnector {
	if device == "" {
		device = DefaultIwprivDev
	}

	return &IwprivDisconnector{runner: runner, device: device}
}

func (d *IwprivDisconnector) Disconnect(ctx context.Context, mac string) error {
	mac = macaddr.Canonical(mac)

	if _, err := d.runner.Run(ctx, IwprivPath, d.device, "set", "DisConnectSta="+mac); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("mac", mac).Str("iface", d.device).Msg("station disconnected")

	return nil
}
