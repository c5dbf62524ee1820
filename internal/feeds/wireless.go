package feeds

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/wireless"
)

// UbusWireless enumerates wireless interfaces and stations via ubus iwinfo.
type UbusWireless struct {
	ubus *Ubus
}

// NewUbusWireless returns the wireless feed.
func NewUbusWireless(ubus *Ubus) *UbusWireless {
	return &UbusWireless{ubus: ubus}
}

type iwinfoDevices struct {
	Devices []string `json:"devices"`
}

type iwinfoInfo struct {
	SSID      string `json:"ssid"`
	Mode      string `json:"mode"`
	Frequency int    `json:"frequency"`
}

type iwinfoRate struct {
	Rate    int64 `json:"rate"`
	MHz     int   `json:"mhz"`
	HT      bool  `json:"ht"`
	VHT     bool  `json:"vht"`
	HE      bool  `json:"he"`
	MCS     int   `json:"mcs"`
	NSS     int   `json:"nss"`
	ShortGI bool  `json:"short_gi"`
	HEGI    int   `json:"he_gi"`
	HEDCM   int   `json:"he_dcm"`
}

type iwinfoStation struct {
	MAC           string     `json:"mac"`
	Signal        int        `json:"signal"`
	Noise         int        `json:"noise"`
	ConnectedTime int64      `json:"connected_time"`
	RX            iwinfoRate `json:"rx"`
	TX            iwinfoRate `json:"tx"`
}

type iwinfoAssocList struct {
	Results []iwinfoStation `json:"results"`
}

type deviceArg struct {
	Device string `json:"device"`
}

// WirelessNetworks lists every radio interface with its stations. An
// interface whose info or station list cannot be read is skipped; only a
// failure to enumerate interfaces fails the feed.
func (w *UbusWireless) WirelessNetworks(ctx context.Context) ([]wireless.Network, error) {
	log := zerolog.Ctx(ctx)

	var devs iwinfoDevices
	if err := w.ubus.Call(ctx, "iwinfo", "devices", nil, &devs); err != nil {
		return nil, err
	}

	networks := make([]wireless.Network, 0, len(devs.Devices))

	for _, dev := range devs.Devices {
		var info iwinfoInfo
		if err := w.ubus.Call(ctx, "iwinfo", "info", deviceArg{Device: dev}, &info); err != nil {
			log.Debug().Err(err).Str("device", dev).Msg("iwinfo info failed, skipping interface")

			continue
		}

		var assoc iwinfoAssocList
		if err := w.ubus.Call(ctx, "iwinfo", "assoclist", deviceArg{Device: dev}, &assoc); err != nil {
			log.Debug().Err(err).Str("device", dev).Msg("iwinfo assoclist failed, skipping interface")

			continue
		}

		net := wireless.Network{
			SSID:      info.SSID,
			Frequency: mhzToGHz(info.Frequency),
			Interface: dev,
			Stations:  make([]wireless.Station, 0, len(assoc.Results)),
		}

		for _, st := range assoc.Results {
			net.Stations = append(net.Stations, wireless.Station{
				MAC:           st.MAC,
				Signal:        st.Signal,
				Noise:         st.Noise,
				RX:            st.RX.toRateInfo(),
				TX:            st.TX.toRateInfo(),
				ConnectedTime: st.ConnectedTime,
			})
		}

		networks = append(networks, net)
	}

	return networks, nil
}

func (r iwinfoRate) toRateInfo() wireless.RateInfo {
	return wireless.RateInfo{
		Rate:    r.Rate,
		MHz:     r.MHz,
		HT:      r.HT,
		VHT:     r.VHT,
		HE:      r.HE,
		MCS:     r.MCS,
		NSS:     r.NSS,
		ShortGI: r.ShortGI,
		HEGI:    r.HEGI,
		HEDCM:   r.HEDCM,
	}
}

// mhzToGHz renders 2412 as "2.412". Unknown frequency stays empty.
func mhzToGHz(mhz int) string {
	if mhz <= 0 {
		return ""
	}

	return strconv.FormatFloat(float64(mhz)/1000, 'f', 3, 64) //nolint:mnd // MHz per GHz
}
