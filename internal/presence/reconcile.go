package presence

import (
	"github.com/bavix/presence/internal/annotations"
	"github.com/bavix/presence/internal/leasetime"
	"github.com/bavix/presence/internal/macaddr"
	"github.com/bavix/presence/internal/wireless"
)

// Inputs is everything a single pass merges.
type Inputs struct {
	Networks  []wireless.Network
	Neighbors []string
	Hints     HostHints
	// Online is the per-MAC lease age from leasetime.
	Online      map[string]int64
	Annotations annotations.Snapshot
	// IncludeWired enables the neighbor-table pass.
	IncludeWired bool
}

type emptyHints struct{}

func (emptyHints) Hostname(string) string { return "" }
func (emptyHints) IPv4(string) string     { return "" }
func (emptyHints) IPv6(string) string     { return "" }

// Reconcile merges the feeds into one list: wireless stations first, then
// neighbor-table entries not seen on any radio, sorted by display name.
// A MAC appears at most once; the first wireless association wins.
func Reconcile(in Inputs) []DeviceRecord {
	hints := in.Hints
	if hints == nil {
		hints = emptyHints{}
	}

	seen := make(map[string]struct{})
	records := make([]DeviceRecord, 0, len(in.Neighbors))

	for _, net := range in.Networks {
		band := wireless.FrequencyBand(net.Frequency)

		for _, st := range net.Stations {
			mac := macaddr.Canonical(st.MAC)
			if mac == "" {
				continue
			}

			if _, dup := seen[mac]; dup {
				continue
			}

			seen[mac] = struct{}{}

			records = append(records, wifiRecord(mac, net, band, st, hints, in.Annotations))
		}
	}

	if in.IncludeWired {
		for _, raw := range in.Neighbors {
			mac := macaddr.Canonical(raw)
			if mac == "" {
				continue
			}

			if _, dup := seen[mac]; dup {
				continue
			}

			seen[mac] = struct{}{}

			records = append(records, wiredRecord(mac, hints, in.Online, in.Annotations))
		}
	}

	sortRecords(records)

	return records
}

func wifiRecord(
	mac string,
	net wireless.Network,
	band string,
	st wireless.Station,
	hints HostHints,
	notes annotations.Snapshot,
) DeviceRecord {
	details := &WifiDetails{
		SSID:       net.SSID,
		Band:       band,
		Interface:  net.Interface,
		Signal:     st.Signal,
		SignalIcon: wireless.SignalIcon(st.Signal),
		SignalText: wireless.SignalText(st.Signal, st.Noise),
		Generation: wireless.ProtocolGeneration(st.RX, st.TX),
		RxRate:     wireless.RateDescriptor(st.RX),
		TxRate:     wireless.RateDescriptor(st.TX),
	}

	if st.Noise != 0 {
		noise := st.Noise
		details.Noise = &noise
	}

	r := baseRecord(mac, ConnectionWifi, hints, notes)
	r.Wifi = details

	if st.ConnectedTime > 0 {
		t := st.ConnectedTime
		r.OnlineSeconds = &t
	}

	return r
}

func wiredRecord(mac string, hints HostHints, online map[string]int64, notes annotations.Snapshot) DeviceRecord {
	r := baseRecord(mac, ConnectionWired, hints, notes)

	if t, ok := online[mac]; ok && t > 0 {
		r.OnlineSeconds = &t
	}

	return r
}

func baseRecord(mac string, kind ConnectionType, hints HostHints, notes annotations.Snapshot) DeviceRecord {
	r := DeviceRecord{
		MAC:            mac,
		DisplayName:    displayName(hints.Hostname(mac)),
		ConnectionType: kind,
		IPv4:           orNoAddress(hints.IPv4(mac)),
		IPv6:           orNoAddress(hints.IPv6(mac)),
	}

	if a, ok := notes.Get(mac); ok {
		r.Annotation = &a
	}

	return r
}

// Counts returns how many wifi and wired records are in list.
func Counts(list []DeviceRecord) (int, int) {
	var wifi, wired int

	for _, r := range list {
		if r.IsWifi() {
			wifi++
		} else {
			wired++
		}
	}

	return wifi, wired
}

// OnlineDurations is a convenience over leasetime for a raw lease table.
func OnlineDurations(t leasetime.Table) (map[string]int64, []error) {
	p, warnings := leasetime.PolicyFromTable(t)

	return p.OnlineDurations(t.Leases), warnings
}
