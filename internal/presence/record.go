package presence

import (
	"github.com/bavix/presence/internal/annotations"
)

// ConnectionType classifies how a device reaches the router.
type ConnectionType string

const (
	ConnectionWifi  ConnectionType = "wifi"
	ConnectionWired ConnectionType = "wired"
)

const (
	// UnresolvedName is shown when no hostname hint exists.
	UnresolvedName = "?"
	// NoAddress stands in for a missing IP address.
	NoAddress = "-"

	maxNameRunes = 30
)

// WifiDetails carries the radio-side view of a wireless station.
type WifiDetails struct {
	SSID       string `json:"ssid"`
	Band       string `json:"band"`
	Interface  string `json:"interface,omitempty"`
	Signal     int    `json:"signal"`
	Noise      *int   `json:"noise"`
	SignalIcon string `json:"signalIcon"`
	SignalText string `json:"signalText"`
	Generation string `json:"generation"`
	RxRate     string `json:"rxRate"`
	TxRate     string `json:"txRate"`
}

// DeviceRecord is one row of the online-devices list.
type DeviceRecord struct {
	MAC            string         `json:"hardwareAddress"`
	DisplayName    string         `json:"displayName"`
	ConnectionType ConnectionType `json:"connectionType"`
	Wifi           *WifiDetails   `json:"wifiDetails,omitempty"`
	IPv4           string         `json:"ipv4Address"`
	IPv6           string         `json:"ipv6Address"`
	// OnlineSeconds is nil when the duration is unknown.
	OnlineSeconds *int64                  `json:"onlineDurationSeconds"`
	Annotation    *annotations.Annotation `json:"annotation,omitempty"`
}

// Label is the custom label when set, otherwise the display name.
func (r DeviceRecord) Label() string {
	if r.Annotation != nil && r.Annotation.Label != "" {
		return r.Annotation.Label
	}

	return r.DisplayName
}

// IconPath is the custom icon when set, otherwise fallback.
func (r DeviceRecord) IconPath(fallback string) string {
	if r.Annotation != nil && r.Annotation.IconPath != "" {
		return r.Annotation.IconPath
	}

	return fallback
}

// IsWifi reports whether the record came from a wireless association.
func (r DeviceRecord) IsWifi() bool { return r.ConnectionType == ConnectionWifi }

func displayName(hostname string) string {
	if hostname == "" {
		return UnresolvedName
	}

	runes := []rune(hostname)
	if len(runes) > maxNameRunes {
		return string(runes[:maxNameRunes])
	}

	return hostname
}

func orNoAddress(addr string) string {
	if addr == "" {
		return NoAddress
	}

	return addr
}
