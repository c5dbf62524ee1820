// Package wireless models the wireless association feed and renders the
// human-readable signal and rate descriptors shown per station.
package wireless

// Network is one active wireless interface with its associated stations.
type Network struct {
	SSID string `json:"ssid"`
	// Frequency in GHz as a decimal string, e.g. "2.412" or "5.180".
	Frequency string    `json:"frequency"`
	Interface string    `json:"interface"`
	Stations  []Station `json:"stations"`
}

// Station is a single associated client as reported by the driver.
type Station struct {
	MAC    string `json:"mac"`
	Signal int    `json:"signal"`
	// Noise is 0 when the driver does not report it.
	Noise int      `json:"noise"`
	RX    RateInfo `json:"rx"`
	TX    RateInfo `json:"tx"`
	// ConnectedTime is seconds since association, 0 when not reported.
	ConnectedTime int64 `json:"connectedTime"`
}

// RateInfo is one direction of a station's link rate.
type RateInfo struct {
	// Rate in kbit/s.
	Rate    int64 `json:"rate"`
	MHz     int   `json:"mhz"`
	HT      bool  `json:"ht"`
	VHT     bool  `json:"vht"`
	HE      bool  `json:"he"`
	MCS     int   `json:"mcs"`
	NSS     int   `json:"nss"`
	ShortGI bool  `json:"shortGi"`
	HEGI    int   `json:"heGi"`
	HEDCM   int   `json:"heDcm"`
}
