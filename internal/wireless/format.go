package wireless

import (
	"strconv"
	"strings"
)

const (
	GenerationWiFi4 = "Wi-Fi 4"
	GenerationWiFi5 = "Wi-Fi 5"
	GenerationWiFi6 = "Wi-Fi 6"
)

// ProtocolGeneration picks the newest generation flagged on either direction.
func ProtocolGeneration(rx, tx RateInfo) string {
	switch {
	case rx.HE || tx.HE:
		return GenerationWiFi6
	case rx.VHT || tx.VHT:
		return GenerationWiFi5
	case rx.HT || tx.HT:
		return GenerationWiFi4
	default:
		return ""
	}
}

// FrequencyBand maps a GHz frequency string to its band label.
func FrequencyBand(freq string) string {
	freq = strings.TrimSpace(freq)

	switch {
	case freq == "":
		return ""
	case strings.HasPrefix(freq, "2"):
		return "2.4G"
	case strings.HasPrefix(freq, "5"):
		return "5G"
	}

	v, err := strconv.ParseFloat(freq, 64)
	if err != nil {
		return freq
	}

	return strconv.FormatFloat(v, 'f', 1, 64) + "G"
}

// RateDescriptor renders e.g. "866.7 Mbit/s, 80 MHz, MCS: 9, NSS: 2, Short GI".
// MCS and the fields after it are only shown for HT, VHT or HE links.
func RateDescriptor(r RateInfo) string {
	var b strings.Builder

	b.WriteString(strconv.FormatFloat(float64(r.Rate)/1000, 'f', -1, 64))
	b.WriteString(" Mbit/s, ")
	b.WriteString(strconv.Itoa(r.MHz))
	b.WriteString(" MHz")

	if !r.HT && !r.VHT && !r.HE {
		return b.String()
	}

	b.WriteString(", MCS: ")
	b.WriteString(strconv.Itoa(r.MCS))

	if r.NSS != 0 {
		b.WriteString(", NSS: ")
		b.WriteString(strconv.Itoa(r.NSS))
	}

	if r.ShortGI {
		b.WriteString(", Short GI")
	}

	if r.HEGI != 0 {
		b.WriteString(", HE-GI ")
		b.WriteString(strconv.Itoa(r.HEGI))
	}

	if r.HEDCM != 0 {
		b.WriteString(", HE-DCM ")
		b.WriteString(strconv.Itoa(r.HEDCM))
	}

	return b.String()
}

// SignalText is "<signal>/<noise>dBm", or "<signal>dBm" without a noise floor.
func SignalText(signal, noise int) string {
	if noise != 0 {
		return strconv.Itoa(signal) + "/" + strconv.Itoa(noise) + "dBm"
	}

	return strconv.Itoa(signal) + "dBm"
}
