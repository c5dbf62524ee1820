package wireless_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bavix/presence/internal/wireless"
)

func TestProtocolGeneration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rx   wireless.RateInfo
		tx   wireless.RateInfo
		want string
	}{
		{name: "he on rx wins over vht and ht", rx: wireless.RateInfo{HE: true}, tx: wireless.RateInfo{VHT: true, HT: true}, want: "Wi-Fi 6"},
		{name: "he on tx only", tx: wireless.RateInfo{HE: true}, want: "Wi-Fi 6"},
		{name: "vht", rx: wireless.RateInfo{VHT: true, HT: true}, want: "Wi-Fi 5"},
		{name: "ht", tx: wireless.RateInfo{HT: true}, want: "Wi-Fi 4"},
		{name: "legacy", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, wireless.ProtocolGeneration(tt.rx, tt.tx))
		})
	}
}

func TestFrequencyBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "2.412", want: "2.4G"},
		{input: "2.484", want: "2.4G"},
		{input: "5.180", want: "5G"},
		{input: "5.825", want: "5G"},
		{input: "6.115", want: "6.1G"},
		{input: "60.48", want: "60.5G"},
		{input: "n/a", want: "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, wireless.FrequencyBand(tt.input))
		})
	}
}

func TestRateDescriptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rate wireless.RateInfo
		want string
	}{
		{
			name: "legacy omits mcs",
			rate: wireless.RateInfo{Rate: 54000, MHz: 20, MCS: 7},
			want: "54 Mbit/s, 20 MHz",
		},
		{
			name: "fractional rate",
			rate: wireless.RateInfo{Rate: 866700, MHz: 80, VHT: true, MCS: 9, NSS: 2, ShortGI: true},
			want: "866.7 Mbit/s, 80 MHz, MCS: 9, NSS: 2, Short GI",
		},
		{
			name: "ht without nss",
			rate: wireless.RateInfo{Rate: 65000, MHz: 20, HT: true, MCS: 7},
			want: "65 Mbit/s, 20 MHz, MCS: 7",
		},
		{
			name: "he with gi and dcm",
			rate: wireless.RateInfo{Rate: 1201000, MHz: 80, HE: true, MCS: 11, NSS: 2, HEGI: 1, HEDCM: 1},
			want: "1201 Mbit/s, 80 MHz, MCS: 11, NSS: 2, HE-GI 1, HE-DCM 1",
		},
		{
			name: "mcs zero is still shown",
			rate: wireless.RateInfo{Rate: 6500, MHz: 20, HT: true},
			want: "6.5 Mbit/s, 20 MHz, MCS: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, wireless.RateDescriptor(tt.rate))
		})
	}
}

func TestSignalText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-52/-95dBm", wireless.SignalText(-52, -95))
	assert.Equal(t, "-52dBm", wireless.SignalText(-52, 0))
}
