// Package macaddr holds the canonical hardware-address form used as the key
// across every feed and the annotation store: uppercase, colon separated.
package macaddr

import (
	"strings"

	customerrors "github.com/bavix/presence/internal/errors"
)

const hexDigits = 12

// Canonical uppercases and trims mac without validating it. Feeds report
// addresses in mixed case; this is the form used for joins.
func Canonical(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}

// Normalize validates mac and returns it as XX:XX:XX:XX:XX:XX.
// Colons, dashes, dots and spaces are accepted as separators.
func Normalize(mac string) (string, error) {
	r := strings.NewReplacer(":", "", "-", "", ".", "", " ", "")
	raw := strings.ToUpper(r.Replace(mac))

	if len(raw) != hexDigits {
		return "", customerrors.ErrMACAddressInvalidLength
	}

	for _, c := range raw {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", customerrors.ErrMACAddressInvalidCharacters
		}
	}

	var b strings.Builder

	b.Grow(hexDigits + hexDigits/2 - 1)

	for i := 0; i < hexDigits; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}

		b.WriteString(raw[i : i+2])
	}

	return b.String(), nil
}

// Valid reports whether mac normalizes cleanly.
func Valid(mac string) bool {
	_, err := Normalize(mac)

	return err == nil
}
