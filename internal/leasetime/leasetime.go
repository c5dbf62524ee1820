// Package leasetime converts DHCP lease-duration strings into seconds and
// derives how long a device has held its current lease.
package leasetime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	customerrors "github.com/bavix/presence/internal/errors"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400

	// zeroLeaseSeconds is what dnsmasq grants when the configured magnitude is 0.
	zeroLeaseSeconds = 120
	// minLeaseMinutes is the smallest lease dnsmasq accepts in minutes.
	minLeaseMinutes = 2
)

var durationRe = regexp.MustCompile(`^(\d+)([dhm])$`)

// ParseDuration converts "<n>d", "<n>h" or "<n>m" into seconds.
// Any other input, including bare numbers and seconds, reports ok=false.
func ParseDuration(text string) (int64, bool) {
	seconds, err := parseDuration(text)

	return seconds, err == nil
}

// ParseDurationErr is ParseDuration with the failure reason attached.
func ParseDurationErr(text string) (int64, error) {
	return parseDuration(text)
}

func parseDuration(text string) (int64, error) {
	m := durationRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", customerrors.ErrMalformedLeaseDuration, text)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", customerrors.ErrMalformedLeaseDuration, text)
	}

	if n == 0 {
		return zeroLeaseSeconds, nil
	}

	var unit int64

	switch m[2] {
	case "d":
		unit = secondsPerDay
	case "h":
		unit = secondsPerHour
	default:
		unit = secondsPerMinute
		if n < minLeaseMinutes {
			n = minLeaseMinutes
		}
	}

	if n > math.MaxInt64/unit {
		return 0, fmt.Errorf("%w: %q overflows", customerrors.ErrMalformedLeaseDuration, text)
	}

	return n * unit, nil
}

// Lease is a single active lease as reported by the DHCP server.
type Lease struct {
	MAC       string `json:"mac"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Table is the raw lease feed: active leases plus the configured durations
// they were granted under.
type Table struct {
	Leases []Lease `json:"leases"`
	// DefaultDuration is the network-wide lease time, e.g. "12h".
	DefaultDuration string `json:"defaultDuration,omitempty"`
	// HostDurations maps uppercase MAC to a per-host lease time override.
	HostDurations map[string]string `json:"hostDurations,omitempty"`
}

// Policy holds lease durations already converted to seconds.
type Policy struct {
	// NetworkDefault is 0 when unknown.
	NetworkDefault int64
	Overrides      map[string]int64
}

// PolicyFromTable parses the duration strings of t. Per-host values that do
// not parse fall back to the network default. Malformed strings are returned
// as warnings so the caller can log them.
func PolicyFromTable(t Table) (Policy, []error) {
	var warnings []error

	p := Policy{Overrides: make(map[string]int64, len(t.HostDurations))}

	if t.DefaultDuration != "" {
		v, err := parseDuration(t.DefaultDuration)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("network default: %w", err))
		} else {
			p.NetworkDefault = v
		}
	}

	for mac, raw := range t.HostDurations {
		v, err := parseDuration(raw)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("host %s: %w", mac, err))

			continue
		}

		p.Overrides[strings.ToUpper(mac)] = v
	}

	return p, warnings
}

// Duration returns the lease duration granted to mac, or 0 when unknown.
func (p Policy) Duration(mac string) int64 {
	if v, ok := p.Overrides[strings.ToUpper(mac)]; ok {
		return v
	}

	return p.NetworkDefault
}

// ComputeOnlineDurations returns, per uppercase MAC, how many seconds have
// elapsed since the lease was granted. Leases with no remaining time are
// omitted, as are leases whose duration is unknown.
func ComputeOnlineDurations(leases []Lease, overrides map[string]int64, networkDefault int64) map[string]int64 {
	p := Policy{NetworkDefault: networkDefault, Overrides: make(map[string]int64, len(overrides))}
	for mac, v := range overrides {
		p.Overrides[strings.ToUpper(mac)] = v
	}

	return p.OnlineDurations(leases)
}

// OnlineDurations is ComputeOnlineDurations over a parsed policy.
func (p Policy) OnlineDurations(leases []Lease) map[string]int64 {
	out := make(map[string]int64, len(leases))

	for _, l := range leases {
		if l.ExpiresIn <= 0 {
			continue
		}

		mac := strings.ToUpper(l.MAC)

		total := p.Duration(mac)
		if total <= 0 {
			continue
		}

		out[mac] = total - l.ExpiresIn
	}

	return out
}
