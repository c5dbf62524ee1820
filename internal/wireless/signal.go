package wireless

import "math"

// SignalLevel is a coarse quality bucket for a received signal strength.
type SignalLevel int

const (
	SignalNone SignalLevel = iota
	SignalWeak
	SignalFair
	SignalGood
	SignalExcellent
)

const (
	// signalFloor maps to 0% quality, signalFloor+signalSpan to 100%.
	signalFloor = -110
	signalSpan  = 70
)

var signalIcons = map[SignalLevel]string{ //nolint:gochecknoglobals // lookup table
	SignalNone:      "signal-0.png",
	SignalWeak:      "signal-0-25.png",
	SignalFair:      "signal-25-50.png",
	SignalGood:      "signal-50-75.png",
	SignalExcellent: "signal-75-100.png",
}

// Quality converts dBm into a percentage capped at 100.
// Readings below the floor go negative.
func Quality(dBm int) float64 {
	return math.Min(float64(dBm-signalFloor)/signalSpan*100, 100)
}

// ClassifySignal buckets dBm into one of five levels. Only a reading exactly
// at the floor is no signal; anything weaker is still the lowest bar.
func ClassifySignal(dBm int) SignalLevel {
	q := Quality(dBm)

	switch {
	case q == 0:
		return SignalNone
	case q < 25:
		return SignalWeak
	case q < 50:
		return SignalFair
	case q < 75:
		return SignalGood
	default:
		return SignalExcellent
	}
}

// Icon is the icon file name for the level.
func (l SignalLevel) Icon() string {
	if icon, ok := signalIcons[l]; ok {
		return icon
	}

	return signalIcons[SignalNone]
}

func (l SignalLevel) String() string {
	switch l {
	case SignalNone:
		return "none"
	case SignalWeak:
		return "weak"
	case SignalFair:
		return "fair"
	case SignalGood:
		return "good"
	case SignalExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// SignalIcon is shorthand for ClassifySignal(dBm).Icon().
func SignalIcon(dBm int) string {
	return ClassifySignal(dBm).Icon()
}
