package trafgen

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// rate suffixes and their value in bits per second
var rateUnits = map[string]float64{
	"":     1,
	"bps":  1,
	"b/s":  1,
	"kbps": 1e3, "Kbps": 1e3, "kb/s": 1e3, "Kb/s": 1e3,
	"Mbps": 1e6, "mbps": 1e6, "Mb/s": 1e6,
	"Gbps": 1e9, "gbps": 1e9, "Gb/s": 1e9,
	"Bps":  8,
	"B/s":  8,
	"KBps": 8e3, "kBps": 8e3, "KB/s": 8e3, "kB/s": 8e3,
	"MBps": 8e6, "MB/s": 8e6,
	"GBps": 8e9, "GB/s": 8e9,
}

// ParseDataRate converts a rate such as "40Mbps", "5 Mb/s" or "125KBps" into
// bits per second.  A bare number is taken as bits per second
func ParseDataRate(s string) (float64, error) {
	str := strings.TrimSpace(s)
	split := len(str)
	for idx, r := range str {
		if !(r >= '0' && r <= '9') && r != '.' && r != 'e' && r != 'E' && r != '+' && r != '-' {
			split = idx
			break
		}
	}
	// an 'e' directly followed by a unit letter is not an exponent
	numStr := str[:split]
	for len(numStr) > 0 && (numStr[len(numStr)-1] == 'e' || numStr[len(numStr)-1] == 'E') {
		numStr = numStr[:len(numStr)-1]
		split -= 1
	}
	unit := strings.TrimSpace(str[split:])

	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidRate, "data rate %q", s)
	}
	scale, present := rateUnits[unit]
	if !present {
		return 0, errors.Wrapf(ErrInvalidRate, "data rate %q: unknown unit %q", s, unit)
	}
	rate := value * scale
	if !(rate > 0.0) || math.IsInf(rate, 0) {
		return 0, errors.Wrapf(ErrInvalidRate, "data rate %q", s)
	}
	return rate, nil
}

// FormatDataRate renders bits per second with the largest unit that leaves a
// value of at least 1
func FormatDataRate(bps float64) string {
	switch {
	case bps >= 1e9:
		return strconv.FormatFloat(bps/1e9, 'f', -1, 64) + "Gbps"
	case bps >= 1e6:
		return strconv.FormatFloat(bps/1e6, 'f', -1, 64) + "Mbps"
	case bps >= 1e3:
		return strconv.FormatFloat(bps/1e3, 'f', -1, 64) + "kbps"
	default:
		return strconv.FormatFloat(bps, 'f', -1, 64) + "bps"
	}
}
