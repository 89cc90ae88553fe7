// Package timeparse normalizes ISO-8601 timestamps returned by the agent and
// orchestrator services. Servers emit fractional seconds anywhere between 0
// and 9+ digits; Go layouts want a fixed shape, so the fraction is rewritten
// to exactly six digits (microseconds) before parsing.
package timeparse

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutFrac   = "2006-01-02T15:04:05.000000Z07:00"
	layoutNoFrac = "2006-01-02T15:04:05Z07:00"
)

// Normalize parses an ISO-8601 timestamp with a trailing Z or an explicit
// numeric offset. Fractional seconds longer than six digits are truncated,
// never rounded; shorter fractions are right-padded with zeros. The empty
// string maps to the zero time without error.
func Normalize(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	base, frac, offset, err := split(s)
	if err != nil {
		return time.Time{}, err
	}

	if frac == "" {
		return time.Parse(layoutNoFrac, base+offset)
	}

	if len(frac) > 6 {
		frac = frac[:6]
	} else if len(frac) < 6 {
		frac += strings.Repeat("0", 6-len(frac))
	}
	return time.Parse(layoutFrac, base+"."+frac+offset)
}

// split separates "2024-12-15T10:30:00.123456789Z" into the seconds-precision
// base, the raw fractional digits, and the offset suffix ("Z" or "+02:00").
func split(s string) (base, frac, offset string, err error) {
	tIdx := strings.IndexByte(s, 'T')
	if tIdx < 0 {
		return "", "", "", fmt.Errorf("timestamp %q missing time component", s)
	}

	rest := s
	switch {
	case strings.HasSuffix(s, "Z"), strings.HasSuffix(s, "z"):
		offset = "Z"
		rest = s[:len(s)-1]
	default:
		// Numeric offset: the sign must appear after the time separator so
		// date dashes are not mistaken for it.
		signIdx := strings.LastIndexAny(s, "+-")
		if signIdx <= tIdx {
			return "", "", "", fmt.Errorf("timestamp %q has no UTC designator or offset", s)
		}
		offset = s[signIdx:]
		rest = s[:signIdx]
	}

	if dotIdx := strings.IndexByte(rest, '.'); dotIdx >= 0 {
		base = rest[:dotIdx]
		frac = rest[dotIdx+1:]
		if frac == "" {
			return "", "", "", fmt.Errorf("timestamp %q has empty fractional component", s)
		}
		for _, r := range frac {
			if r < '0' || r > '9' {
				return "", "", "", fmt.Errorf("timestamp %q has non-digit fractional component", s)
			}
		}
	} else {
		base = rest
	}
	return base, frac, offset, nil
}
