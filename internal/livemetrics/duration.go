package livemetrics

import (
	"strconv"
	"strings"
)

const msPerSecond = 1000

// parseDuration parses the wire duration format `[d.]hh:mm:ss.fffffff` used
// by the telemetry pipeline and returns the truncated whole-millisecond
// value. The fractional part may carry any number of digits; it is
// interpreted as a fraction of one second (e.g. "123456" means 0.123456s)
// and truncated toward zero when converted to milliseconds. Invalid input
// yields 0 without an error — malformed durations must never fail
// ingestion (spec §3, §8 property 9, §8 E6).
func parseDuration(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	days := int64(0)
	rest := s
	if idx := strings.Index(s, "."); idx >= 0 {
		// A day prefix is present only when the text before the first dot
		// looks like a day count rather than the fractional separator of
		// hh:mm:ss — distinguish by checking whether that segment also
		// contains the "hh:mm:ss" colons that must follow.
		if colonIdx := strings.Index(s, ":"); colonIdx < 0 || idx < colonIdx {
			d, err := strconv.ParseInt(s[:idx], 10, 64)
			if err != nil {
				return 0
			}
			days = d
			rest = s[idx+1:]
		}
	}

	// rest is now "hh:mm:ss[.fffffff]"
	secPart := rest
	fracPart := ""
	if idx := strings.Index(rest, "."); idx >= 0 {
		secPart = rest[:idx]
		fracPart = rest[idx+1:]
	}

	parts := strings.Split(secPart, ":")
	if len(parts) != 3 {
		return 0
	}

	hh, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hh < 0 {
		return 0
	}
	mm, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || mm < 0 {
		return 0
	}
	ss, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || ss < 0 {
		return 0
	}
	if days < 0 {
		return 0
	}

	totalSeconds := days*86400 + hh*3600 + mm*60 + ss
	ms := totalSeconds * msPerSecond

	if fracPart != "" {
		fracMs, ok := fractionToMillis(fracPart)
		if !ok {
			return 0
		}
		ms += fracMs
	}

	return ms
}

// fractionToMillis interprets digits as a fraction of one second and
// truncates toward zero at the millisecond. "123456" -> 0.123456s -> 123ms.
func fractionToMillis(digits string) (int64, bool) {
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	if digits == "" {
		return 0, true
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}

	// value represents `digits` over 10^len(digits) seconds. Converting to
	// milliseconds means multiplying by 1000 and dividing by 10^len(digits).
	n := len(digits)
	if n <= 3 {
		// fewer than 3 digits: pad to milliseconds precision.
		for i := n; i < 3; i++ {
			value *= 10
		}
		return value, true
	}

	divisor := int64(1)
	for i := 0; i < n-3; i++ {
		divisor *= 10
	}
	return value / divisor, true
}
