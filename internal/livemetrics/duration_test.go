package livemetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"zero", "00:00:00", 0},
		{"seconds only", "00:00:05", 5000},
		{"minutes and seconds", "00:02:03", 123000},
		{"hours minutes seconds", "01:00:00", 3600000},
		{"with day prefix", "1.00:00:00", 86400000},
		{"with day prefix and fraction", "1111.22:33:44.123456", 96071624123},
		{"fractional milliseconds", "00:00:01.5000000", 1500},
		{"fractional short digits", "00:00:00.5", 500},
		{"fractional long digits truncate", "00:00:00.1234567", 123},
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
		{"malformed no colons", "garbage", 0},
		{"malformed too few segments", "00:00", 0},
		{"negative hours rejected", "-01:00:00", 0},
		{"non numeric fraction", "00:00:00.abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDuration(tt.in))
		})
	}
}

func TestFormatDurationText_RoundTripsWholeMilliseconds(t *testing.T) {
	for _, ms := range []int64{0, 500, 1500, 61000, 3723456} {
		text := formatDurationText(ms)
		assert.Equal(t, ms, parseDuration(text), "round trip for %d", ms)
	}
}

func TestFormatDurationText_NegativeClampsToZero(t *testing.T) {
	assert.Equal(t, "00:00:00.000", formatDurationText(-100))
}
