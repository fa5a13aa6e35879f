package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// clock holds a timestamp broken down to whole milliseconds.
type clock struct {
	h, m, s, ms int64
}

// toClock rounds seconds to the nearest millisecond (half to even) and splits
// it into fields. Hours are not bounded.
func toClock(seconds float64) clock {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMs := int64(math.RoundToEven(seconds * 1000))

	totalS := totalMs / 1000
	totalM := totalS / 60
	return clock{
		h:  totalM / 60,
		m:  totalM % 60,
		s:  totalS % 60,
		ms: totalMs % 1000,
	}
}

// FormatTimestamp renders seconds as an SRT timecode, HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	c := toClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", c.h, c.m, c.s, c.ms)
}

func formatVTTTime(seconds float64) string {
	c := toClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", c.h, c.m, c.s, c.ms)
}

func formatASSTime(seconds float64) string {
	c := toClock(seconds)
	return fmt.Sprintf("%d:%02d:%02d.%02d", c.h, c.m, c.s, c.ms/10)
}

var timecodeRegex = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})$`)

// ParseTimestamp parses an SRT timecode back into seconds.
func ParseTimestamp(tc string) (float64, error) {
	m := timecodeRegex.FindStringSubmatch(tc)
	if m == nil {
		return 0, fmt.Errorf("invalid timecode %q", tc)
	}

	var fields [4]int64
	for i := range fields {
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", tc, err)
		}
		fields[i] = v
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid timecode %q: field out of range", tc)
	}

	totalMs := ((fields[0]*60+fields[1])*60+fields[2])*1000 + fields[3]
	return float64(totalMs) / 1000, nil
}
