package timestamp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

var thousand = decimal.NewFromInt(msPerSecond)

// Format renders seconds as HH:MM:SS,mmm. Milliseconds are truncated, not
// rounded. Hours widen past two digits when needed. Negative, NaN and
// infinite inputs render as 00:00:00,000.
func Format(seconds float64) string {
	return FormatMillis(Millis(seconds))
}

// Millis converts seconds to whole milliseconds, truncating toward zero.
func Millis(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	return decimal.NewFromFloat(seconds).Mul(thousand).IntPart()
}

// FormatMillis renders a millisecond count as HH:MM:SS,mmm.
func FormatMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / msPerHour
	ms -= hours * msPerHour
	minutes := ms / msPerMinute
	ms -= minutes * msPerMinute
	secs := ms / msPerSecond
	ms -= secs * msPerSecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

// Parse converts HH:MM:SS,mmm (or HH:MM:SS.mmm) back to seconds.
func Parse(value string) (float64, error) {
	ms, err := ParseMillis(value)
	if err != nil {
		return 0, err
	}
	return decimal.New(ms, -3).InexactFloat64(), nil
}

// ParseMillis converts a timestamp to whole milliseconds.
func ParseMillis(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	normalized := strings.Replace(trimmed, ".", ",", 1)
	clock, frac, ok := strings.Cut(normalized, ",")
	if !ok || frac == "" || len(frac) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := parseField(hms[0], -1)
	minutes, errM := parseField(hms[1], 59)
	secs, errS := parseField(hms[2], 59)
	millis, errMS := parseField(frac, 999)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	// "1,5" means 500 ms, matching how players read short fractions.
	for i := len(frac); i < 3; i++ {
		millis *= 10
	}
	return hours*msPerHour + minutes*msPerMinute + secs*msPerSecond + millis, nil
}

func parseField(text string, max int64) (int64, error) {
	if text == "" {
		return 0, fmt.Errorf("empty field")
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", text)
		}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, err
	}
	if max >= 0 && n > max {
		return 0, fmt.Errorf("field %d exceeds %d", n, max)
	}
	return n, nil
}
