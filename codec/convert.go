package codec

import (
	"strconv"
	"strings"
	"time"
)

// defaultDateLayout matches the common log format timestamp, e.g.
// "05/Apr/2007:05:37:11 -0600".
const defaultDateLayout = "02/Jan/2006:15:04:05 -0700"

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// parseDateTime parses with the term's layout when set, falling back to the
// common log layout. A record written without a zone still parses: the zone
// suffix of the layout is dropped for a second attempt.
func parseDateTime(s, layout string) (time.Time, error) {
	if layout == "" {
		layout = defaultDateLayout
	}
	ts, err := time.Parse(layout, s)
	if err == nil {
		return ts, nil
	}
	if trimmed, ok := strings.CutSuffix(layout, " -0700"); ok {
		if ts, err2 := time.Parse(trimmed, strings.TrimRight(s, " ")); err2 == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}
