package poller

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is how time values are rendered before normalisation.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatValue renders a reading as payload text.
//
// Floats always carry a fractional part ("50.0", not "50") so consumers can
// tell a measured quantity from a counter. Times use TimestampLayout.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(TimestampLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// NormalizeTimestamp replaces the date/time separator with "T".
// Applying it twice gives the same result as applying it once.
func NormalizeTimestamp(s string) string {
	return strings.ReplaceAll(s, " ", "T")
}

// Topic returns the topic a sensor's readings are published on.
func Topic(prefix, id string) string {
	return prefix + "/" + id
}
