package retry

import (
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FullJitter returns a wait sampled uniformly from
// [0, min(maxBackoff, base*2^attempt)]. rnd returns a value in [0,1); nil
// uses math/rand.
func FullJitter(attempt int, base, maxBackoff time.Duration, rnd func() float64) time.Duration {
	if rnd == nil {
		rnd = rand.Float64
	}
	upper := float64(base) * math.Pow(2, float64(attempt))
	if upper > float64(maxBackoff) {
		upper = float64(maxBackoff)
	}
	if upper <= 0 {
		return 0
	}
	return time.Duration(rnd() * upper)
}

// zone-less layouts are parsed as UTC by time.Parse.
var retryAfterLayouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04:05",
	"02 Jan 2006 15:04:05",
}

// maxRetryAfterSecs is the largest delta that fits in a time.Duration.
const maxRetryAfterSecs = math.MaxInt64 / int64(time.Second)

func secondsToDuration(secs int64) time.Duration {
	return time.Duration(min(max(secs, 0), maxRetryAfterSecs)) * time.Second
}

// ParseRetryAfter parses a Retry-After header value, either delta seconds or
// an HTTP-date, into a wait relative to now. The result is whole seconds and
// never negative. ok is false for empty or unparsable values.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	// Out-of-range integers come back clamped to the int64 bounds.
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		return secondsToDuration(secs), true
	}

	for _, layout := range retryAfterLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return secondsToDuration(int64(t.Sub(now) / time.Second)), true
	}
	return 0, false
}
