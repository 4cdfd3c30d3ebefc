package deadline

import (
	"math"
	"time"
)

// Clock policy: pure remaining-time arithmetic against a deadline rule.
// Offsets are applied as fixed-length durations (a "day" is exactly 24h)
// so results are independent of zone and DST, matching the legacy case
// tracker's millisecond arithmetic.

const day = 24 * time.Hour

// RemainingCalendarDays returns ceil((base + offsetDays - now) / 1 day).
// Negative means the deadline already passed.
func RemainingCalendarDays(base time.Time, offsetDays int, now time.Time) int {
	deadline := base.Add(time.Duration(offsetDays) * day)
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

// RemainingBusinessDaysApprox approximates N business days as round(N/15*21)
// calendar days, then re-expresses the calendar remainder as business days by
// the inverse ratio, clamped at zero. This is deliberately not a real
// business-day calendar; the fixed 15/21 ratio is preserved bit-for-bit from
// the legacy tracker.
func RemainingBusinessDaysApprox(base time.Time, offsetBusinessDays int, now time.Time) int {
	remaining := RemainingCalendarDays(base, approxCalendarDays(offsetBusinessDays), now)
	approx := int(math.Round(float64(remaining) * 15 / 21))
	if approx < 0 {
		return 0
	}
	return approx
}

// approxCalendarDays converts approximate business days to calendar days by
// the fixed 15/21 ratio.
func approxCalendarDays(businessDays int) int {
	return int(math.Round(float64(businessDays) / 15 * 21))
}

// RemainingHours returns ceil((base + offsetHours - now) / 1 hour).
// Negative means the deadline already passed.
func RemainingHours(base time.Time, offsetHours int, now time.Time) int {
	deadline := base.Add(time.Duration(offsetHours) * time.Hour)
	return int(math.Ceil(deadline.Sub(now).Hours()))
}
