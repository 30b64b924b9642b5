package alert

import "time"

// throttle tracks the last-fired time per alert key. It is owned by the
// dispatcher goroutine alone, so no locking is needed. Comparisons use the
// event's own capture timestamp rather than wall-clock time, so throttling
// stays correct even if processing lags behind capture.
type throttle map[Key]time.Time

// allow reports whether an event at time at may fire for key, given the
// minimum interval. On pass it records at as the new last-fired time.
func (t throttle) allow(key Key, at time.Time, interval time.Duration) bool {
	if last, ok := t[key]; ok && at.Sub(last) < interval {
		return false
	}
	t[key] = at
	return true
}
