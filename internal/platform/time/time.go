// Package time contains time related helpers
package time

import "time"

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// NowUTC returns the current time in UTC truncated to microseconds,
// matching the precision stored for capture timestamps
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Deref returns the zero time if pt is nil, else *pt
func Deref(pt *time.Time) time.Time {
	if pt == nil {
		return time.Time{}
	}
	return *pt
}
