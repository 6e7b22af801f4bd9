package util

import "time"

// NowUTC is the default clock for token timestamps; tests substitute a fixed one.
func NowUTC() time.Time {
	return time.Now().UTC()
}
