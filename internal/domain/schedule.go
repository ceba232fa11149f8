package domain

import "time"

const MinutesPerDay = 24 * 60

// MinuteOfDay returns minutes since local midnight, ignoring seconds.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// MinutesUntil returns how many minutes from now the daily instant hour:minute
// next occurs. An instant equal to the current minute is a full day away: the
// boundary has just passed, so its next occurrence is tomorrow.
func MinutesUntil(now time.Time, hour, minute int) int {
	d := ((hour*60 + minute) - MinuteOfDay(now) + MinutesPerDay) % MinutesPerDay
	if d == 0 {
		return MinutesPerDay
	}
	return d
}

// MinutesUntilMark is MinutesUntil for an hourly mark: the result is in [1,60].
func MinutesUntilMark(now time.Time, minute int) int {
	d := (minute - now.Minute() + 60) % 60
	if d == 0 {
		return 60
	}
	return d
}

// ShouldFlash reports whether the screen-flash cue fires at now. Flash is
// evaluated locally on the exact minute boundary, independent of the
// notification service.
func ShouldFlash(now time.Time, enabled bool, minutes MinuteSet, prefs Preferences) bool {
	if !enabled || !prefs.FlashEnabled {
		return false
	}
	return now.Second() == 0 && minutes.Has(now.Minute())
}
