package rateconfig

import "time"

// IsOpen reports whether withdrawal requests may be created at the given
// instant. Pure day-of-month comparison; the window is inclusive on both
// ends. Days beyond the current month's length are clamped, so an EndDay of
// 31 still covers the last day of February.
func IsOpen(now time.Time, w Window) bool {
	day := now.Day()
	return day >= clampDay(now, w.StartDay) && day <= clampDay(now, w.EndDay)
}

// NextWindow returns the bounds of the nearest open window: the current
// month's window if it has not finished yet, otherwise next month's. The
// returned times span from midnight on the start day to the end of the end
// day, in the location of now.
func NextWindow(now time.Time, w Window) (start, end time.Time) {
	year, month := now.Year(), now.Month()
	if now.Day() > clampDay(now, w.EndDay) {
		year, month = time.Date(year, month+1, 1, 0, 0, 0, 0, now.Location()).Year(),
			time.Date(year, month+1, 1, 0, 0, 0, 0, now.Location()).Month()
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	start = time.Date(year, month, clampDay(first, w.StartDay), 0, 0, 0, 0, now.Location())
	end = time.Date(year, month, clampDay(first, w.EndDay), 23, 59, 59, 0, now.Location())
	return start, end
}

// clampDay limits a configured day to the length of t's month.
func clampDay(t time.Time, day int) int {
	last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > last {
		return last
	}
	return day
}
