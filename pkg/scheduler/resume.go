package scheduler

import "time"

// NextStart returns a random instant for the next day-cycle to begin. r is a
// fraction in [0, 1) that picks an instant within now's local day. If that
// instant is not after now it moves to the same wall-clock time tomorrow, so
// the result is always after now and before midnight two days out.
func NextStart(now time.Time, r float64) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := midnight.Add(time.Duration(r * float64(24*time.Hour)))
	if !start.After(now) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}
