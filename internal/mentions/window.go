package mentions

import (
	"time"

	"github.com/brandlens/brandlens/internal/models"
)

// Window is an inclusive time range derived from a duration preset and the
// dashboard's from/to clock selectors.
type Window struct {
	Lower time.Time
	Upper time.Time
}

// NewWindow computes the range for "last durationDays days": the lower bound
// is now's date minus (durationDays - 1) at the from-time, so duration 1
// means today only. The upper bound is today at the to-time with seconds
// forced to 59.999 for inclusivity. A to-time earlier in the day than the
// from-time does not wrap across midnight; the window still spans lower date
// through today.
func NewWindow(durationDays int, from, to models.ClockTime, now time.Time) Window {
	if durationDays < 1 {
		durationDays = 1
	}

	year, month, day := now.AddDate(0, 0, -(durationDays - 1)).Date()
	lower := time.Date(year, month, day, from.Hour24(), from.Minute, 0, 0, now.Location())

	year, month, day = now.Date()
	upper := time.Date(year, month, day, to.Hour24(), to.Minute, 59, int(999*time.Millisecond), now.Location())

	return Window{Lower: lower, Upper: upper}
}

// FullDays is the window for "last durationDays days" spanning whole days.
func FullDays(durationDays int, now time.Time) Window {
	return NewWindow(durationDays, models.StartOfDay, models.EndOfDay, now)
}

// Contains reports whether the post's timestamp falls inside the window.
// Posts with no resolvable date pass unconditionally: unknown-date content
// must never be hidden by a time filter.
func (w Window) Contains(post *models.Post) bool {
	ts := post.Timestamp()
	if ts == nil {
		return true
	}
	return !ts.Before(w.Lower) && !ts.After(w.Upper)
}
