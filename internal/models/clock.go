package models

// ClockTime is a wall-clock selector as the dashboard presents it: a 12-hour
// value with an AM/PM meridiem.
type ClockTime struct {
	Hour     int    `json:"h"`
	Minute   int    `json:"m"`
	Meridiem string `json:"ampm"`
}

// Hour24 converts to a 24-hour value (12 AM is 0, 12 PM is 12).
func (c ClockTime) Hour24() int {
	h := c.Hour % 12
	if c.Meridiem == "PM" {
		h += 12
	}
	return h
}

// Default time-range bounds: a full day from midnight through 11:59 PM.
var (
	StartOfDay = ClockTime{Hour: 12, Minute: 0, Meridiem: "AM"}
	EndOfDay   = ClockTime{Hour: 11, Minute: 59, Meridiem: "PM"}
)
