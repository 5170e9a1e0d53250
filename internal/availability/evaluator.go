// Package availability classifies calendar dates of a program as available,
// full or closed. The result is advisory: evaluating a date reserves nothing.
package availability

import "time"

// Day statuses
const (
	Available = "available"
	Full      = "full"
	Closed    = "closed"
)

// Unlimited is the remaining count reported for dates without a slot row.
const Unlimited = 9999

const dateLayout = "2006-01-02"

// Slot is the configured capacity of one date.
type Slot struct {
	TotalSlots int
	IsOpen     bool
}

// Day is the evaluated state of one date.
type Day struct {
	Date       string `json:"date"`
	Status     string `json:"status"`
	TotalSlots int    `json:"total_slots"`
	Booked     int    `json:"booked"`
	Remaining  int    `json:"remaining"`
	Unlimited  bool   `json:"unlimited"`
	Disabled   bool   `json:"disabled"` // past dates can never be picked
}

// Bookable reports whether a guest may pick the date.
func (d Day) Bookable() bool {
	return !d.Disabled && d.Status == Available
}

// Fits reports whether a party of pax still fits on the date.
func (d Day) Fits(pax int) bool {
	return d.Bookable() && (d.Unlimited || pax <= d.Remaining)
}

// Evaluate classifies date given its slot row (nil when none exists) and the
// pax already booked on it. Dates are compared by calendar day, so today
// must already be expressed in the company's time zone.
func Evaluate(slot *Slot, booked int, date, today time.Time) Day {
	day := Day{
		Date:     date.Format(dateLayout),
		Booked:   booked,
		Disabled: CalendarDate(date).Before(CalendarDate(today)),
	}

	switch {
	case slot == nil:
		day.Status = Available
		day.Remaining = Unlimited
		day.Unlimited = true
	case !slot.IsOpen:
		day.Status = Closed
		day.TotalSlots = slot.TotalSlots
		day.Remaining = 0
	default:
		day.TotalSlots = slot.TotalSlots
		day.Remaining = slot.TotalSlots - booked
		if day.Remaining < 0 {
			day.Remaining = 0
		}
		day.Status = Available
		if day.Remaining <= 0 {
			day.Status = Full
		}
	}
	return day
}

// Month evaluates every date of a month. slots and booked are keyed by
// DateKey; missing keys mean no slot row and nothing booked.
func Month(year int, month time.Month, loc *time.Location, slots map[string]Slot, booked map[string]int, today time.Time) []Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	days := make([]Day, 0, 31)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		key := DateKey(d)
		var slot *Slot
		if s, ok := slots[key]; ok {
			slot = &s
		}
		days = append(days, Evaluate(slot, booked[key], d, today))
	}
	return days
}

// DateKey formats a date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate reads YYYY-MM-DD as a calendar date. The result is midnight UTC so
// it compares equal to dates stored in date columns.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// CalendarDate drops the clock and zone of t, keeping its calendar date as
// midnight UTC.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

