package warehouse

import (
	"time"

	"dwbuild/internal/source"
)

// fallbackWindow is used when no order carries a usable date
const fallbackWindow = 365

// Day is one row of the date dimension
type Day struct {
	Date    time.Time
	Key     int
	Year    int
	Month   int
	Day     int
	Weekday string
}

// Calendar is a contiguous run of days
type Calendar struct {
	Days []Day
	// Fallback is set when the range came from the clock, not from orders.
	Fallback bool

	index map[int]int
}

// DateKey returns YYYYMMDD for the calendar day of t
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildCalendar spans the earliest to the latest order date over every order
// batch. Without any order date it covers the 365 days up to now.
func BuildCalendar(now time.Time, batches ...[]source.OrderRecord) *Calendar {
	var lo, hi time.Time
	found := false
	for _, orders := range batches {
		for _, o := range orders {
			if o.OrderDate == nil {
				continue
			}
			d := midnight(*o.OrderDate)
			if !found || d.Before(lo) {
				lo = d
			}
			if !found || d.After(hi) {
				hi = d
			}
			found = true
		}
	}

	c := &Calendar{}
	if !found {
		hi = midnight(now)
		lo = hi.AddDate(0, 0, -fallbackWindow)
		c.Fallback = true
	}

	n := int(hi.Sub(lo).Hours()/24) + 1
	c.Days = make([]Day, 0, n)
	c.index = make(map[int]int, n)
	for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
		key := DateKey(d)
		c.index[key] = len(c.Days)
		c.Days = append(c.Days, Day{
			Date:    d,
			Key:     key,
			Year:    d.Year(),
			Month:   int(d.Month()),
			Day:     d.Day(),
			Weekday: d.Weekday().String(),
		})
	}
	return c
}

// Len returns the number of days
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Days)
}

// Start returns the first day
func (c *Calendar) Start() time.Time {
	return c.Days[0].Date
}

// End returns the last day
func (c *Calendar) End() time.Time {
	return c.Days[len(c.Days)-1].Date
}

// KeyFor returns the date key of t when the calendar covers it.
func (c *Calendar) KeyFor(t *time.Time) (int, bool) {
	if c == nil || t == nil {
		return 0, false
	}
	key := DateKey(*t)
	_, ok := c.index[key]
	return key, ok
}
