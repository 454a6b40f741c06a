package fetch

import (
	"time"

	"github.com/scmhub/calendar"
)

// Calendar answers trading-day questions for one exchange, so the ingest
// stage can skip runs whose candidate range holds no session at all.
type Calendar struct {
	cal      *calendar.Calendar
	fallback bool
}

// NewCalendar looks up an exchange calendar by MIC (ISO 10383, e.g. "xnys").
// Unknown MICs fall back to plain Monday-Friday.
func NewCalendar(mic string) *Calendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &Calendar{fallback: true}
	}
	return &Calendar{cal: cal}
}

// IsTradingDay reports whether the exchange holds a session on the given day.
func (c *Calendar) IsTradingDay(day time.Time) bool {
	if c.fallback {
		wd := day.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(day)
}

// HasTradingDay reports whether any day in [start, end] is a trading day.
func (c *Calendar) HasTradingDay(start, end time.Time) bool {
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			return true
		}
	}
	return false
}
