// Package markethours answers "is the market open" for a configurable
// Mon–Fri trading session. The monitoring scheduler only runs ticks
// inside the session window.
package markethours

import (
	"fmt"
	"time"
)

// Session describes one market's trading window in its local time zone.
// A zero OpenHour/OpenMinute with zero CloseHour/CloseMinute is invalid;
// use NewYorkSession or build one explicitly.
type Session struct {
	Location    *time.Location
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int

	// IsHoliday optionally marks full-day closures. Nil means no
	// holiday calendar.
	IsHoliday func(t time.Time) bool
}

// NewYorkSession returns the default US equities session:
// 9:30 AM – 4:00 PM America/New_York, Mon–Fri.
func NewYorkSession() Session {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fixed-offset fallback; EST only, no DST.
		loc = time.FixedZone("EST", -5*3600)
	}
	return Session{
		Location:    loc,
		OpenHour:    9,
		OpenMinute:  30,
		CloseHour:   16,
		CloseMinute: 0,
	}
}

// IsOpen returns true if t falls within the session window on a trading
// day.
func (s Session) IsOpen(t time.Time) bool {
	lt := t.In(s.Location)
	if !s.isTradingDay(lt) {
		return false
	}
	hm := lt.Hour()*60 + lt.Minute()
	return hm >= s.OpenHour*60+s.OpenMinute && hm < s.CloseHour*60+s.CloseMinute
}

func (s Session) isTradingDay(lt time.Time) bool {
	wd := lt.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if s.IsHoliday != nil && s.IsHoliday(lt) {
		return false
	}
	return true
}

// NextOpen returns the next session open at or after t. If t is before
// today's open on a trading day, that open is returned.
func (s Session) NextOpen(t time.Time) time.Time {
	lt := t.In(s.Location)

	todayOpen := time.Date(lt.Year(), lt.Month(), lt.Day(), s.OpenHour, s.OpenMinute, 0, 0, s.Location)
	if lt.Before(todayOpen) && s.isTradingDay(lt) {
		return todayOpen
	}

	d := lt.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ { // weekends + holiday runs
		if s.isTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), s.OpenHour, s.OpenMinute, 0, 0, s.Location)
		}
		d = d.AddDate(0, 0, 1)
	}
	// Fallback: tomorrow's open.
	return todayOpen.AddDate(0, 0, 1)
}

// TodayClose returns the session close on t's day.
func (s Session) TodayClose(t time.Time) time.Time {
	lt := t.In(s.Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.CloseHour, s.CloseMinute, 0, 0, s.Location)
}

// TimeUntilClose returns the duration until the session close, or 0 if
// the session is already closed.
func (s Session) TimeUntilClose(t time.Time) time.Duration {
	d := s.TodayClose(t).Sub(t.In(s.Location))
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status for logs and the
// status endpoint.
func (s Session) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("market open — closes in %s", fmtDur(s.TimeUntilClose(t)))
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("market closed — opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
