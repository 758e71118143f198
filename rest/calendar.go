package rest

import (
	"time"
	_ "time/tzdata"

	"github.com/scmhub/calendar"
)

// KRXMIC is the ISO 10383 code of the Korea Exchange.
const KRXMIC = "xkrx"

// TradingCalendar answers trading-day questions for request dates. Without
// calendar data it falls back to Monday to Friday, 09:00 to 15:30 KST.
type TradingCalendar struct {
	cal *calendar.Calendar
}

func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{cal: calendar.GetCalendar(KRXMIC)}
}

func (c *TradingCalendar) loaded() bool {
	return c != nil && c.cal != nil
}

func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	if c.loaded() {
		return c.cal.IsBusinessDay(t.In(c.cal.Loc))
	}
	wd := t.In(KST).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsOpen reports whether the regular session is running at t.
func (c *TradingCalendar) IsOpen(t time.Time) bool {
	if c.loaded() {
		return c.cal.IsOpen(t.In(c.cal.Loc))
	}
	if !c.IsTradingDay(t) {
		return false
	}
	local := t.In(KST)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= 9*60 && minutes < 15*60+30
}

// LastTradingDay returns midnight KST of the latest trading day on or before t.
func (c *TradingCalendar) LastTradingDay(t time.Time) time.Time {
	local := t.In(KST)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, KST)
	// long exchange holidays never exceed a couple of weeks
	for i := 0; i < 31 && !c.IsTradingDay(day); i++ {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
