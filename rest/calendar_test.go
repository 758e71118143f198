package rest

import (
	"testing"
	"time"
)

func TestTradingCalendar(t *testing.T) {
	calendars := map[string]*TradingCalendar{
		"krx":      NewTradingCalendar(),
		"fallback": nil,
	}

	for name, cal := range calendars {
		t.Run(name, func(t *testing.T) {
			wednesday := time.Date(2024, 1, 3, 0, 0, 0, 0, KST)
			saturday := time.Date(2024, 1, 6, 0, 0, 0, 0, KST)
			sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, KST)

			if !cal.IsTradingDay(wednesday) {
				t.Errorf("expected %v to be a trading day", wednesday)
			}
			if cal.IsTradingDay(saturday) {
				t.Errorf("expected %v not to be a trading day", saturday)
			}

			want := time.Date(2024, 1, 5, 0, 0, 0, 0, KST)
			if got := cal.LastTradingDay(sunday); !got.Equal(want) {
				t.Errorf("LastTradingDay(%v) = %v, expected %v", sunday, got, want)
			}

			if cal.IsOpen(saturday.Add(10 * time.Hour)) {
				t.Error("expected market closed on Saturday")
			}
			if !cal.IsOpen(wednesday.Add(11 * time.Hour)) {
				t.Error("expected market open Wednesday 11:00 KST")
			}
			if cal.IsOpen(wednesday.Add(20 * time.Hour)) {
				t.Error("expected market closed Wednesday 20:00 KST")
			}
		})
	}
}
