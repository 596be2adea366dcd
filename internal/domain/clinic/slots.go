package clinic

import (
	"fmt"
	"strings"
	"time"
)

// Lunch break window, excluded from every generated day.
const (
	lunchStartMinutes = 12 * 60
	lunchEndMinutes   = 13 * 60
)

// GenerateSlots computes the candidate start times for one date. It is a pure
// function of the clinic's weekly hours, the already-booked times for that
// date, and the slot interval.
//
// Slots run from the day's open time up to but not including the close time,
// spaced exactly interval minutes apart, skipping the 12:00-13:00 lunch
// window. A slot is unavailable when its "HH:MM" time exactly matches a
// booked time. A day with no hours entry, a malformed window, or a close
// time at or before the open time yields no slots.
func GenerateSlots(hours WeekHours, date time.Time, booked []string, intervalMinutes int) []TimeSlot {
	if intervalMinutes <= 0 {
		return nil
	}

	day, ok := hours[weekdayKey(date)]
	if !ok {
		return nil
	}

	openAt, err := parseClockMinutes(day.Open)
	if err != nil {
		return nil
	}
	closeAt, err := parseClockMinutes(day.Close)
	if err != nil {
		return nil
	}
	if closeAt <= openAt {
		return nil
	}

	bookedSet := make(map[string]bool, len(booked))
	for _, b := range booked {
		bookedSet[b] = true
	}

	var slots []TimeSlot
	for m := openAt; m < closeAt; m += intervalMinutes {
		if m >= lunchStartMinutes && m < lunchEndMinutes {
			continue
		}
		t := formatClockMinutes(m)
		slots = append(slots, TimeSlot{Time: t, Available: !bookedSet[t]})
	}
	return slots
}

// weekdayKey returns the lowercase weekday name used as a WeekHours key.
func weekdayKey(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}

// parseClockMinutes converts "HH:MM" to minutes since midnight.
func parseClockMinutes(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

func formatClockMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
