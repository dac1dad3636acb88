package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

const (
	// Window is how far back Detect looks.
	Window = 30 * 24 * time.Hour

	UnusualHourFrom = 2
	UnusualHourTo   = 5

	RapidToggleGap = 5 * time.Minute
	LongShift      = 18 * time.Hour
)

// Recent returns the events younger than Window relative to now, sorted by
// timestamp.  The input slice is left untouched.
func Recent(events []types.AttendanceEvent, now time.Time) []types.AttendanceEvent {
	out := make([]types.AttendanceEvent, 0, len(events))
	for _, e := range events {
		if now.Sub(e.Timestamp) < Window {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// UnusualTime flags events whose local hour is between UnusualHourFrom and
// UnusualHourTo inclusive.
func UnusualTime(events []types.AttendanceEvent, loc *time.Location) []types.AnomalyReport {
	var out []types.AnomalyReport
	for _, e := range events {
		hour := e.Timestamp.In(loc).Hour()
		if hour < UnusualHourFrom || hour > UnusualHourTo {
			continue
		}
		h := hour
		out = append(out, types.AnomalyReport{
			Kind:     types.AnomalyUnusualTime,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("%s at %02d:00", e.Kind, hour),
			Evidence: types.Evidence{EventIDs: []string{e.ID}, Hour: &h},
		})
	}
	return out
}

// RapidToggle flags adjacent events closer than RapidToggleGap.  events must
// be in chronological order.
func RapidToggle(events []types.AttendanceEvent) []types.AnomalyReport {
	var out []types.AnomalyReport
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap >= RapidToggleGap {
			continue
		}
		out = append(out, types.AnomalyReport{
			Kind:     types.AnomalyRapidToggle,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("toggled again after %d seconds", int(gap.Round(time.Second).Seconds())),
			Evidence: types.Evidence{EventIDs: []string{prev.ID, cur.ID}, Gap: gap},
		})
	}
	return out
}

// LongDuration flags check-out events that close an interval longer than
// LongShift.  A later check-in restarts the open interval.  events must be in
// chronological order.
func LongDuration(events []types.AttendanceEvent) []types.AnomalyReport {
	var out []types.AnomalyReport
	var open *types.AttendanceEvent

	for i := range events {
		e := &events[i]
		switch e.Kind {
		case types.CheckIn:
			open = e
		case types.CheckOut:
			if open == nil {
				continue
			}
			if d := e.Timestamp.Sub(open.Timestamp); d > LongShift {
				out = append(out, types.AnomalyReport{
					Kind:     types.AnomalyLongDuration,
					Severity: types.SeverityMedium,
					Message:  fmt.Sprintf("%.1f hour shift", d.Hours()),
					Evidence: types.Evidence{EventIDs: []string{open.ID, e.ID}, Duration: d},
				})
			}
			open = nil
		}
	}
	return out
}

// Detect runs every attendance rule over the recent events and returns all
// hits together.
func Detect(events []types.AttendanceEvent, now time.Time, loc *time.Location) []types.AnomalyReport {
	if loc == nil {
		loc = time.Local
	}
	recent := Recent(events, now)

	var out []types.AnomalyReport
	out = append(out, UnusualTime(recent, loc)...)
	out = append(out, RapidToggle(recent)...)
	out = append(out, LongDuration(recent)...)
	return out
}
