package calendar

import (
	"errors"
	"time"

	"github.com/wellspring/booking-core/internal/utils"
)

var (
	ErrUnknownAction    = errors.New("unknown calendar action")
	ErrDateBeforeWindow = errors.New("date is before the current week")
)

const (
	// WindowLength is the number of days a window spans.
	WindowLength = 7
	// MaxAutoAdvance bounds automatic skipping of empty weeks. Not tunable.
	MaxAutoAdvance = 1
)

// Window is the displayed 7-day span. It is a value: navigation returns a new Window.
type Window struct {
	// Midnight of the Sunday that starts the week.
	Start time.Time `json:"start"`
	// How many empty weeks were skipped automatically since the last non-empty one.
	AutoAdvanceCount int `json:"auto_advance_count"`
}

// CurrentWindow is the window containing now.
func CurrentWindow(now time.Time) Window {
	return Window{Start: utils.StartOfWeek(now)}
}

// WindowFor is the window containing date.
func WindowFor(date time.Time) Window {
	return Window{Start: utils.StartOfWeek(date)}
}

// Normalize snaps Start to the start of its week.
func (w Window) Normalize() Window {
	w.Start = utils.StartOfWeek(w.Start)
	return w
}

// End is midnight of the last day of the window.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, 0, WindowLength-1)
}

// Dates lists the window's days in ascending order.
func (w Window) Dates() []time.Time {
	out := make([]time.Time, 0, WindowLength)
	for i := 0; i < WindowLength; i++ {
		out = append(out, w.Start.AddDate(0, 0, i))
	}
	return out
}

// Contains reports whether date (YYYY-MM-DD) falls inside the window.
func (w Window) Contains(date string) bool {
	return date >= utils.FormatDate(w.Start) && date <= utils.FormatDate(w.End())
}

// Next shifts the window one week forward.
func (w Window) Next() Window {
	w.Start = w.Start.AddDate(0, 0, WindowLength)
	return w
}

// Previous shifts the window one week back. It is refused, returning w
// unchanged and false, when the result would start before now's week.
func (w Window) Previous(now time.Time) (Window, bool) {
	prev := w
	prev.Start = w.Start.AddDate(0, 0, -WindowLength)
	if prev.Start.Before(utils.StartOfWeek(now.In(w.Start.Location()))) {
		return w, false
	}
	return prev, true
}

// CanGoPrevious reports whether Previous would be allowed.
func (w Window) CanGoPrevious(now time.Time) bool {
	_, ok := w.Previous(now)
	return ok
}

// Day is one date of a window with its bookable start times.
type Day struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

// Week is the computed content of a window.
type Week struct {
	Window Window `json:"window"`
	Days   []Day  `json:"days"`
	// Set when the reservation filter could not run.
	Degraded bool `json:"degraded"`
}

// Total counts slots across the week.
func (wk Week) Total() int {
	n := 0
	for _, d := range wk.Days {
		n += len(d.Times)
	}
	return n
}

// FirstAvailable returns the earliest date having at least one slot.
func (wk Week) FirstAvailable() (string, bool) {
	for _, d := range wk.Days {
		if len(d.Times) > 0 {
			return d.Date, true
		}
	}
	return "", false
}

// HasDate reports whether date is one of the week's days.
func (wk Week) HasDate(date string) bool {
	for _, d := range wk.Days {
		if d.Date == date {
			return true
		}
	}
	return false
}
