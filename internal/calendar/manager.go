package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/wellspring/booking-core/internal/utils"
)

// Loader computes the filtered slots of one window.
type Loader func(ctx context.Context, w Window) (Week, error)

type Action string

const (
	ActionCurrent  Action = "current"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSelect   Action = "select"
)

// View is what a caller renders after navigation.
type View struct {
	Week
	// Empty when no date in the window has a slot.
	SelectedDate    string `json:"selected_date"`
	PreviousAllowed bool   `json:"previous_allowed"`
	// True when the requested move was refused (previous before current week).
	Rejected     bool `json:"rejected"`
	AutoAdvanced bool `json:"auto_advanced"`
}

// Manager drives window navigation over a Loader. It holds no window state.
type Manager struct {
	load Loader
	now  func() time.Time
	loc  *time.Location
}

func NewManager(load Loader, loc *time.Location, now func() time.Time) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{load: load, now: now, loc: loc}
}

// Navigate applies action to w and computes the resulting view. selected is
// the caller's chosen date (YYYY-MM-DD) or empty; for ActionSelect it is required.
func (m *Manager) Navigate(ctx context.Context, w Window, action Action, selected string) (View, error) {
	now := m.now().In(m.loc)
	current := CurrentWindow(now)

	if w.Start.IsZero() {
		w = current
	} else {
		// Re-anchor the caller's date in the engine's zone before snapping.
		y, mo, d := w.Start.Date()
		w.Start = time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
		w = w.Normalize()
	}
	if w.Start.Before(current.Start) {
		w.Start = current.Start
	}

	rejected := false
	autoAdvance := true

	switch action {
	case ActionNext:
		w = w.Next()
	case ActionPrevious:
		var ok bool
		w, ok = w.Previous(now)
		rejected = !ok
	case ActionSelect:
		d, err := utils.ParseDate(selected, m.loc)
		if err != nil {
			return View{}, err
		}
		if d.Before(current.Start) {
			return View{}, fmt.Errorf("%w: %s", ErrDateBeforeWindow, selected)
		}
		if !w.Contains(selected) {
			w = Window{Start: WindowFor(d).Start, AutoAdvanceCount: w.AutoAdvanceCount}
		}
		// An explicit date pins the window.
		autoAdvance = false
	case ActionCurrent, "":
	default:
		return View{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	week, advanced, err := m.compute(ctx, w, autoAdvance)
	if err != nil {
		return View{}, err
	}

	view := View{
		Week:            week,
		PreviousAllowed: week.Window.CanGoPrevious(now),
		Rejected:        rejected,
		AutoAdvanced:    advanced,
	}
	if selected != "" && week.HasDate(selected) {
		view.SelectedDate = selected
	} else if first, ok := week.FirstAvailable(); ok {
		view.SelectedDate = first
	}
	return view, nil
}

// compute loads w and, when it is empty and the bound allows, skips exactly
// one week ahead. Any non-empty result resets the counter.
func (m *Manager) compute(ctx context.Context, w Window, autoAdvance bool) (Week, bool, error) {
	week, err := m.load(ctx, w)
	if err != nil {
		return Week{}, false, err
	}
	week.Window = w

	advanced := false
	if week.Total() == 0 && autoAdvance && w.AutoAdvanceCount < MaxAutoAdvance {
		w = w.Next()
		w.AutoAdvanceCount++
		week, err = m.load(ctx, w)
		if err != nil {
			return Week{}, false, err
		}
		week.Window = w
		advanced = true
	}

	if week.Total() > 0 {
		week.Window.AutoAdvanceCount = 0
	}
	return week, advanced, nil
}
