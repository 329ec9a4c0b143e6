package availability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wellspring/booking-core/internal/utils"
)

type ScheduleType string

const (
	ScheduleWeekly ScheduleType = "weekly"
	ScheduleCustom ScheduleType = "custom"
)

// Window is a {start, end} range sliced into appointments of the service duration.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SlotSpec is the shape of a timeSlots list: either LiteralSlots or WindowSlots.
type SlotSpec interface {
	// starts returns the candidate start times; order and duplicates are not guaranteed.
	starts(durationMin int) []utils.TimeOfDay
	// Len is the number of entries of the list as written in the rule.
	Len() int
}

// LiteralSlots lists discrete appointment start times.
type LiteralSlots []string

// WindowSlots lists ranges to be sliced by duration.
type WindowSlots []Window

func (l LiteralSlots) Len() int { return len(l) }
func (w WindowSlots) Len() int  { return len(w) }

func (l LiteralSlots) starts(int) []utils.TimeOfDay {
	out := make([]utils.TimeOfDay, 0, len(l))
	for _, s := range l {
		t, err := utils.ParseTime(s)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (w WindowSlots) starts(durationMin int) []utils.TimeOfDay {
	if durationMin <= 0 {
		return nil
	}
	var out []utils.TimeOfDay
	for _, win := range w {
		if strings.TrimSpace(win.Start) == "" || strings.TrimSpace(win.End) == "" {
			continue
		}
		start, err := utils.ParseTime(win.Start)
		if err != nil {
			continue
		}
		end, err := utils.ParseEndOfRange(win.End)
		if err != nil {
			continue
		}
		// Closed at the end: a slot finishing exactly at the window end fits.
		for cur := start.TotalMinutes(); cur+durationMin <= end; cur += durationMin {
			out = append(out, utils.FromMinutes(cur))
		}
	}
	return out
}

// Rule is a decoded availability rule of a service.
type Rule struct {
	ScheduleType ScheduleType
	// Canonical weekday names ("Mon", "Tue", ...).
	Days      map[string]struct{}
	TimeSlots SlotSpec
	// Keyed by exact date (YYYY-MM-DD) or weekday name.
	CustomSchedules map[string]SlotSpec
}

type ruleJSON struct {
	ScheduleType    string                  `json:"scheduleType"`
	Days            []string                `json:"days"`
	TimeSlots       json.RawMessage         `json:"timeSlots"`
	CustomSchedules map[string]overrideJSON `json:"customSchedules"`
}

type overrideJSON struct {
	TimeSlots json.RawMessage `json:"timeSlots"`
	Slots     json.RawMessage `json:"slots"`
}

// ParseRule decodes the stored JSON form of a rule.
func ParseRule(data []byte) (*Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode availability rule: %w", err)
	}

	r.ScheduleType = ScheduleWeekly
	if strings.EqualFold(strings.TrimSpace(raw.ScheduleType), string(ScheduleCustom)) {
		r.ScheduleType = ScheduleCustom
	}

	r.Days = make(map[string]struct{}, len(raw.Days))
	for _, d := range raw.Days {
		if day, ok := utils.NormalizeWeekday(d); ok {
			r.Days[day] = struct{}{}
		}
	}

	spec, err := decodeSlotSpec(raw.TimeSlots)
	if err != nil {
		return fmt.Errorf("decode timeSlots: %w", err)
	}
	r.TimeSlots = spec

	r.CustomSchedules = make(map[string]SlotSpec, len(raw.CustomSchedules))
	for key, o := range raw.CustomSchedules {
		field := o.TimeSlots
		if isEmptyJSON(field) {
			field = o.Slots
		}
		spec, err := decodeSlotSpec(field)
		if err != nil {
			return fmt.Errorf("decode customSchedules[%q]: %w", key, err)
		}
		r.CustomSchedules[key] = spec
	}
	// Weekday keys written as "monday" or "tues" are also reachable by canonical name.
	for key, spec := range r.CustomSchedules {
		if day, ok := utils.NormalizeWeekday(key); ok {
			if _, exists := r.CustomSchedules[day]; !exists {
				r.CustomSchedules[day] = spec
			}
		}
	}
	return nil
}

// decodeSlotSpec resolves a loose timeSlots list into one concrete shape.
// The first non-null entry decides; entries of the other shape are dropped.
func decodeSlotSpec(data json.RawMessage) (SlotSpec, error) {
	if isEmptyJSON(data) {
		return LiteralSlots{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	var (
		literals LiteralSlots
		windows  WindowSlots
		isWindow *bool
	)
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || string(item) == "null" {
			continue
		}
		object := item[0] == '{'
		if isWindow == nil {
			isWindow = &object
		}
		if object != *isWindow {
			continue
		}
		if object {
			var w Window
			if err := json.Unmarshal(item, &w); err != nil {
				return nil, err
			}
			windows = append(windows, w)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, err
		}
		literals = append(literals, s)
	}

	if isWindow != nil && *isWindow {
		return windows, nil
	}
	if literals == nil {
		literals = LiteralSlots{}
	}
	return literals, nil
}

func isEmptyJSON(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
