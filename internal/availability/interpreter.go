package availability

import (
	"slices"
	"time"

	"github.com/wellspring/booking-core/internal/utils"
)

// SlotsForDate lists the candidate start times ("HH:MM", ascending, no
// duplicates) that rule offers on date. An unscheduled day yields an empty list.
func SlotsForDate(rule *Rule, durationMin int, date time.Time) []string {
	if rule == nil {
		return []string{}
	}
	spec := rule.specFor(date)
	if spec == nil {
		return []string{}
	}
	return sortedUnique(spec.starts(durationMin))
}

func (r *Rule) specFor(date time.Time) SlotSpec {
	day := utils.WeekdayName(date)

	if r.ScheduleType == ScheduleCustom {
		for _, key := range []string{utils.FormatDate(date), utils.FullWeekdayName(date), day} {
			// A present but empty override falls through like a missing one.
			if spec, ok := r.CustomSchedules[key]; ok && spec != nil && spec.Len() > 0 {
				return spec
			}
		}
	}

	if _, ok := r.Days[day]; ok {
		return r.TimeSlots
	}
	return nil
}

func sortedUnique(times []utils.TimeOfDay) []string {
	mins := make([]int, 0, len(times))
	for _, t := range times {
		mins = append(mins, t.TotalMinutes())
	}
	slices.Sort(mins)
	mins = slices.Compact(mins)

	out := make([]string, 0, len(mins))
	for _, m := range mins {
		out = append(out, utils.FromMinutes(m).String())
	}
	return out
}

// normalize sorts and de-duplicates "HH:MM" strings, dropping unparsable ones.
func normalize(times []string) []string {
	return sortedUnique(LiteralSlots(times).starts(0))
}
