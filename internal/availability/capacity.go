package availability

import (
	"time"

	"github.com/wellspring/booking-core/internal/utils"
)

// CapacityWindow is an unbooked pre-generated slot of the legacy read path.
type CapacityWindow struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// CapacityCandidates groups legacy capacity slots by their calendar date in loc.
// It replaces SlotsForDate for services that carry no declarative rule.
func CapacityCandidates(slots []CapacityWindow, loc *time.Location) DaySlots {
	if loc == nil {
		loc = time.UTC
	}
	out := make(DaySlots)
	for _, s := range slots {
		if !s.EndsAt.After(s.StartsAt) {
			continue
		}
		start := s.StartsAt.In(loc)
		date := utils.FormatDate(start)
		out[date] = append(out[date], utils.TimeOf(start).String())
	}
	for date, times := range out {
		out[date] = normalize(times)
	}
	return out
}
