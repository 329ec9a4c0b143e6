package availability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wellspring/booking-core/internal/utils"
)

// DaySlots maps a calendar date (YYYY-MM-DD) to its start times.
type DaySlots map[string][]string

// Total counts the slots across all dates.
func (d DaySlots) Total() int {
	n := 0
	for _, times := range d {
		n += len(times)
	}
	return n
}

// ReservedSlot is the part of a reservation the resolver needs.
type ReservedSlot struct {
	ServiceID string
	Date      string
	StartTime string
}

// ReservationSource lists live reservations of one service between two dates (inclusive).
type ReservationSource interface {
	ReservedSlots(ctx context.Context, serviceID string, from, to time.Time) ([]ReservedSlot, error)
}

// Resolver removes past and already reserved times from raw candidate slots.
type Resolver struct {
	source ReservationSource
	log    *zap.Logger
}

func NewResolver(source ReservationSource, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{source: source, log: log}
}

// Resolve filters raw for serviceID as seen at now. When reservations cannot
// be read, the reservation stage is skipped and degraded is true.
func (r *Resolver) Resolve(ctx context.Context, serviceID string, raw DaySlots, now time.Time) (out DaySlots, degraded bool) {
	out = make(DaySlots, len(raw))
	today := utils.FormatDate(now)
	nowMin := utils.TimeOf(now).TotalMinutes()

	var from, to string
	for date, times := range raw {
		times = normalize(times)
		if date == today {
			times = filterTimes(times, func(t utils.TimeOfDay) bool {
				return t.TotalMinutes() > nowMin
			})
		}
		out[date] = times

		if from == "" || date < from {
			from = date
		}
		if to == "" || date > to {
			to = date
		}
	}
	if len(out) == 0 || r.source == nil {
		return out, false
	}

	fromDate, errFrom := utils.ParseDate(from, time.UTC)
	toDate, errTo := utils.ParseDate(to, time.UTC)
	if errFrom != nil || errTo != nil {
		r.log.Warn("resolver: unparsable date keys, reservation filter skipped",
			zap.String("service_id", serviceID), zap.String("from", from), zap.String("to", to))
		return out, true
	}

	reserved, err := r.source.ReservedSlots(ctx, serviceID, fromDate, toDate)
	if err != nil {
		r.log.Warn("resolver: reservations unavailable, serving unfiltered slots",
			zap.String("service_id", serviceID), zap.Error(err))
		return out, true
	}

	taken := make(map[string]map[int]struct{})
	for _, res := range reserved {
		// Only reservations of this very service consume its slots.
		if res.ServiceID != serviceID {
			continue
		}
		t, err := utils.ParseTime(res.StartTime)
		if err != nil {
			continue
		}
		if taken[res.Date] == nil {
			taken[res.Date] = make(map[int]struct{})
		}
		taken[res.Date][t.TotalMinutes()] = struct{}{}
	}

	for date, times := range out {
		busy := taken[date]
		if len(busy) == 0 {
			continue
		}
		times = filterTimes(times, func(t utils.TimeOfDay) bool {
			_, ok := busy[t.TotalMinutes()]
			return !ok
		})
		out[date] = normalize(times)
	}
	return out, false
}

func filterTimes(times []string, keep func(utils.TimeOfDay) bool) []string {
	out := make([]string, 0, len(times))
	for _, s := range times {
		t, err := utils.ParseTime(s)
		if err != nil {
			continue
		}
		if keep(t) {
			out = append(out, s)
		}
	}
	return out
}
