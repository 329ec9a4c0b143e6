package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wellspring/booking-core/internal/availability"
	"github.com/wellspring/booking-core/internal/calendar"
	"github.com/wellspring/booking-core/internal/cache"
	"github.com/wellspring/booking-core/internal/metrics"
	"github.com/wellspring/booking-core/internal/model"
	"github.com/wellspring/booking-core/internal/repository"
	"github.com/wellspring/booking-core/internal/utils"
)

// Side effects after a committed booking get their own deadline.
const postCommitTimeout = 5 * time.Second

// WeekCache stores computed weeks. Failures are never fatal.
type WeekCache interface {
	Get(ctx context.Context, key string) (calendar.Week, bool, error)
	Set(ctx context.Context, serviceID, key string, week calendar.Week) error
	Invalidate(ctx context.Context, serviceID string) error
}

// SchedulingService computes availability windows and books reservations.
// It holds no per-caller state and may be shared by concurrent requests.
type SchedulingService struct {
	serviceRepo     repository.ServiceRepository
	reservationRepo repository.ReservationRepository
	capacityRepo    repository.CapacitySlotRepository
	eventRepo       repository.EventRepository

	resolver *availability.Resolver
	cache    WeekCache
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

type Option func(*SchedulingService)

func WithCache(c WeekCache) Option {
	return func(s *SchedulingService) { s.cache = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *SchedulingService) { s.log = log }
}

// WithLocation sets the zone of the naive calendar.
func WithLocation(loc *time.Location) Option {
	return func(s *SchedulingService) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *SchedulingService) { s.now = now }
}

func NewSchedulingService(
	serviceRepo repository.ServiceRepository,
	reservationRepo repository.ReservationRepository,
	capacityRepo repository.CapacitySlotRepository,
	eventRepo repository.EventRepository,
	opts ...Option,
) *SchedulingService {
	s := &SchedulingService{
		serviceRepo:     serviceRepo,
		reservationRepo: reservationRepo,
		capacityRepo:    capacityRepo,
		eventRepo:       eventRepo,
		log:             zap.NewNop(),
		loc:             time.UTC,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = availability.NewResolver(reservationSource{repo: reservationRepo}, s.log)
	return s
}

// Now returns the current time in the calendar zone.
func (s *SchedulingService) Now() time.Time {
	return s.now().In(s.loc)
}

// WeekAvailability computes the bookable slots of serviceID inside w.
func (s *SchedulingService) WeekAvailability(ctx context.Context, serviceID string, w calendar.Window) (calendar.Week, error) {
	svc, err := s.loadService(ctx, serviceID)
	if err != nil {
		return calendar.Week{}, err
	}
	return s.week(ctx, svc, s.anchor(w))
}

// anchor places the caller's window on a week start in the calendar zone.
// A zero window is the current week.
func (s *SchedulingService) anchor(w calendar.Window) calendar.Window {
	if w.Start.IsZero() {
		return calendar.CurrentWindow(s.Now())
	}
	y, m, d := w.Start.Date()
	w.Start = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return w.Normalize()
}

// Navigate moves the caller's window and returns the view to render.
func (s *SchedulingService) Navigate(
	ctx context.Context,
	serviceID string,
	w calendar.Window,
	action calendar.Action,
	selected string,
) (calendar.View, error) {
	svc, err := s.loadService(ctx, serviceID)
	if err != nil {
		return calendar.View{}, err
	}
	manager := calendar.NewManager(func(ctx context.Context, w calendar.Window) (calendar.Week, error) {
		return s.week(ctx, svc, w)
	}, s.loc, s.now)

	view, err := manager.Navigate(ctx, w, action, selected)
	switch {
	case errors.Is(err, calendar.ErrUnknownAction),
		errors.Is(err, calendar.ErrDateBeforeWindow),
		errors.Is(err, utils.ErrInvalidDate):
		return calendar.View{}, fmt.Errorf("%w: %v", ErrValidation, err)
	case err != nil:
		return calendar.View{}, err
	}
	return view, nil
}

func (s *SchedulingService) week(ctx context.Context, svc *model.Service, w calendar.Window) (calendar.Week, error) {
	now := s.Now()
	serviceID := svc.ID.String()

	var key string
	if s.cache != nil {
		key = cache.WeekKey(serviceID, w.Start, now)
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.AvailabilityCacheTotal.WithLabelValues(metrics.CacheError).Inc()
			s.log.Debug("availability cache get failed", zap.String("key", key), zap.Error(err))
		case ok:
			metrics.AvailabilityCacheTotal.WithLabelValues(metrics.CacheHit).Inc()
			cached.Window = w
			return cached, nil
		default:
			metrics.AvailabilityCacheTotal.WithLabelValues(metrics.CacheMiss).Inc()
		}
	}

	raw, err := s.candidates(ctx, svc, w)
	if err != nil {
		return calendar.Week{}, err
	}

	// Days already gone offer nothing; today is trimmed by the resolver.
	today := utils.FormatDate(now)
	for date := range raw {
		if date < today {
			raw[date] = nil
		}
	}

	resolved, degraded := s.resolver.Resolve(ctx, serviceID, raw, now)
	if degraded {
		metrics.AvailabilityDegradedTotal.Inc()
	}

	week := calendar.Week{Window: w, Degraded: degraded}
	for _, d := range w.Dates() {
		date := utils.FormatDate(d)
		times := resolved[date]
		if times == nil {
			times = []string{}
		}
		week.Days = append(week.Days, calendar.Day{Date: date, Times: times})
	}

	if s.cache != nil && !degraded {
		if err := s.cache.Set(ctx, serviceID, key, week); err != nil {
			s.log.Debug("availability cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return week, nil
}

// candidates builds the raw per-day slots of w, from the declarative rule or,
// when the service has none, from unbooked legacy capacity slots.
func (s *SchedulingService) candidates(ctx context.Context, svc *model.Service, w calendar.Window) (availability.DaySlots, error) {
	raw := make(availability.DaySlots, calendar.WindowLength)
	for _, d := range w.Dates() {
		raw[utils.FormatDate(d)] = nil
	}

	rule := s.rule(svc)
	if rule != nil {
		for _, d := range w.Dates() {
			raw[utils.FormatDate(d)] = availability.SlotsForDate(rule, svc.DurationMin, d)
		}
		return raw, nil
	}

	free, err := s.capacityTimes(ctx, svc, w.Start, w.Start.AddDate(0, 0, calendar.WindowLength))
	if err != nil {
		return nil, err
	}
	for date, times := range free {
		if _, ok := raw[date]; ok {
			raw[date] = times
		}
	}
	return raw, nil
}

// capacityTimes lists the unbooked capacity slot starts in [from, to) by date.
func (s *SchedulingService) capacityTimes(ctx context.Context, svc *model.Service, from, to time.Time) (availability.DaySlots, error) {
	slots, err := s.capacityRepo.ListFree(ctx, svc.ProfessionalID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("list capacity slots: %w", err)
	}
	windows := make([]availability.CapacityWindow, 0, len(slots))
	for _, cs := range slots {
		windows = append(windows, availability.CapacityWindow{StartsAt: cs.StartsAt, EndsAt: cs.EndsAt})
	}
	return availability.CapacityCandidates(windows, s.loc), nil
}

// rule decodes the stored rule; an unreadable rule counts as none.
func (s *SchedulingService) rule(svc *model.Service) *availability.Rule {
	if !svc.HasAvailabilityRule() {
		return nil
	}
	rule, err := availability.ParseRule(svc.Availability)
	if err != nil {
		s.log.Warn("unreadable availability rule, using capacity slots",
			zap.String("service_id", svc.ID.String()), zap.Error(err))
		return nil
	}
	return rule
}

func (s *SchedulingService) loadService(ctx context.Context, serviceID string) (*model.Service, error) {
	if _, err := uuid.Parse(strings.TrimSpace(serviceID)); err != nil {
		return nil, fmt.Errorf("%w: service_id %q is not a valid id", ErrValidation, serviceID)
	}
	svc, err := s.serviceRepo.GetByID(ctx, strings.TrimSpace(serviceID))
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("%w: %s is inactive", ErrServiceNotFound, serviceID)
	}
	return svc, nil
}

// reservationSource adapts the reservation repository to the resolver.
type reservationSource struct {
	repo repository.ReservationRepository
}

func (r reservationSource) ReservedSlots(ctx context.Context, serviceID string, from, to time.Time) ([]availability.ReservedSlot, error) {
	reservations, err := r.repo.ListActiveByServiceAndDates(ctx, serviceID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]availability.ReservedSlot, 0, len(reservations))
	for _, res := range reservations {
		out = append(out, availability.ReservedSlot{
			ServiceID: res.ServiceID.String(),
			Date:      utils.FormatDate(time.Time(res.Date)),
			StartTime: reservationStart(res),
		})
	}
	return out, nil
}

// reservationStart is the start time truncated to minutes.
func reservationStart(res model.Reservation) string {
	return timeString(res.StartTime)
}

func timeString(t datatypes.Time) string {
	s := t.String()
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}
