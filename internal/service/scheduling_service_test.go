package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wellspring/booking-core/internal/calendar"
	"github.com/wellspring/booking-core/internal/config"
	"github.com/wellspring/booking-core/internal/db"
	"github.com/wellspring/booking-core/internal/model"
	"github.com/wellspring/booking-core/internal/repository"
)

// Sunday 2025-06-08 10:00 UTC. The current week runs 06-08 .. 06-14.
var sundayMorning = time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)

const mondayRule = `{"scheduleType":"weekly","days":["Monday"],"timeSlots":[{"start":"09:00","end":"10:30"}]}`

type fixture struct {
	db       *gorm.DB
	svc      *model.Service
	pro      *model.Professional
	services repository.ServiceRepository
	res      repository.ReservationRepository
	capacity repository.CapacitySlotRepository
	events   *repository.GormEventRepository
}

func newFixture(t *testing.T, rule string, durationMin int) *fixture {
	t.Helper()
	gormDB, err := db.NewGormDB(&config.DBConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	pro := &model.Professional{DisplayName: "Dr. Lane"}
	require.NoError(t, gormDB.Create(pro).Error)

	svc := &model.Service{ProfessionalID: pro.ID, Name: "Consultation", DurationMin: durationMin, PriceCents: 4500}
	if rule != "" {
		svc.Availability = datatypes.JSON(rule)
	}
	services := repository.NewGormServiceRepository(gormDB)
	require.NoError(t, services.Create(context.Background(), svc))

	return &fixture{
		db:       gormDB,
		svc:      svc,
		pro:      pro,
		services: services,
		res:      repository.NewGormReservationRepository(gormDB),
		capacity: repository.NewGormCapacitySlotRepository(gormDB),
		events:   repository.NewGormEventRepository(gormDB),
	}
}

func (f *fixture) service(opts ...Option) *SchedulingService {
	opts = append([]Option{WithClock(func() time.Time { return sundayMorning })}, opts...)
	return NewSchedulingService(f.services, f.res, f.capacity, f.events, opts...)
}

func currentWeek() calendar.Window {
	return calendar.CurrentWindow(sundayMorning)
}

func dayTimes(week calendar.Week, date string) []string {
	for _, d := range week.Days {
		if d.Date == date {
			return d.Times
		}
	}
	return nil
}

func TestWeekAvailability_WeeklyRule(t *testing.T) {
	f := newFixture(t, mondayRule, 45)
	s := f.service()

	week, err := s.WeekAvailability(context.Background(), f.svc.ID.String(), currentWeek())
	require.NoError(t, err)

	require.Len(t, week.Days, 7)
	assert.Equal(t, "2025-06-08", week.Days[0].Date)
	assert.Equal(t, []string{"09:00", "09:45"}, dayTimes(week, "2025-06-09"))
	assert.Empty(t, dayTimes(week, "2025-06-10"))
	assert.Equal(t, 2, week.Total())
	assert.False(t, week.Degraded)
}

func TestWeekAvailability_ExcludesReservedSlotOfSameServiceOnly(t *testing.T) {
	f := newFixture(t, mondayRule, 45)
	s := f.service()
	ctx := context.Background()

	_, err := s.Book(ctx, BookRequest{
		ServiceID: f.svc.ID.String(), Date: "2025-06-09", Time: "09:00", PatientID: uuid.NewString(),
	})
	require.NoError(t, err)

	other := &model.Service{ProfessionalID: f.pro.ID, Name: "Follow-up", DurationMin: 45, Availability: datatypes.JSON(mondayRule)}
	require.NoError(t, f.services.Create(ctx, other))

	week, err := s.WeekAvailability(ctx, f.svc.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.Equal(t, []string{"09:45"}, dayTimes(week, "2025-06-09"))

	otherWeek, err := s.WeekAvailability(ctx, other.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:45"}, dayTimes(otherWeek, "2025-06-09"))
}

func TestWeekAvailability_TodayPastTimesRemoved(t *testing.T) {
	f := newFixture(t, `{"days":["Sun"],"timeSlots":["09:00","10:00","10:30"]}`, 30)
	s := f.service()

	week, err := s.WeekAvailability(context.Background(), f.svc.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30"}, dayTimes(week, "2025-06-08"))
}

func TestWeekAvailability_UnknownService(t *testing.T) {
	f := newFixture(t, mondayRule, 45)
	s := f.service()

	_, err := s.WeekAvailability(context.Background(), uuid.NewString(), currentWeek())
	assert.ErrorIs(t, err, ErrServiceNotFound)

	_, err = s.WeekAvailability(context.Background(), "not-a-uuid", currentWeek())
	assert.ErrorIs(t, err, ErrValidation)
}

type failingReservations struct {
	repository.ReservationRepository
}

func (failingReservations) ListActiveByServiceAndDates(context.Context, string, time.Time, time.Time) ([]model.Reservation, error) {
	return nil, errors.New("connection reset")
}

func TestWeekAvailability_DegradedWhenReservationsUnreadable(t *testing.T) {
	f := newFixture(t, mondayRule, 45)
	s := NewSchedulingService(f.services, failingReservations{f.res}, f.capacity, f.events,
		WithClock(func() time.Time { return sundayMorning }))

	week, err := s.WeekAvailability(context.Background(), f.svc.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.True(t, week.Degraded)
	assert.Equal(t, []string{"09:00", "09:45"}, dayTimes(week, "2025-06-09"))
}

func TestWeekAvailability_LegacyCapacitySlots(t *testing.T) {
	f := newFixture(t, "", 30)
	s := f.service()
	ctx := context.Background()

	starts := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, f.capacity.Create(ctx, &model.CapacitySlot{
		ProfessionalID: f.pro.ID, StartsAt: starts, EndsAt: starts.Add(30 * time.Minute),
	}))
	require.NoError(t, f.capacity.Create(ctx, &model.CapacitySlot{
		ProfessionalID: f.pro.ID, StartsAt: starts.Add(time.Hour), EndsAt: starts.Add(90 * time.Minute), IsBooked: true,
	}))

	week, err := s.WeekAvailability(ctx, f.svc.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00"}, dayTimes(week, "2025-06-10"))
}

type memoryCache struct {
	mu          sync.Mutex
	weeks       map[string]calendar.Week
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{weeks: make(map[string]calendar.Week)}
}

func (c *memoryCache) Get(_ context.Context, key string) (calendar.Week, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.weeks[key]
	return w, ok, nil
}

func (c *memoryCache) Set(_ context.Context, _ string, key string, week calendar.Week) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weeks[key] = week
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, serviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weeks = make(map[string]calendar.Week)
	c.invalidated = append(c.invalidated, serviceID)
	return nil
}

func TestWeekAvailability_CacheInvalidatedByBooking(t *testing.T) {
	f := newFixture(t, mondayRule, 45)
	c := newMemoryCache()
	s := f.service(WithCache(c))
	ctx := context.Background()

	_, err := s.WeekAvailability(ctx, f.svc.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.Len(t, c.weeks, 1)

	_, err = s.Book(ctx, BookRequest{
		ServiceID: f.svc.ID.String(), Date: "2025-06-09", Time: "09:45", PatientID: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{f.svc.ID.String()}, c.invalidated)

	week, err := s.WeekAvailability(ctx, f.svc.ID.String(), currentWeek())
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, dayTimes(week, "2025-06-09"))
}

func TestNavigate_AutoAdvancesPastEmptyWeek(t *testing.T) {
	// Only 2025-06-16 (the following Monday) has slots.
	f := newFixture(t, `{"scheduleType":"custom","customSchedules":{"2025-06-16":{"timeSlots":["11:00"]}}}`, 30)
	s := f.service()

	view, err := s.Navigate(context.Background(), f.svc.ID.String(), calendar.Window{}, calendar.ActionCurrent, "")
	require.NoError(t, err)
	assert.True(t, view.AutoAdvanced)
	assert.Equal(t, "2025-06-15", view.Window.Start.Format("2006-01-02"))
	assert.Equal(t, "2025-06-16", view.SelectedDate)
	assert.Equal(t, 0, view.Window.AutoAdvanceCount)
	assert.True(t, view.PreviousAllowed)
}

func TestNavigate_RejectsBadInput(t *testing.T) {
	f := newFixture(t, mondayRule, 45)
	s := f.service()
	ctx := context.Background()

	_, err := s.Navigate(ctx, f.svc.ID.String(), currentWeek(), calendar.Action("sideways"), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Navigate(ctx, f.svc.ID.String(), currentWeek(), calendar.ActionSelect, "2025-06-01")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Navigate(ctx, f.svc.ID.String(), currentWeek(), calendar.ActionSelect, "June 9")
	assert.ErrorIs(t, err, ErrValidation)
}
