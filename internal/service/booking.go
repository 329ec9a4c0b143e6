package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wellspring/booking-core/internal/availability"
	"github.com/wellspring/booking-core/internal/metrics"
	"github.com/wellspring/booking-core/internal/model"
	"github.com/wellspring/booking-core/internal/repository"
	"github.com/wellspring/booking-core/internal/utils"
)

// BookRequest is a patient's choice of a slot.
type BookRequest struct {
	ServiceID string
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	PatientID string
}

// Book reserves the slot. Exactly one of concurrent requests for the same
// (service, date, time) succeeds; the others get ErrConflict.
func (s *SchedulingService) Book(ctx context.Context, req BookRequest) (*model.Reservation, error) {
	res, err := s.book(ctx, req)
	switch {
	case err == nil:
		metrics.BookingsTotal.WithLabelValues(metrics.BookingCreated).Inc()
	case isRejection(err):
		result := metrics.BookingRejected
		if isConflict(err) {
			result = metrics.BookingConflict
		}
		metrics.BookingsTotal.WithLabelValues(result).Inc()
	default:
		metrics.BookingsTotal.WithLabelValues(metrics.BookingError).Inc()
	}
	return res, err
}

func (s *SchedulingService) book(ctx context.Context, req BookRequest) (*model.Reservation, error) {
	dateStr := strings.TrimSpace(req.Date)
	timeStr := strings.TrimSpace(req.Time)
	patientStr := strings.TrimSpace(req.PatientID)

	if dateStr == "" || timeStr == "" || patientStr == "" {
		return nil, fmt.Errorf("%w: date, time and patient_id are required", ErrValidation)
	}

	date, err := utils.ParseDate(dateStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	// Authoritative guard, independent of what availability showed.
	today := utils.FormatDate(s.Now())
	if utils.FormatDate(date) < today {
		return nil, fmt.Errorf("%w: %s is before %s", ErrPastDate, dateStr, today)
	}

	start, err := utils.ParseTime(timeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	patientID, err := uuid.Parse(patientStr)
	if err != nil {
		return nil, fmt.Errorf("%w: patient_id %q is not a valid id", ErrValidation, patientStr)
	}

	svc, err := s.loadService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	offered, err := s.offeredTimes(ctx, svc, date)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(offered, start.String()) {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotNotOffered, dateStr, start)
	}

	end := start.Add(svc.DurationMin)
	reservation := &model.Reservation{
		ServiceID:      svc.ID,
		ProfessionalID: svc.ProfessionalID,
		PatientID:      patientID,
		Date:           datatypes.Date(date),
		StartTime:      datatypes.NewTime(start.Hours, start.Minutes, 0, 0),
		EndTime:        datatypes.NewTime(end.Hours, end.Minutes, 0, 0),
		PriceCents:     svc.PriceCents,
		Status:         model.ReservationStatusScheduled,
	}

	if err := s.reservationRepo.Create(ctx, reservation); err != nil {
		if repository.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrConflict, dateStr, start)
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	s.log.Info("reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("service_id", svc.ID.String()),
		zap.String("date", dateStr),
		zap.String("start_time", start.String()))

	// The reservation is committed; nothing below may undo or fail it.
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()
	s.afterBooking(postCtx, svc, reservation, date, start)

	return reservation, nil
}

// offeredTimes lists the start times a service offers on date before
// reservations are taken into account: the rule's candidates or, for a
// legacy service, the starts of its unbooked capacity slots.
func (s *SchedulingService) offeredTimes(ctx context.Context, svc *model.Service, date time.Time) ([]string, error) {
	if rule := s.rule(svc); rule != nil {
		return availability.SlotsForDate(rule, svc.DurationMin, date), nil
	}
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	free, err := s.capacityTimes(ctx, svc, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return free[utils.FormatDate(date)], nil
}

// afterBooking runs the best-effort steps of a committed booking.
func (s *SchedulingService) afterBooking(
	ctx context.Context,
	svc *model.Service,
	reservation *model.Reservation,
	date time.Time,
	start utils.TimeOfDay,
) {
	s.recordEvent(ctx, model.EventTypeReservationCreated, reservation.ID,
		fmt.Sprintf("service=%s patient=%s date=%s time=%s",
			svc.ID, reservation.PatientID, utils.FormatDate(date), start))

	y, m, d := date.Date()
	startsAt := time.Date(y, m, d, start.Hours, start.Minutes, 0, 0, s.loc)
	endsAt := startsAt.Add(time.Duration(svc.DurationMin) * time.Minute)

	slot, err := s.capacityRepo.MarkBookedByWindow(ctx, svc.ProfessionalID.String(), startsAt, endsAt)
	consumed := false
	switch {
	case err != nil:
		metrics.CapacitySyncFailuresTotal.Inc()
		s.log.Warn("capacity slot sync failed",
			zap.String("reservation_id", reservation.ID.String()), zap.Error(err))
	case slot != nil:
		consumed = true
		s.recordEvent(ctx, model.EventTypeCapacitySlotConsumed, reservation.ID,
			fmt.Sprintf("capacity_slot=%s", slot.ID))
	}

	s.invalidate(ctx, svc, consumed)
}

// invalidate drops cached weeks of svc. A consumed capacity slot is shared by
// every legacy service of the professional, so their weeks go too.
func (s *SchedulingService) invalidate(ctx context.Context, svc *model.Service, capacityConsumed bool) {
	if s.cache == nil {
		return
	}
	ids := []string{svc.ID.String()}
	if capacityConsumed {
		siblings, err := s.serviceRepo.ListByProfessional(ctx, svc.ProfessionalID.String())
		if err != nil {
			s.log.Warn("listing professional services for cache invalidation failed",
				zap.String("professional_id", svc.ProfessionalID.String()), zap.Error(err))
		}
		for i := range siblings {
			if siblings[i].ID != svc.ID && s.rule(&siblings[i]) == nil {
				ids = append(ids, siblings[i].ID.String())
			}
		}
	}
	for _, id := range ids {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.log.Warn("availability cache invalidation failed",
				zap.String("service_id", id), zap.Error(err))
		}
	}
}

func (s *SchedulingService) recordEvent(ctx context.Context, typ model.EventType, reservationID uuid.UUID, details string) {
	if s.eventRepo == nil {
		return
	}
	event := &model.Event{EventType: typ, ReservationID: &reservationID, Details: details}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.log.Warn("audit event not recorded",
			zap.String("event_type", string(typ)),
			zap.String("reservation_id", reservationID.String()),
			zap.Error(err))
	}
}

// GetReservation returns one reservation.
func (s *SchedulingService) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, fmt.Errorf("%w: reservation id %q is not a valid id", ErrValidation, id)
	}
	res, err := s.reservationRepo.GetByID(ctx, strings.TrimSpace(id))
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrReservationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// ListPatientReservations pages through a patient's reservations dated in [from, to].
func (s *SchedulingService) ListPatientReservations(
	ctx context.Context,
	patientID, from, to string,
	limit, offset int,
) ([]model.Reservation, int64, error) {
	if _, err := uuid.Parse(strings.TrimSpace(patientID)); err != nil {
		return nil, 0, fmt.Errorf("%w: patient_id %q is not a valid id", ErrValidation, patientID)
	}
	fromDate, err := utils.ParseDate(from, time.UTC)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	toDate, err := utils.ParseDate(to, time.UTC)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if toDate.Before(fromDate) {
		return nil, 0, fmt.Errorf("%w: to must not be before from", ErrValidation)
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	reservations, total, err := s.reservationRepo.ListByPatientAndRange(ctx, strings.TrimSpace(patientID), fromDate, toDate, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, total, nil
}

// ReservationTimes formats a reservation's start and end as HH:MM.
func ReservationTimes(res *model.Reservation) (start, end string) {
	return timeString(res.StartTime), timeString(res.EndTime)
}
