package grpcapi

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wellspring/booking-core/internal/calendar"
	"github.com/wellspring/booking-core/internal/model"
	"github.com/wellspring/booking-core/internal/service"
	"github.com/wellspring/booking-core/internal/utils"
)

const ServiceName = "booking.v1.SchedulingService"

// Scheduler is the part of service.SchedulingService exposed over gRPC.
type Scheduler interface {
	WeekAvailability(ctx context.Context, serviceID string, w calendar.Window) (calendar.Week, error)
	Navigate(ctx context.Context, serviceID string, w calendar.Window, action calendar.Action, selected string) (calendar.View, error)
	Book(ctx context.Context, req service.BookRequest) (*model.Reservation, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListPatientReservations(ctx context.Context, patientID, from, to string, limit, offset int) ([]model.Reservation, int64, error)
}

// SchedulingServer is the handler set behind ServiceName. Requests and
// responses are google.protobuf.Struct values.
type SchedulingServer interface {
	GetWeek(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Navigate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Book(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPatientReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	svc Scheduler
}

func NewServer(svc Scheduler) *Server {
	return &Server{svc: svc}
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetWeek", SchedulingServer.GetWeek),
		unary("Navigate", SchedulingServer.Navigate),
		unary("Book", SchedulingServer.Book),
		unary("GetReservation", SchedulingServer.GetReservation),
		unary("ListPatientReservations", SchedulingServer.ListPatientReservations),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/scheduling.proto",
}

type unaryCall func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// GetWeek: {service_id, window_start?} -> week.
func (s *Server) GetWeek(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	serviceID := stringField(req, "service_id")
	if serviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "service_id is required")
	}
	w, err := windowField(req)
	if err != nil {
		return nil, err
	}

	week, err := s.svc.WeekAvailability(ctx, serviceID, w)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(weekFields(week))
}

// Navigate: {service_id, window_start?, auto_advance_count?, action, selected_date?} -> view.
func (s *Server) Navigate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	serviceID := stringField(req, "service_id")
	if serviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "service_id is required")
	}
	w, err := windowField(req)
	if err != nil {
		return nil, err
	}

	view, err := s.svc.Navigate(ctx, serviceID, w,
		calendar.Action(stringField(req, "action")), stringField(req, "selected_date"))
	if err != nil {
		return nil, toStatus(err)
	}

	fields := weekFields(view.Week)
	fields["selected_date"] = view.SelectedDate
	fields["previous_allowed"] = view.PreviousAllowed
	fields["rejected"] = view.Rejected
	fields["auto_advanced"] = view.AutoAdvanced
	return structpb.NewStruct(fields)
}

// Book: {service_id, date, time, patient_id} -> reservation.
func (s *Server) Book(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Book(ctx, service.BookRequest{
		ServiceID: stringField(req, "service_id"),
		Date:      stringField(req, "date"),
		Time:      stringField(req, "time"),
		PatientID: stringField(req, "patient_id"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(reservationFields(res))
}

// GetReservation: {id} -> reservation.
func (s *Server) GetReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	res, err := s.svc.GetReservation(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(reservationFields(res))
}

// ListPatientReservations: {patient_id, from, to, page?, page_size?} -> {reservations, total_count}.
func (s *Server) ListPatientReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	patientID := stringField(req, "patient_id")
	if patientID == "" {
		return nil, status.Error(codes.InvalidArgument, "patient_id is required")
	}

	page := intField(req, "page")
	if page <= 0 {
		page = 1
	}
	size := intField(req, "page_size")
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	list, total, err := s.svc.ListPatientReservations(ctx, patientID,
		stringField(req, "from"), stringField(req, "to"), size, offset)
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(list))
	for i := range list {
		items = append(items, reservationFields(&list[i]))
	}
	return structpb.NewStruct(map[string]any{
		"reservations": items,
		"total_count":  total,
	})
}

// toStatus maps service errors onto gRPC codes. Unknown errors are not echoed.
func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrPastDate):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrServiceNotFound), errors.Is(err, service.ErrReservationNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func intField(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}

func windowField(req *structpb.Struct) (calendar.Window, error) {
	start := stringField(req, "window_start")
	if start == "" {
		return calendar.Window{}, nil
	}
	d, err := utils.ParseDate(start, time.UTC)
	if err != nil {
		return calendar.Window{}, status.Errorf(codes.InvalidArgument, "window_start: %v", err)
	}
	return calendar.Window{Start: d, AutoAdvanceCount: intField(req, "auto_advance_count")}, nil
}

func weekFields(week calendar.Week) map[string]any {
	days := make([]any, 0, len(week.Days))
	for _, d := range week.Days {
		times := make([]any, 0, len(d.Times))
		for _, t := range d.Times {
			times = append(times, t)
		}
		days = append(days, map[string]any{"date": d.Date, "times": times})
	}
	return map[string]any{
		"window_start":       utils.FormatDate(week.Window.Start),
		"window_end":         utils.FormatDate(week.Window.End()),
		"auto_advance_count": week.Window.AutoAdvanceCount,
		"degraded":           week.Degraded,
		"total":              week.Total(),
		"days":               days,
	}
}

func reservationFields(res *model.Reservation) map[string]any {
	start, end := service.ReservationTimes(res)
	return map[string]any{
		"id":              res.ID.String(),
		"service_id":      res.ServiceID.String(),
		"professional_id": res.ProfessionalID.String(),
		"patient_id":      res.PatientID.String(),
		"date":            utils.FormatDate(time.Time(res.Date)),
		"start_time":      start,
		"end_time":        end,
		"price_cents":     res.PriceCents,
		"status":          string(res.Status),
	}
}
