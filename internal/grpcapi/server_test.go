package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/datatypes"

	"github.com/wellspring/booking-core/internal/calendar"
	"github.com/wellspring/booking-core/internal/model"
	"github.com/wellspring/booking-core/internal/service"
)

type fakeScheduler struct {
	week     calendar.Week
	view     calendar.View
	res      *model.Reservation
	list     []model.Reservation
	err      error
	gotBook  service.BookRequest
	gotLimit int
	gotOff   int
	panics   bool
}

func (f *fakeScheduler) WeekAvailability(context.Context, string, calendar.Window) (calendar.Week, error) {
	if f.panics {
		panic("boom")
	}
	return f.week, f.err
}

func (f *fakeScheduler) Navigate(context.Context, string, calendar.Window, calendar.Action, string) (calendar.View, error) {
	return f.view, f.err
}

func (f *fakeScheduler) Book(_ context.Context, req service.BookRequest) (*model.Reservation, error) {
	f.gotBook = req
	return f.res, f.err
}

func (f *fakeScheduler) GetReservation(context.Context, string) (*model.Reservation, error) {
	return f.res, f.err
}

func (f *fakeScheduler) ListPatientReservations(_ context.Context, _, _, _ string, limit, offset int) ([]model.Reservation, int64, error) {
	f.gotLimit, f.gotOff = limit, offset
	return f.list, int64(len(f.list)), f.err
}

func startServer(t *testing.T, sched Scheduler) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	log := zap.NewNop()
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoveryInterceptor(log), LoggingInterceptor(log)))
	Register(srv, NewServer(sched))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func sampleReservation() *model.Reservation {
	return &model.Reservation{
		ID:             uuid.New(),
		ServiceID:      uuid.New(),
		ProfessionalID: uuid.New(),
		PatientID:      uuid.New(),
		Date:           datatypes.Date(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)),
		StartTime:      datatypes.NewTime(9, 45, 0, 0),
		EndTime:        datatypes.NewTime(10, 30, 0, 0),
		PriceCents:     4500,
		Status:         model.ReservationStatusScheduled,
	}
}

func TestGetWeek(t *testing.T) {
	start := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	sched := &fakeScheduler{week: calendar.Week{
		Window: calendar.Window{Start: start},
		Days: []calendar.Day{
			{Date: "2025-06-08", Times: []string{}},
			{Date: "2025-06-09", Times: []string{"09:00", "09:45"}},
		},
	}}
	client := startServer(t, sched)

	out, err := client.GetWeek(context.Background(), uuid.NewString(), "2025-06-08")
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "2025-06-08", m["window_start"])
	assert.Equal(t, "2025-06-14", m["window_end"])
	assert.Equal(t, float64(2), m["total"])
	assert.Equal(t, false, m["degraded"])
	days := m["days"].([]any)
	require.Len(t, days, 2)
	assert.Equal(t, []any{"09:00", "09:45"}, days[1].(map[string]any)["times"])
}

func TestGetWeek_InvalidInput(t *testing.T) {
	client := startServer(t, &fakeScheduler{})

	_, err := client.GetWeek(context.Background(), "", "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.GetWeek(context.Background(), uuid.NewString(), "next week")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestNavigate(t *testing.T) {
	sched := &fakeScheduler{view: calendar.View{
		Week: calendar.Week{
			Window: calendar.Window{Start: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
			Days:   []calendar.Day{{Date: "2025-06-16", Times: []string{"11:00"}}},
		},
		SelectedDate:    "2025-06-16",
		PreviousAllowed: true,
		AutoAdvanced:    true,
	}}
	client := startServer(t, sched)

	out, err := client.Navigate(context.Background(), uuid.NewString(), "", 0, "current", "")
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "2025-06-15", m["window_start"])
	assert.Equal(t, "2025-06-16", m["selected_date"])
	assert.Equal(t, true, m["auto_advanced"])
	assert.Equal(t, true, m["previous_allowed"])
	assert.Equal(t, false, m["rejected"])
}

func TestBook(t *testing.T) {
	res := sampleReservation()
	sched := &fakeScheduler{res: res}
	client := startServer(t, sched)

	out, err := client.Book(context.Background(), res.ServiceID.String(), "2025-06-09", "09:45", res.PatientID.String())
	require.NoError(t, err)

	assert.Equal(t, service.BookRequest{
		ServiceID: res.ServiceID.String(), Date: "2025-06-09", Time: "09:45", PatientID: res.PatientID.String(),
	}, sched.gotBook)

	m := out.AsMap()
	assert.Equal(t, res.ID.String(), m["id"])
	assert.Equal(t, "2025-06-09", m["date"])
	assert.Equal(t, "09:45", m["start_time"])
	assert.Equal(t, "10:30", m["end_time"])
	assert.Equal(t, "scheduled", m["status"])
	assert.Equal(t, float64(4500), m["price_cents"])
}

func TestBook_ErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("%w: date is required", service.ErrValidation), codes.InvalidArgument},
		{service.ErrSlotNotOffered, codes.InvalidArgument},
		{service.ErrPastDate, codes.FailedPrecondition},
		{fmt.Errorf("%w: 2025-06-09 09:00", service.ErrConflict), codes.AlreadyExists},
		{service.ErrServiceNotFound, codes.NotFound},
		{errors.New("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			client := startServer(t, &fakeScheduler{err: tt.err})
			_, err := client.Book(context.Background(), uuid.NewString(), "2025-06-09", "09:00", uuid.NewString())
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestInternalErrorsAreNotEchoed(t *testing.T) {
	client := startServer(t, &fakeScheduler{err: errors.New("pq: password authentication failed")})

	_, err := client.GetReservation(context.Background(), uuid.NewString())
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())
}

func TestListPatientReservations_Paging(t *testing.T) {
	sched := &fakeScheduler{list: []model.Reservation{*sampleReservation()}}
	client := startServer(t, sched)

	out, err := client.ListPatientReservations(context.Background(), uuid.NewString(), "2025-06-01", "2025-06-30", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, sched.gotLimit)
	assert.Equal(t, 20, sched.gotOff)

	m := out.AsMap()
	assert.Equal(t, float64(1), m["total_count"])
	assert.Len(t, m["reservations"], 1)

	_, err = client.ListPatientReservations(context.Background(), uuid.NewString(), "2025-06-01", "2025-06-30", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, sched.gotLimit)
	assert.Equal(t, 0, sched.gotOff)
}

func TestRecoveryInterceptor(t *testing.T) {
	client := startServer(t, &fakeScheduler{panics: true})

	_, err := client.GetWeek(context.Background(), uuid.NewString(), "")
	assert.Equal(t, codes.Internal, status.Code(err))
}
