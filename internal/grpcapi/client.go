package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls SchedulingService on a remote server.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetWeek(ctx context.Context, serviceID, windowStart string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetWeek", map[string]any{
		"service_id":   serviceID,
		"window_start": windowStart,
	}, opts...)
}

func (c *Client) Navigate(
	ctx context.Context,
	serviceID, windowStart string,
	autoAdvanceCount int,
	action, selectedDate string,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, "Navigate", map[string]any{
		"service_id":         serviceID,
		"window_start":       windowStart,
		"auto_advance_count": autoAdvanceCount,
		"action":             action,
		"selected_date":      selectedDate,
	}, opts...)
}

func (c *Client) Book(ctx context.Context, serviceID, date, tm, patientID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Book", map[string]any{
		"service_id": serviceID,
		"date":       date,
		"time":       tm,
		"patient_id": patientID,
	}, opts...)
}

func (c *Client) GetReservation(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetReservation", map[string]any{"id": id}, opts...)
}

func (c *Client) ListPatientReservations(
	ctx context.Context,
	patientID, from, to string,
	page, pageSize int,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListPatientReservations", map[string]any{
		"patient_id": patientID,
		"from":       from,
		"to":         to,
		"page":       page,
		"page_size":  pageSize,
	}, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
