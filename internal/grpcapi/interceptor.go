package grpcapi

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wellspring/booking-core/internal/metrics"
)

// LoggingInterceptor logs every unary call and records request metrics.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		method := path.Base(info.FullMethod)
		metrics.GRPCRequestsTotal.WithLabelValues(method, code.String()).Inc()
		metrics.GRPCRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", elapsed),
		}
		switch code {
		case codes.OK:
			log.Debug("grpc call", fields...)
		case codes.Internal, codes.Unknown:
			log.Error("grpc call failed", append(fields, zap.Error(err))...)
		default:
			log.Info("grpc call rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panic",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
