package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/wellspring/booking-core/internal/cache"
	"github.com/wellspring/booking-core/internal/config"
	"github.com/wellspring/booking-core/internal/db"
	"github.com/wellspring/booking-core/internal/grpcapi"
	"github.com/wellspring/booking-core/internal/logger"
	"github.com/wellspring/booking-core/internal/model"
	"github.com/wellspring/booking-core/internal/repository"
	"github.com/wellspring/booking-core/internal/service"
)

func main() {
	// 1. Config from env (.env is optional).
	config.LoadDotEnv()

	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}

	// 2. Logger.
	lg, err := logger.New(appCfg.LogLevel, appCfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)

	// 3. Database and migrations.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		lg.Fatal("init db", zap.Error(err))
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		lg.Fatal("auto migrate", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		lg.Fatal("sql DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// 4. Repositories.
	serviceRepo := repository.NewGormServiceRepository(gormDB)
	reservationRepo := repository.NewGormReservationRepository(gormDB)
	capacityRepo := repository.NewGormCapacitySlotRepository(gormDB)
	eventRepo := repository.NewGormEventRepository(gormDB)

	// 5. Scheduling service, with the availability cache when Redis is configured.
	opts := []service.Option{
		service.WithLogger(lg),
		service.WithLocation(appCfg.Location),
	}
	if appCfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			lg.Warn("redis unreachable, availability cache will miss", zap.String("addr", appCfg.RedisAddr), zap.Error(err))
		}
		cancel()

		opts = append(opts, service.WithCache(cache.NewAvailabilityCache(rdb, appCfg.CacheTTL)))
	}
	schedulingSvc := service.NewSchedulingService(serviceRepo, reservationRepo, capacityRepo, eventRepo, opts...)

	// 6. gRPC server.
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcapi.RecoveryInterceptor(lg),
		grpcapi.LoggingInterceptor(lg),
	))
	grpcapi.Register(grpcServer, grpcapi.NewServer(schedulingSvc))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		lg.Fatal("listen", zap.String("addr", appCfg.GRPCAddr), zap.Error(err))
	}

	// 7. Serve gRPC and metrics.
	go func() {
		lg.Info("booking-core gRPC server listening", zap.String("addr", appCfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			lg.Fatal("grpc serve", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if appCfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: appCfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			lg.Info("metrics listening", zap.String("addr", appCfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("metrics serve", zap.Error(err))
			}
		}()
	}

	// 8. Graceful shutdown on signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	lg.Info("shutting down")
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(ctx)
		cancel()
	}
	grpcServer.GracefulStop()
}
