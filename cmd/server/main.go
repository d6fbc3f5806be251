package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/minefield-alarm/config"
	"github.com/nandanugg/minefield-alarm/metrics"
	"github.com/nandanugg/minefield-alarm/module/core"
	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

func main() {
	if err := run(); err != nil {
		zap.L().Error("server exited", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	amqpConn, err := config.NewRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg.MQTT, cfg.MQTT.ClientID)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(250)

	rdb, err := config.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	coreModule, err := core.Build(cfg, db, amqpConn, mqttClient, rdb)
	if err != nil {
		return err
	}

	if err := coreModule.StartSubscribers(); err != nil {
		if !errors.Is(err, domain.ErrPermissionDenied) {
			return err
		}
		// position updates stay off until access is granted; the read API still serves
		zap.L().Error("location updates unavailable", zap.Error(err))
	}

	metrics.RegisterDefault()

	r := gin.Default()

	health := config.NewHealthChecker(db, amqpConn, mqttClient)
	if rdb != nil {
		health.WithRedis(rdb)
	}
	health.Register(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	coreModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coreModule.Run(gctx)
	})
	g.Go(func() error {
		zap.L().Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
