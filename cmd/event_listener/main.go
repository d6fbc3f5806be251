package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nandanugg/minefield-alarm/config"
)

const (
	exchangeName = "minefield.events"
	queueName    = "minefield_alarms"
)

type alarmMessage struct {
	EventID        string  `json:"event_id"`
	DeviceID       string  `json:"device_id"`
	FieldID        string  `json:"field_id"`
	FieldName      string  `json:"field_name"`
	DistanceMeters float64 `json:"distance_meters"`
	Timestamp      int64   `json:"timestamp"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zap.L().Sync() }()

	conn, err := config.NewRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		zap.L().Fatal("rabbitmq", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		zap.L().Fatal("rabbitmq channel", zap.Error(err))
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		zap.L().Fatal("declare exchange", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		zap.L().Fatal("declare queue", zap.Error(err))
	}
	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		zap.L().Fatal("bind queue", zap.Error(err))
	}

	msgs, err := ch.Consume(queueName, "", true, false, false, false, nil)
	if err != nil {
		zap.L().Fatal("consume", zap.Error(err))
	}

	zap.L().Info("waiting for minefield alarms", zap.String("queue", queueName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("shutting down")
			return
		case msg, ok := <-msgs:
			if !ok {
				zap.L().Warn("alarm queue closed")
				return
			}
			var alarm alarmMessage
			if err := json.Unmarshal(msg.Body, &alarm); err != nil {
				zap.L().Warn("undecodable alarm", zap.Error(err))
				continue
			}
			fmt.Printf("[%s] %s device %s entered %s %q, %.0fm from center\n",
				time.Unix(alarm.Timestamp, 0).Format(time.RFC3339), alarm.EventID,
				alarm.DeviceID, alarm.FieldID, alarm.FieldName, alarm.DistanceMeters)
		}
	}
}
