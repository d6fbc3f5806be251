package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/publisher"
)

var _ publisher.AlarmPublisher = (*AlarmPublisher)(nil)

const (
	ExchangeName = "minefield.events"
	QueueName    = "minefield_alarms"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AlarmPublisher struct {
	ch channel
}

func NewAlarmPublisher(conn *amqp.Connection) (*AlarmPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, eris.Wrap(err, "rabbitmq channel")
	}
	if err := DeclareTopology(ch); err != nil {
		return nil, err
	}
	return &AlarmPublisher{ch: ch}, nil
}

// DeclareTopology declares the fanout exchange and the durable alarm queue
// bound to it.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return eris.Wrap(err, "declare exchange")
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return eris.Wrap(err, "declare queue")
	}
	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return eris.Wrap(err, "bind queue")
	}
	return nil
}

type AlarmMessage struct {
	EventID        string        `json:"event_id"`
	DeviceID       string        `json:"device_id"`
	FieldID        string        `json:"field_id"`
	FieldName      string        `json:"field_name,omitempty"`
	Location       alarmLocation `json:"location"`
	DistanceMeters float64       `json:"distance_meters"`
	Timestamp      int64         `json:"timestamp"`
}

type alarmLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p *AlarmPublisher) PublishAlarm(ctx context.Context, alarm *domain.Alarm) error {
	msg := AlarmMessage{
		EventID:   alarm.EventID,
		DeviceID:  alarm.DeviceID,
		FieldID:   alarm.FieldID,
		FieldName: alarm.FieldName,
		Location: alarmLocation{
			Latitude:  alarm.Position.Lat,
			Longitude: alarm.Position.Lon,
		},
		DistanceMeters: alarm.DistanceMeters,
		Timestamp:      alarm.Timestamp.Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "marshal alarm")
	}

	err = p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    alarm.EventID,
		Body:         body,
	})
	return eris.Wrapf(err, "publish alarm %s", alarm.EventID)
}
