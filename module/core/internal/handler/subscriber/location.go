package subscriber

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

const (
	topicFormat      = "/minefield/device/%s/location"
	subscribeTimeout = 10 * time.Second

	// subackFailure is the MQTT 3.1.1 SUBACK return code for a refused
	// subscription.
	subackFailure byte = 0x80
)

type positionSink interface {
	SubmitPosition(pos domain.ObserverPosition) bool
}

type locationMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

// LocationSubscriber feeds one observer's positions from MQTT into the
// tracker.
type LocationSubscriber struct {
	client   mqtt.Client
	sink     positionSink
	deviceID string
	topic    string
}

func NewLocationSubscriber(client mqtt.Client, sink positionSink, deviceID string) *LocationSubscriber {
	return &LocationSubscriber{
		client:   client,
		sink:     sink,
		deviceID: deviceID,
		topic:    fmt.Sprintf(topicFormat, deviceID),
	}
}

func (s *LocationSubscriber) Topic() string { return s.topic }

// Start subscribes with QoS 1. A refused subscription is reported as
// domain.ErrPermissionDenied.
func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(s.topic, 1, s.handleMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		return eris.Errorf("subscribe %s: timed out after %s", s.topic, subscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return eris.Wrapf(err, "subscribe %s", s.topic)
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		return checkGranted(st.Result())
	}
	return nil
}

func checkGranted(granted map[string]byte) error {
	for topic, code := range granted {
		if code == subackFailure {
			return eris.Wrapf(domain.ErrPermissionDenied, "subscribe %s refused by broker", topic)
		}
	}
	return nil
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		zap.L().Warn("invalid location message", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if raw.DeviceID == "" {
		raw.DeviceID = deviceFromTopic(msg.Topic())
	}
	if raw.DeviceID != s.deviceID {
		zap.L().Warn("location message for another device dropped",
			zap.String("topic", msg.Topic()), zap.String("device_id", raw.DeviceID))
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		zap.L().Warn("location message rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	pos := domain.ObserverPosition{
		DeviceID:  raw.DeviceID,
		Point:     domain.GeoPoint{Lat: raw.Latitude, Lon: raw.Longitude},
		Accuracy:  raw.Accuracy,
		Timestamp: time.Unix(raw.Timestamp, 0),
	}
	s.sink.SubmitPosition(pos)
}

// deviceFromTopic extracts <id> from /minefield/device/<id>/location.
func deviceFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 4 {
		return ""
	}
	return parts[2]
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.DeviceID == "" {
		return domain.NewInvalidInputError("device_id", "required")
	}
	if err := (domain.GeoPoint{Lat: msg.Latitude, Lon: msg.Longitude}).Validate(); err != nil {
		return err
	}
	if msg.Accuracy < 0 {
		return domain.NewInvalidInputError("accuracy", "must not be negative")
	}
	if msg.Timestamp <= 0 {
		return domain.NewInvalidInputError("timestamp", "must be positive")
	}
	return nil
}
