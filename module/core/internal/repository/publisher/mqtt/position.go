package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/publisher"
)

var _ publisher.PositionNotifier = (*PositionNotifier)(nil)

const observerTopicFormat = "/minefield/device/%s/observer"

// ObserverTopic is where accepted positions for deviceID are announced.
func ObserverTopic(deviceID string) string {
	return fmt.Sprintf(observerTopicFormat, deviceID)
}

type positionMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

// PositionNotifier publishes at QoS 0 without waiting for the broker.
type PositionNotifier struct {
	client pahomqtt.Client
}

func NewPositionNotifier(client pahomqtt.Client) *PositionNotifier {
	return &PositionNotifier{client: client}
}

func (n *PositionNotifier) NotifyPosition(_ context.Context, pos *domain.ObserverPosition) error {
	payload, err := json.Marshal(positionMessage{
		Latitude:  pos.Point.Lat,
		Longitude: pos.Point.Lon,
		Timestamp: pos.Timestamp.Unix(),
	})
	if err != nil {
		return eris.Wrap(err, "marshal position")
	}

	if !n.client.IsConnectionOpen() {
		return eris.New("mqtt connection not open")
	}
	n.client.Publish(ObserverTopic(pos.DeviceID), 0, false, payload)
	return nil
}
