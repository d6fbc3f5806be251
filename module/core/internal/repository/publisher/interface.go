package publisher

import (
	"context"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

type AlarmPublisher interface {
	PublishAlarm(ctx context.Context, alarm *domain.Alarm) error
}

// PositionNotifier forwards accepted positions to UI consumers. Delivery is
// fire-and-forget.
type PositionNotifier interface {
	NotifyPosition(ctx context.Context, pos *domain.ObserverPosition) error
}
