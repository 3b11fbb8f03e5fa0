package mq

import (
	"context"
	"time"

	"blackout-watch/internal/models"
)

// Sink routes worker notifications to the bot process via RabbitMQ.
type Sink struct {
	Pub *Publisher
}

func NewSink(pub *Publisher) *Sink {
	return &Sink{Pub: pub}
}

// SendScheduleUpdate publishes a changed-schedule notification for one subscription.
func (s *Sink) SendScheduleUpdate(ctx context.Context, sub *models.Subscription, text string) error {
	return s.Pub.Publish(ctx, RoutingScheduleUpdate, ScheduleUpdateMsg{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Address:        sub.Address().Display(),
		Group:          sub.Group,
		Text:           text,
		When:           time.Now(),
	})
}

// SendAlert publishes a lead-time outage warning for one subscription.
func (s *Sink) SendAlert(ctx context.Context, sub *models.Subscription, text string, eventAt time.Time) error {
	return s.Pub.Publish(ctx, RoutingOutageAlert, OutageAlertMsg{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Address:        sub.Address().Display(),
		Text:           text,
		EventAt:        eventAt,
		When:           time.Now(),
	})
}
