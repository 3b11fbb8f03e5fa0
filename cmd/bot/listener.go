package main

import (
	"context"
	"encoding/json"
	"log"

	tele "gopkg.in/telebot.v3"

	"blackout-watch/internal/mq"
)

// listener consumes worker notifications from RabbitMQ and delivers them
// to subscribers as Telegram messages.
type listener struct {
	bot      *tele.Bot
	consumer *mq.Consumer
}

var htmlOpts = &tele.SendOptions{ParseMode: tele.ModeHTML}

func newListener(b *tele.Bot, consumer *mq.Consumer) *listener {
	return &listener{bot: b, consumer: consumer}
}

func (l *listener) start(ctx context.Context) {
	updateCh, err := l.consumer.Consume(mq.QueueScheduleUpdate)
	if err != nil {
		log.Fatalf("[listener] failed to consume %s: %v", mq.QueueScheduleUpdate, err)
	}
	alertCh, err := l.consumer.Consume(mq.QueueOutageAlert)
	if err != nil {
		log.Fatalf("[listener] failed to consume %s: %v", mq.QueueOutageAlert, err)
	}

	log.Println("[listener] consuming from schedule_update, outage_alert")

	for {
		select {
		case <-ctx.Done():
			log.Println("[listener] stopped")
			return
		case d, ok := <-updateCh:
			if !ok {
				return
			}
			l.handleScheduleUpdate(d.Body)
			d.Ack(false)
		case d, ok := <-alertCh:
			if !ok {
				return
			}
			l.handleOutageAlert(d.Body)
			d.Ack(false)
		}
	}
}

func (l *listener) handleScheduleUpdate(payload []byte) {
	var msg mq.ScheduleUpdateMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[listener] bad schedule_update message: %v", err)
		return
	}
	if _, err := l.bot.Send(&tele.User{ID: msg.UserID}, msg.Text, htmlOpts); err != nil {
		log.Printf("[listener] send update to user %d: %v", msg.UserID, err)
	}
}

func (l *listener) handleOutageAlert(payload []byte) {
	var msg mq.OutageAlertMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[listener] bad outage_alert message: %v", err)
		return
	}
	if _, err := l.bot.Send(&tele.User{ID: msg.UserID}, msg.Text, htmlOpts); err != nil {
		log.Printf("[listener] send alert to user %d: %v", msg.UserID, err)
	}
}
