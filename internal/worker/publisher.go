package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher announces confirmed orders on the orders.confirmed queue.
type Publisher struct {
	ch Channel
}

func NewPublisher(ch Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) PublishOrderConfirmed(ctx context.Context, order model.Order) error {
	body, err := json.Marshal(model.OrderMessage{OrderNumber: order.Number, ShopperID: order.ShopperID})
	if err != nil {
		return fmt.Errorf("marshal order message: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", orderQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    order.Number,
	})
	if err != nil {
		return fmt.Errorf("publish order %s: %w", order.Number, err)
	}
	return nil
}
