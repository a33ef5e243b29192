package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/repository"
)

const (
	orderQueueName = "orders.confirmed"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.confirmed.dlq"
	dedupeTTL      = 24 * time.Hour
)

// OrderWorker reserves stock for confirmed orders. The order record is never
// rewritten; only its fulfillment status moves to reserved or failed.
type OrderWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewOrderWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	redisClient *redis.Client,
	log *slog.Logger,
) *OrderWorker {
	return &OrderWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderQueueName,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started", "queue", orderQueueName)
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var orderMsg model.OrderMessage
	if err := json.Unmarshal(msg.Body, &orderMsg); err != nil || orderMsg.OrderNumber == "" {
		w.log.Error("unmarshal order message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_number", orderMsg.OrderNumber, "shopper_id", orderMsg.ShopperID)

	dedupeKey := "order_stock_reserved:" + orderMsg.OrderNumber
	exists, err := w.redisClient.Exists(ctx, dedupeKey).Result()
	if err != nil {
		log.Error("check dedupe key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("stock already reserved, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.reserve(ctx, orderMsg.OrderNumber); err != nil {
		log.Error("reserve stock failed", "error", err)
		if serr := w.orderRepo.SetFulfillmentStatus(ctx, orderMsg.OrderNumber, model.FulfillmentFailed); serr != nil {
			log.Error("mark fulfillment failed", "error", serr)
		}
		_ = msg.Nack(false, false) // → DLQ
		return
	}

	if err := w.redisClient.Set(ctx, dedupeKey, "1", dedupeTTL).Err(); err != nil {
		log.Error("set dedupe key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("stock reserved")
}

func (w *OrderWorker) reserve(ctx context.Context, number string) error {
	order, err := w.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", number)
	}

	if err := w.orderRepo.ReserveStock(ctx, number, order.Items); err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	return nil
}
