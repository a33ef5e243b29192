package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/repository"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}
func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

type mockOrderRepo struct {
	orders   map[string]*model.Order
	stock    map[uuid.UUID]int
	status   map[string]model.FulfillmentStatus
	reserves int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders: make(map[string]*model.Order),
		stock:  make(map[uuid.UUID]int),
		status: make(map[string]model.FulfillmentStatus),
	}
}

func (m *mockOrderRepo) Save(_ context.Context, o *model.Order) error {
	m.orders[o.Number] = o
	m.status[o.Number] = model.FulfillmentPending
	return nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, number string) (*model.Order, error) {
	return m.orders[number], nil
}

func (m *mockOrderRepo) ListByShopper(context.Context, uuid.UUID) ([]model.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) ReserveStock(_ context.Context, number string, items []model.LineItem) error {
	m.reserves++
	for _, it := range items {
		if m.stock[it.ProductID] < it.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	for _, it := range items {
		m.stock[it.ProductID] -= it.Quantity
	}
	m.status[number] = model.FulfillmentReserved
	return nil
}

func (m *mockOrderRepo) SetFulfillmentStatus(_ context.Context, number string, s model.FulfillmentStatus) error {
	m.status[number] = s
	return nil
}

func setup(t *testing.T) (*OrderWorker, *mockOrderRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMockOrderRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrderWorker(nil, repo, client, log), repo
}

func delivery(t *testing.T, ack *fakeAck, number string) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(model.OrderMessage{OrderNumber: number, ShopperID: uuid.New()})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func seedOrder(repo *mockOrderRepo, number string, qty, stock int) uuid.UUID {
	productID := uuid.New()
	repo.stock[productID] = stock
	_ = repo.Save(context.Background(), &model.Order{
		Number: number,
		Items: []model.LineItem{
			{ProductID: productID, Name: "Caneca", Quantity: qty, UnitPrice: decimal.NewFromInt(30)},
		},
	})
	return productID
}

func TestProcessMessage_ReservesStock(t *testing.T) {
	w, repo := setup(t)
	productID := seedOrder(repo, "PED-1", 2, 5)

	ack := &fakeAck{}
	w.processMessage(context.Background(), delivery(t, ack, "PED-1"))

	assert.True(t, ack.acked)
	assert.Equal(t, 3, repo.stock[productID])
	assert.Equal(t, model.FulfillmentReserved, repo.status["PED-1"])
}

func TestProcessMessage_Redelivery(t *testing.T) {
	w, repo := setup(t)
	productID := seedOrder(repo, "PED-1", 2, 5)

	w.processMessage(context.Background(), delivery(t, &fakeAck{}, "PED-1"))
	ack := &fakeAck{}
	w.processMessage(context.Background(), delivery(t, ack, "PED-1"))

	assert.True(t, ack.acked)
	assert.Equal(t, 1, repo.reserves)
	assert.Equal(t, 3, repo.stock[productID])
}

func TestProcessMessage_InsufficientStock(t *testing.T) {
	w, repo := setup(t)
	productID := seedOrder(repo, "PED-1", 4, 3)

	ack := &fakeAck{}
	w.processMessage(context.Background(), delivery(t, ack, "PED-1"))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Equal(t, 3, repo.stock[productID])
	assert.Equal(t, model.FulfillmentFailed, repo.status["PED-1"])
}

func TestProcessMessage_UnknownOrder(t *testing.T) {
	w, _ := setup(t)

	ack := &fakeAck{}
	w.processMessage(context.Background(), delivery(t, ack, "PED-404"))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessMessage_BadPayload(t *testing.T) {
	w, _ := setup(t)

	ack := &fakeAck{}
	w.processMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

type recordingChannel struct {
	key string
	msg amqp.Publishing
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key, c.msg = key, msg
	return nil
}

func TestPublisher_PublishOrderConfirmed(t *testing.T) {
	ch := &recordingChannel{}
	shopper := uuid.New()

	err := NewPublisher(ch).PublishOrderConfirmed(context.Background(), model.Order{Number: "PED-1", ShopperID: shopper})
	require.NoError(t, err)

	assert.Equal(t, orderQueueName, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var got model.OrderMessage
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "PED-1", got.OrderNumber)
	assert.Equal(t, shopper, got.ShopperID)
}
