package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-checkout-engine/internal/middleware"
	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/payment"
	"github.com/flicky/go-checkout-engine/internal/repository"
	"github.com/flicky/go-checkout-engine/internal/service"
)

const testSecret = "test-secret"

type memCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]model.ProductRef
}

func (m *memCatalog) Create(_ context.Context, p *model.ProductRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memCatalog) GetByID(_ context.Context, id uuid.UUID) (*model.ProductRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]model.Order
}

func (m *memOrders) Save(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.Number] = *o
	return nil
}

func (m *memOrders) GetByNumber(_ context.Context, number string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[number]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memOrders) ListByShopper(_ context.Context, shopperID uuid.UUID) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.orders {
		if o.ShopperID == shopperID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) ReserveStock(context.Context, string, []model.LineItem) error { return nil }

func (m *memOrders) SetFulfillmentStatus(context.Context, string, model.FulfillmentStatus) error {
	return nil
}

type testServer struct {
	router  *gin.Engine
	catalog *memCatalog
	orders  *memOrders
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog := &memCatalog{products: make(map[uuid.UUID]model.ProductRef)}
	orders := &memOrders{orders: make(map[string]model.Order)}
	coupons, err := repository.NewStaticCouponRegistry(map[string]string{"BEMVINDO": "0.15"})
	require.NoError(t, err)

	timeout := time.Second
	resolver := service.NewDiscountResolver(coupons, timeout)
	factory := service.NewOrderFactory(payment.NewGateway(payment.TestCardDecider{}, 0), orders, nil, nil, timeout, log)
	engine := service.NewCheckoutEngine(resolver, factory, log)
	shoppers := service.NewShoppers(catalog, engine, timeout)

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), middleware.AuthMiddleware(testSecret), Routes{
		Product:  NewProductHandler(service.NewProductService(catalog, timeout), log),
		Cart:     NewCartHandler(shoppers, resolver, log),
		Checkout: NewCheckoutHandler(shoppers, log),
		Order:    NewOrderHandler(service.NewOrderService(orders), log),
	})
	return &testServer{router: router, catalog: catalog, orders: orders}
}

func (s *testServer) product(name, price string, stock int) uuid.UUID {
	p := &model.ProductRef{Name: name, UnitPrice: decimal.RequireFromString(price), AvailableStock: stock}
	_ = s.catalog.Create(context.Background(), p)
	return p.ID
}

func token(t *testing.T, shopperID uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": shopperID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, shopperID uuid.UUID, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if shopperID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+token(t, shopperID))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	shopper := uuid.New()
	a := s.product("Camiseta", "50.00", 10)
	b := s.product("Caneca", "30.00", 10)

	w, _ := s.do(t, shopper, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": a})
	require.Equal(t, http.StatusCreated, w.Code)
	w, body := s.do(t, shopper, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": b, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	cart := body["cart"].(map[string]any)
	assert.Equal(t, "115.50", cart["pricing"].(map[string]any)["total"])

	w, body = s.do(t, shopper, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "CONTACT_ADDRESS", body["step"])

	w, _ = s.do(t, shopper, http.MethodPut, "/api/v1/checkout/contact", gin.H{
		"fullName": "Ana Souza", "email": "ana@example.com", "phone": "11987654321", "taxId": "529.982.247-25",
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, shopper, http.MethodPut, "/api/v1/checkout/address", gin.H{
		"zip": "01310-100", "street": "Av. Paulista", "number": "1000",
		"neighborhood": "Bela Vista", "city": "São Paulo", "state": "SP",
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, shopper, http.MethodPost, "/api/v1/checkout/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, shopper, http.MethodPut, "/api/v1/checkout/payment", gin.H{
		"method":       "CREDIT_CARD",
		"installments": 3,
		"card":         gin.H{"number": "4111111111111111", "holderName": "ANA SOUZA", "expiry": "12/35", "cvv": "123"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, body = s.do(t, shopper, http.MethodPost, "/api/v1/checkout/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REVIEW", body["step"])

	w, body = s.do(t, shopper, http.MethodPost, "/api/v1/checkout/coupon", gin.H{"code": "bemvindo"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "16.50", body["discount_amount"])

	w, _ = s.do(t, shopper, http.MethodPost, "/api/v1/checkout/commit", nil, idempotencyHeader, "key-1")
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, shopper, http.MethodPut, "/api/v1/checkout/terms", gin.H{"accepted": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, order := s.do(t, shopper, http.MethodPost, "/api/v1/checkout/commit", nil, idempotencyHeader, "key-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "CONFIRMED", order["status"])
	assert.Equal(t, "99.00", order["pricing"].(map[string]any)["total"])
	assert.Equal(t, "33.00", order["payment"].(map[string]any)["installment_amount"])
	assert.NotContains(t, w.Body.String(), "4111111111111111")
	number := order["number"].(string)

	w, again := s.do(t, shopper, http.MethodPost, "/api/v1/checkout/commit", nil, idempotencyHeader, "key-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, number, again["number"])

	w, conflict := s.do(t, shopper, http.MethodPost, "/api/v1/checkout/commit", nil, idempotencyHeader, "key-2")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, number, conflict["order"].(map[string]any)["number"])

	w, body = s.do(t, shopper, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["items"])

	w, body = s.do(t, shopper, http.MethodGet, "/api/v1/orders/"+number, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, number, body["number"])

	w, _ = s.do(t, uuid.New(), http.MethodGet, "/api/v1/orders/"+number, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(t, shopper, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
}

func TestCheckout_ValidationErrors(t *testing.T) {
	s := newTestServer(t)
	shopper := uuid.New()
	a := s.product("Camiseta", "50.00", 10)

	s.do(t, shopper, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": a})
	s.do(t, shopper, http.MethodPost, "/api/v1/checkout", nil)

	w, body := s.do(t, shopper, http.MethodPost, "/api/v1/checkout/advance", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var names []string
	for _, f := range body["fields"].([]any) {
		names = append(names, f.(map[string]any)["field"].(string))
	}
	assert.Contains(t, names, "contact.email")
	assert.Contains(t, names, "address.zip")

	w, body = s.do(t, shopper, http.MethodGet, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CONTACT_ADDRESS", body["step"])
	assert.NotEmpty(t, body["validation_errors"])
}

func TestCart_Errors(t *testing.T) {
	s := newTestServer(t)
	shopper := uuid.New()
	a := s.product("Camiseta", "50.00", 3)

	w, body := s.do(t, shopper, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": a, "quantity": 5})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 3, body["warning"].(map[string]any)["available"])

	w, _ = s.do(t, shopper, http.MethodPut, "/api/v1/cart/items/"+a.String(), gin.H{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, shopper, http.MethodPut, "/api/v1/cart/items/"+a.String(), gin.H{"quantity": 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.EqualValues(t, 3, body["available"])

	w, _ = s.do(t, shopper, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, shopper, http.MethodPost, "/api/v1/cart/coupon", gin.H{"code": "NOPE"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, shopper, http.MethodDelete, "/api/v1/cart/items/"+a.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, shopper, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, shopper, http.MethodGet, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout_DeclinedCard(t *testing.T) {
	s := newTestServer(t)
	shopper := uuid.New()
	a := s.product("Camiseta", "50.00", 3)

	s.do(t, shopper, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": a})
	s.do(t, shopper, http.MethodPost, "/api/v1/checkout", nil)
	s.do(t, shopper, http.MethodPut, "/api/v1/checkout/contact", gin.H{
		"fullName": "Ana Souza", "email": "ana@example.com", "phone": "11987654321", "taxId": "52998224725",
	})
	s.do(t, shopper, http.MethodPut, "/api/v1/checkout/address", gin.H{
		"zip": "01310100", "street": "Av. Paulista", "number": "1000",
		"neighborhood": "Bela Vista", "city": "São Paulo", "state": "SP",
	})
	s.do(t, shopper, http.MethodPost, "/api/v1/checkout/advance", nil)
	s.do(t, shopper, http.MethodPut, "/api/v1/checkout/payment", gin.H{
		"method": "CREDIT_CARD", "installments": 1,
		"card": gin.H{"number": payment.DeclinedCard, "holderName": "ANA", "expiry": "12/35", "cvv": "123"},
	})
	w, _ := s.do(t, shopper, http.MethodPost, "/api/v1/checkout/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	s.do(t, shopper, http.MethodPut, "/api/v1/checkout/terms", gin.H{"accepted": true})

	w, body := s.do(t, shopper, http.MethodPost, "/api/v1/checkout/commit", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "card declined", body["reason"])

	w, body = s.do(t, shopper, http.MethodGet, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REVIEW", body["step"])
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, uuid.Nil, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProduct_GetByID(t *testing.T) {
	s := newTestServer(t)
	a := s.product("Camiseta", "49.9", 4)

	w, body := s.do(t, uuid.Nil, http.MethodGet, "/api/v1/products/"+a.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "49.90", body["unit_price"])
	assert.EqualValues(t, 4, body["available_stock"])

	w, _ = s.do(t, uuid.Nil, http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := Dependency{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := Dependency{Name: "redis", Ping: func(context.Context) error { return context.DeadlineExceeded }}

	router := gin.New()
	router.GET("/readyz", NewHealthHandler(time.Second, ok, down).Readyz)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
	assert.Contains(t, rec.Body.String(), `"postgres":"connected"`)
}
