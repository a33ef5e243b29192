package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Dependency is one backend the readiness probe pings.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

func PostgresDependency(pool *pgxpool.Pool) Dependency {
	return Dependency{Name: "postgres", Ping: pool.Ping}
}

func RedisDependency(client *redis.Client) Dependency {
	return Dependency{Name: "redis", Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() }}
}

func RabbitMQDependency(conn *amqp.Connection) Dependency {
	return Dependency{Name: "rabbitmq", Ping: func(context.Context) error {
		if conn.IsClosed() {
			return amqp.ErrClosed
		}
		return nil
	}}
}

type HealthHandler struct {
	deps    []Dependency
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration, deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: timeout}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := gin.H{"status": "ok"}
	status := http.StatusOK
	for _, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			resp[dep.Name] = "unavailable"
			resp["status"] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		resp[dep.Name] = "connected"
	}
	c.JSON(status, resp)
}
