package config

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type sqlPinger interface {
	PingContext(ctx context.Context) error
}

type amqpConn interface {
	IsClosed() bool
}

type mqttConn interface {
	IsConnected() bool
}

type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthChecker reports dependency status. A nil dependency is skipped.
type HealthChecker struct {
	db       sqlPinger
	amqpConn amqpConn
	mqtt     mqttConn
	redis    redisPinger
}

func NewHealthChecker(db sqlPinger, amqpConn amqpConn, mqttClient mqttConn) *HealthChecker {
	return &HealthChecker{db: db, amqpConn: amqpConn, mqtt: mqttClient}
}

// WithRedis adds the Redis geofence store to the report.
func (h *HealthChecker) WithRedis(rdb redisPinger) *HealthChecker {
	h.redis = rdb
	return h
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	deps := gin.H{}

	report := func(name string, err error) {
		if err != nil {
			deps[name] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
			return
		}
		deps[name] = gin.H{"status": "up"}
	}

	if h.db != nil {
		report("postgres", h.db.PingContext(ctx))
	}
	if h.amqpConn != nil {
		report("rabbitmq", boolErr(!h.amqpConn.IsClosed(), "connection closed"))
	}
	if h.mqtt != nil {
		report("mqtt", boolErr(h.mqtt.IsConnected(), "not connected"))
	}
	if h.redis != nil {
		report("redis", h.redis.Ping(ctx).Err())
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}

type healthError string

func (e healthError) Error() string { return string(e) }

func boolErr(ok bool, msg string) error {
	if ok {
		return nil
	}
	return healthError(msg)
}
