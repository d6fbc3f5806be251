package core

import (
	"context"
	"database/sql"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nandanugg/minefield-alarm/config"
	handler "github.com/nandanugg/minefield-alarm/module/core/internal/handler/http"
	"github.com/nandanugg/minefield-alarm/module/core/internal/handler/subscriber"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database/file"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database/postgres"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/geofence"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/geofence/memory"
	geofenceredis "github.com/nandanugg/minefield-alarm/module/core/internal/repository/geofence/redis"
	mqttpub "github.com/nandanugg/minefield-alarm/module/core/internal/repository/publisher/mqtt"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/minefield-alarm/module/core/service"
)

type Module struct {
	LocationSvc *service.LocationService
	Selector    *service.GeofenceSelector
	Tracker     *service.Tracker

	deviceHandler   *handler.DeviceHandler
	geofenceHandler *handler.GeofenceHandler
	subscriber      *subscriber.LocationSubscriber
}

// Build wires the module. rdb may be nil, in which case geofences are kept
// in memory.
func Build(cfg *config.Config, db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, rdb *redis.Client) (*Module, error) {
	registry, err := newFieldRegistry(cfg.Fields, db)
	if err != nil {
		return nil, err
	}

	alarmPub, err := rabbitmq.NewAlarmPublisher(amqpConn)
	if err != nil {
		return nil, eris.Wrap(err, "alarm publisher")
	}

	locationSvc := service.NewLocationService(postgres.NewLocationRepo(db))
	selector := service.NewGeofenceSelector(registry, service.SelectorConfig{
		MaxRadiusMeters:  cfg.Geofence.MaxRadiusMeters,
		MaxActive:        cfg.Geofence.MaxActive,
		ReconcileTimeout: cfg.Geofence.ReconcileTimeout,
	})
	tracker := service.NewTracker(
		selector,
		newProvider(cfg.Redis, rdb),
		alarmPub,
		mqttpub.NewPositionNotifier(mqttClient),
		locationSvc,
		service.TrackerConfig{FastestInterval: cfg.Location.FastestInterval},
	)

	return &Module{
		LocationSvc:     locationSvc,
		Selector:        selector,
		Tracker:         tracker,
		deviceHandler:   handler.NewDeviceHandler(locationSvc),
		geofenceHandler: handler.NewGeofenceHandler(registry, selector),
		subscriber:      subscriber.NewLocationSubscriber(mqttClient, tracker, cfg.MQTT.DeviceID),
	}, nil
}

func newFieldRegistry(cfg config.FieldsConfig, db *sql.DB) (database.FieldRegistry, error) {
	if cfg.Source == config.FieldSourceFile {
		registry, err := file.Load(cfg.File)
		if err != nil {
			return nil, eris.Wrap(err, "field registry")
		}
		return registry, nil
	}
	return postgres.NewFieldRepo(db), nil
}

func newProvider(cfg config.RedisConfig, rdb *redis.Client) geofence.Provider {
	if rdb == nil {
		zap.L().Info("no redis address configured, keeping geofences in memory")
		return memory.NewProvider()
	}
	return geofenceredis.NewProvider(rdb, geofenceredis.Options{KeyPrefix: cfg.KeyPrefix})
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.deviceHandler.Register(r)
	m.geofenceHandler.Register(r)
}

// StartSubscribers subscribes to the observer's location topic. A refused
// subscription wraps domain.ErrPermissionDenied.
func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

// Run drives the tracker until ctx is cancelled.
func (m *Module) Run(ctx context.Context) error {
	return m.Tracker.Run(ctx)
}
