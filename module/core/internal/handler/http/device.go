package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

type locationService interface {
	GetLatest(ctx context.Context, deviceID string) (*domain.ObserverPosition, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error)
	GetAllDevices(ctx context.Context) ([]domain.Device, error)
}

type locationResponse struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

type DeviceHandler struct {
	locationSvc locationService
}

func NewDeviceHandler(locationSvc locationService) *DeviceHandler {
	return &DeviceHandler{locationSvc: locationSvc}
}

func (h *DeviceHandler) Register(r *gin.RouterGroup) {
	r.GET("/devices", h.GetAllDevices)
	r.GET("/devices/:device_id/location", h.GetLatestLocation)
	r.GET("/devices/:device_id/history", h.GetHistory)
}

func (h *DeviceHandler) GetAllDevices(c *gin.Context) {
	devices, err := h.locationSvc.GetAllDevices(c.Request.Context())
	if err != nil {
		zap.L().Error("list devices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch devices"})
		return
	}
	if devices == nil {
		devices = []domain.Device{}
	}

	c.JSON(http.StatusOK, devices)
}

func (h *DeviceHandler) GetLatestLocation(c *gin.Context) {
	deviceID := c.Param("device_id")

	pos, err := h.locationSvc.GetLatest(c.Request.Context(), deviceID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if err != nil {
		zap.L().Error("latest position", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch location"})
		return
	}

	c.JSON(http.StatusOK, toLocationResponse(pos))
}

func (h *DeviceHandler) GetHistory(c *gin.Context) {
	deviceID := c.Param("device_id")

	start, err := strconv.ParseInt(c.Query("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}

	end, err := strconv.ParseInt(c.Query("end"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}

	query := &domain.HistoryQuery{
		DeviceID: deviceID,
		Start:    time.Unix(start, 0),
		End:      time.Unix(end, 0),
	}

	positions, err := h.locationSvc.GetHistory(c.Request.Context(), query)
	if errors.Is(err, domain.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		zap.L().Error("position history", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	results := make([]locationResponse, len(positions))
	for i := range positions {
		results[i] = toLocationResponse(&positions[i])
	}
	c.JSON(http.StatusOK, results)
}

func toLocationResponse(pos *domain.ObserverPosition) locationResponse {
	return locationResponse{
		DeviceID:  pos.DeviceID,
		Latitude:  pos.Point.Lat,
		Longitude: pos.Point.Lon,
		Accuracy:  pos.Accuracy,
		Timestamp: pos.Timestamp.Unix(),
	}
}
