package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

type fieldRegistry interface {
	GetAllFields(ctx context.Context) ([]domain.Field, error)
}

type geofenceState interface {
	ActiveSet() []domain.Field
	Pending() (domain.ReconciliationPlan, bool)
}

type fieldResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type activeResponse struct {
	Fields []fieldResponse `json:"fields"`
	// PendingSeq is the plan still awaiting a provider result, zero if none.
	PendingSeq uint64 `json:"pending_seq"`
}

type GeofenceHandler struct {
	registry fieldRegistry
	state    geofenceState
}

func NewGeofenceHandler(registry fieldRegistry, state geofenceState) *GeofenceHandler {
	return &GeofenceHandler{registry: registry, state: state}
}

func (h *GeofenceHandler) Register(r *gin.RouterGroup) {
	r.GET("/fields", h.GetFields)
	r.GET("/geofences/active", h.GetActive)
}

func (h *GeofenceHandler) GetFields(c *gin.Context) {
	fields, err := h.registry.GetAllFields(c.Request.Context())
	if err != nil {
		zap.L().Error("list fields", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch fields"})
		return
	}

	c.JSON(http.StatusOK, toFieldResponses(fields))
}

func (h *GeofenceHandler) GetActive(c *gin.Context) {
	resp := activeResponse{Fields: toFieldResponses(h.state.ActiveSet())}
	if plan, ok := h.state.Pending(); ok {
		resp.PendingSeq = plan.Seq
	}
	c.JSON(http.StatusOK, resp)
}

func toFieldResponses(fields []domain.Field) []fieldResponse {
	out := make([]fieldResponse, len(fields))
	for i, f := range fields {
		out[i] = fieldResponse{
			ID:           f.ID,
			Name:         f.Name,
			Latitude:     f.Center.Lat,
			Longitude:    f.Center.Lon,
			RadiusMeters: f.RadiusMeters,
		}
	}
	return out
}
