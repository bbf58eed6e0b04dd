package rest

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/vehicle"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type typeBounds struct {
	Type vehicle.Type `json:"type"`
	vehicle.Bounds
}

// GET /api/vehicle/config/bounds
func (s *Server) vehicleBounds(c *gin.Context) {
	bounds := vehicle.AllBounds()
	out := make([]typeBounds, 0, len(bounds))
	for _, t := range vehicle.Types() {
		out = append(out, typeBounds{Type: t, Bounds: bounds[t]})
	}

	c.JSON(http.StatusOK, gin.H{
		"types":   out,
		"default": vehicle.DefaultConfig(),
	})
}

// POST /api/vehicle/model
func (s *Server) vehicleModel(c *gin.Context) {
	model, plan, ok := s.buildVehicle(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":         model,
		"plan":          plan,
		"status_counts": model.StatusCounts(),
	})
}

// POST /api/vehicle/render?selected=<wheel id>
func (s *Server) vehicleRender(c *gin.Context) {
	model, plan, ok := s.buildVehicle(c)
	if !ok {
		return
	}

	selected := c.Query("selected")
	if selected != "" {
		if _, _, found := model.Wheel(selected); !found {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("VEHICLE_400", "Unknown wheel", selected))
			return
		}
	}

	var buf bytes.Buffer
	if err := vehicle.RenderSVG(&buf, plan, plan.Fit, selected); err != nil {
		s.logger.Error("Failed to render vehicle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("VEHICLE_500", "Failed to render vehicle", err.Error()))
		return
	}

	c.Data(http.StatusOK, "image/svg+xml", buf.Bytes())
}

func (s *Server) buildVehicle(c *gin.Context) (*vehicle.Model, *vehicle.RenderPlan, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("VEHICLE_400", "Invalid request body", err.Error()))
		return nil, nil, false
	}

	cfg, err := vehicle.ParseConfig(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("VEHICLE_400", "Invalid vehicle configuration", err.Error()))
		return nil, nil, false
	}

	model, plan, err := s.svc.Vehicles.Build(cfg)
	if err != nil {
		var ve *vehicle.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("VEHICLE_400", "Invalid vehicle configuration", ve.Error()))
			return nil, nil, false
		}
		s.logger.Error("Failed to build vehicle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("VEHICLE_500", "Failed to build vehicle", err.Error()))
		return nil, nil, false
	}

	return model, plan, true
}
