package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/service"
	"go.uber.org/zap"
)

// TriggerRequest is the body of the engine trigger endpoint
type TriggerRequest struct {
	UserID     *types.UUID `json:"user_id,omitempty"`
	TargetDate *types.Date `json:"target_date,omitempty"`
	Mode       string      `json:"mode" binding:"required"`
}

// EmergencyRequest is the body of the emergency endpoint
type EmergencyRequest struct {
	Message string `json:"message" binding:"required"`
}

// EngineHandler exposes the engine trigger and emergency alerts
type EngineHandler struct {
	engine    EngineRunner
	emergency EmergencyRaiser
	logger    *zap.Logger
}

// NewEngineHandler creates a new EngineHandler
func NewEngineHandler(engine EngineRunner, emergency EmergencyRaiser, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{
		engine:    engine,
		emergency: emergency,
		logger:    logger,
	}
}

// Trigger runs the engine once and returns what it did
func (h *EngineHandler) Trigger(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		validationError(c, "Invalid request body", err)
		return
	}

	mode, err := service.ParseMode(req.Mode)
	if err != nil {
		validationError(c, "mode must be one of generate, sweep, report", err)
		return
	}

	trigger := service.Trigger{
		Mode:       mode,
		TargetDate: datePtrToTime(req.TargetDate),
	}
	if req.UserID != nil {
		trigger.UserID = uuidToString(*req.UserID)
	}

	summary, err := h.engine.Run(c.Request.Context(), trigger)
	if err != nil {
		if summary == nil {
			serviceError(c, h.logger, "Engine run failed", err)
			return
		}
		h.logger.Warn("engine run completed with errors", zap.Error(err), zap.String("mode", req.Mode))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    CodeInternal,
			Message: "Engine run completed with errors",
			Details: stringPtr(err.Error()),
		})
		return
	}

	status := http.StatusOK
	if summary.Debounced {
		status = http.StatusAccepted
	}
	c.JSON(status, summary)
}

// RaiseEmergency sends a critical alert to the user and their caregivers
func (h *EngineHandler) RaiseEmergency(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	var req EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		validationError(c, "Invalid request body", err)
		return
	}

	result, err := h.emergency.Raise(c.Request.Context(), userID, req.Message)
	if err != nil {
		serviceError(c, h.logger, "Failed to raise emergency", err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}
