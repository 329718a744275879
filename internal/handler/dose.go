package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const (
	defaultUpcomingHours = 24
	maxUpcomingHours     = 24 * 7
)

// TakenRequest is the optional body of the taken endpoint
type TakenRequest struct {
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

// DoseHandler implements dose API endpoints
type DoseHandler struct {
	service DoseTracker
	logger  *zap.Logger
}

// NewDoseHandler creates a new DoseHandler
func NewDoseHandler(service DoseTracker, logger *zap.Logger) *DoseHandler {
	return &DoseHandler{
		service: service,
		logger:  logger,
	}
}

// GetToday returns the user's doses for their current local day
func (h *DoseHandler) GetToday(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	doses, err := h.service.GetToday(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, h.logger, "Failed to retrieve doses", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"doses": nonNilDoses(doses)})
}

// GetUpcoming returns pending doses within the next hours (default 24)
func (h *DoseHandler) GetUpcoming(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	hours := defaultUpcomingHours
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxUpcomingHours {
			validationError(c, "hours must be between 1 and 168", err)
			return
		}
		hours = parsed
	}

	doses, err := h.service.GetUpcoming(c.Request.Context(), userID, time.Duration(hours)*time.Hour)
	if err != nil {
		serviceError(c, h.logger, "Failed to retrieve doses", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"doses": nonNilDoses(doses)})
}

// MarkTaken records that a dose was taken
func (h *DoseHandler) MarkTaken(c *gin.Context) {
	doseID, ok := uuidParam(c, "doseId")
	if !ok {
		return
	}

	var req TakenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Debug("invalid request body", zap.Error(err))
			validationError(c, "Invalid request body", err)
			return
		}
	}

	dose, err := h.service.MarkTaken(c.Request.Context(), doseID, req.TakenAt, requestInfo(c))
	if err != nil {
		serviceError(c, h.logger, "Failed to mark dose taken", err)
		return
	}

	h.logger.Info("dose marked taken",
		zap.String("dose_id", doseID),
		zap.String("user_id", dose.UserID),
	)

	c.JSON(http.StatusOK, dose)
}

func nonNilDoses(doses []model.DoseInstance) []model.DoseInstance {
	if doses == nil {
		return []model.DoseInstance{}
	}
	return doses
}
