package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// AdherenceHandler implements adherence API endpoints
type AdherenceHandler struct {
	service AdherenceReader
	logger  *zap.Logger
}

// NewAdherenceHandler creates a new AdherenceHandler
func NewAdherenceHandler(service AdherenceReader, logger *zap.Logger) *AdherenceHandler {
	return &AdherenceHandler{
		service: service,
		logger:  logger,
	}
}

// GetAdherence computes adherence for window=today|week|month|custom.
// A custom window takes RFC 3339 from and to query parameters.
func (h *AdherenceHandler) GetAdherence(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		window *model.AdherenceWindow
		err    error
	)

	switch c.DefaultQuery("window", "week") {
	case "today":
		window, err = h.service.Today(ctx, userID)
	case "week":
		window, err = h.service.ThisWeek(ctx, userID)
	case "month":
		window, err = h.service.ThisMonth(ctx, userID)
	case "custom":
		from, ferr := time.Parse(time.RFC3339, c.Query("from"))
		to, terr := time.Parse(time.RFC3339, c.Query("to"))
		if ferr != nil || terr != nil {
			validationError(c, "from and to must be RFC 3339 timestamps", nil)
			return
		}
		window, err = h.service.ComputeAdherence(ctx, userID, from, to)
	default:
		validationError(c, "window must be one of today, week, month, custom", nil)
		return
	}

	if err != nil {
		serviceError(c, h.logger, "Failed to compute adherence", err)
		return
	}

	c.JSON(http.StatusOK, window)
}

// GetStreak returns the number of consecutive fully adherent days
func (h *AdherenceHandler) GetStreak(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	streak, err := h.service.ComputeStreak(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, h.logger, "Failed to compute streak", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "streak_days": streak})
}
