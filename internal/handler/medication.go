package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// MedicationRequest is the body for creating or replacing a medication
type MedicationRequest struct {
	Name      string      `json:"name" binding:"required"`
	Dosage    string      `json:"dosage" binding:"required"`
	Times     []string    `json:"times" binding:"required,min=1"`
	StartDate types.Date  `json:"start_date"`
	EndDate   *types.Date `json:"end_date,omitempty"`
	Notes     *string     `json:"notes,omitempty"`
}

// MedicationResponse is the API representation of a medication
type MedicationResponse struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Dosage    string      `json:"dosage"`
	Times     []string    `json:"times"`
	StartDate types.Date  `json:"start_date"`
	EndDate   *types.Date `json:"end_date,omitempty"`
	Notes     *string     `json:"notes,omitempty"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

func (r *MedicationRequest) toModel() *model.Medication {
	return &model.Medication{
		Name:      r.Name,
		Dosage:    r.Dosage,
		Times:     r.Times,
		StartDate: dateToTime(r.StartDate),
		EndDate:   datePtrToTime(r.EndDate),
		Notes:     r.Notes,
	}
}

func medicationResponse(m *model.Medication) MedicationResponse {
	return MedicationResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Dosage:    m.Dosage,
		Times:     m.Times,
		StartDate: timeToDate(m.StartDate),
		EndDate:   timePtrToDate(m.EndDate),
		Notes:     m.Notes,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

// MedicationHandler implements medication API endpoints
type MedicationHandler struct {
	service MedicationManager
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(service MedicationManager, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		service: service,
		logger:  logger,
	}
}

// CreateMedication adds a medication for the user in the path
func (h *MedicationHandler) CreateMedication(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	var req MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		validationError(c, "Invalid request body", err)
		return
	}

	medication := req.toModel()
	if err := h.service.AddMedication(c.Request.Context(), userID, medication, requestInfo(c)); err != nil {
		serviceError(c, h.logger, "Failed to add medication", err)
		return
	}

	h.logger.Info("medication created",
		zap.String("medication_id", medication.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, medicationResponse(medication))
}

// ListMedications returns every medication of the user in the path
func (h *MedicationHandler) ListMedications(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	medications, err := h.service.ListMedications(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, h.logger, "Failed to retrieve medications", err)
		return
	}

	response := make([]MedicationResponse, 0, len(medications))
	for i := range medications {
		response = append(response, medicationResponse(&medications[i]))
	}

	c.JSON(http.StatusOK, gin.H{"medications": response})
}

// UpdateMedication replaces a medication definition
func (h *MedicationHandler) UpdateMedication(c *gin.Context) {
	medicationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		validationError(c, "Invalid request body", err)
		return
	}

	medication := req.toModel()
	if err := h.service.UpdateMedication(c.Request.Context(), medicationID, medication, requestInfo(c)); err != nil {
		serviceError(c, h.logger, "Failed to update medication", err)
		return
	}

	h.logger.Info("medication updated", zap.String("medication_id", medicationID))

	c.JSON(http.StatusOK, medicationResponse(medication))
}

// DeleteMedication deactivates a medication. Its dose history is kept.
func (h *MedicationHandler) DeleteMedication(c *gin.Context) {
	medicationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeactivateMedication(c.Request.Context(), medicationID, requestInfo(c)); err != nil {
		serviceError(c, h.logger, "Failed to delete medication", err)
		return
	}

	h.logger.Info("medication deactivated", zap.String("medication_id", medicationID))

	c.Status(http.StatusNoContent)
}
