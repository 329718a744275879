package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReportHandler implements report API endpoints
type ReportHandler struct {
	service ReportProvider
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service ReportProvider, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// GenerateReport builds the weekly adherence report for a user on demand
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	report, err := h.service.GenerateReport(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, h.logger, "Failed to generate report", err)
		return
	}

	h.logger.Info("report generated",
		zap.String("report_id", report.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, report)
}

// DownloadReport streams a report PDF
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	reportID, ok := uuidParam(c, "reportId")
	if !ok {
		return
	}

	_, pdfBytes, err := h.service.GetReport(c.Request.Context(), reportID)
	if err != nil {
		serviceError(c, h.logger, "Failed to get report", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=adherence_report_%s.pdf", reportID))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)

	h.logger.Info("report downloaded",
		zap.String("report_id", reportID),
		zap.Int("size_bytes", len(pdfBytes)),
	)
}
