package handler

import "github.com/gin-gonic/gin"

// Handlers groups every endpoint handler served by the API
type Handlers struct {
	Adherence  *AdherenceHandler
	Doses      *DoseHandler
	Engine     *EngineHandler
	Reports    *ReportHandler
	Medication *MedicationHandler
	Contacts   *ContactHandler
	Health     *HealthHandler
}

// RegisterRoutes mounts the API on the router
func RegisterRoutes(r gin.IRouter, h Handlers) {
	r.GET("/health", h.Health.GetHealth)

	v1 := r.Group("/api/v1")

	users := v1.Group("/users/:userId")
	users.GET("/adherence", h.Adherence.GetAdherence)
	users.GET("/adherence/streak", h.Adherence.GetStreak)
	users.GET("/doses/today", h.Doses.GetToday)
	users.GET("/doses/upcoming", h.Doses.GetUpcoming)
	users.POST("/emergency", h.Engine.RaiseEmergency)
	users.POST("/reports", h.Reports.GenerateReport)
	users.GET("/medications", h.Medication.ListMedications)
	users.POST("/medications", h.Medication.CreateMedication)
	users.GET("/caregivers", h.Contacts.ListCaregivers)
	users.POST("/caregivers", h.Contacts.AddCaregiver)
	users.GET("/preferences", h.Contacts.GetPreferences)
	users.PUT("/preferences", h.Contacts.UpdatePreferences)
	users.GET("/notifications", h.Contacts.ListNotifications)

	v1.POST("/doses/:doseId/taken", h.Doses.MarkTaken)
	v1.PUT("/medications/:id", h.Medication.UpdateMedication)
	v1.DELETE("/medications/:id", h.Medication.DeleteMedication)
	v1.POST("/engine/trigger", h.Engine.Trigger)
	v1.GET("/reports/:reportId", h.Reports.DownloadReport)
}
