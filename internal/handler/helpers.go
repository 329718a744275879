package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// uuidToString converts types.UUID to string
func uuidToString(u types.UUID) string {
	return uuid.UUID(u).String()
}

// stringToUUID converts string to types.UUID pointer
func stringToUUID(s string) *types.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	apiUUID := types.UUID(u)
	return &apiUUID
}

// uuidParam reads a path parameter that must hold a UUID and writes a
// validation error when it does not
func uuidParam(c *gin.Context, name string) (string, bool) {
	id := stringToUUID(c.Param(name))
	if id == nil {
		validationError(c, "Invalid "+name, nil)
		return "", false
	}
	return uuidToString(*id), true
}

// dateToTime converts types.Date to time.Time
func dateToTime(d types.Date) time.Time {
	return d.Time
}

// datePtrToTime converts *types.Date to *time.Time
func datePtrToTime(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := dateToTime(*d)
	return &t
}

// timeToDate converts time.Time to types.Date
func timeToDate(t time.Time) types.Date {
	return types.Date{Time: t}
}

// timePtrToDate converts *time.Time to *types.Date
func timePtrToDate(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return &types.Date{Time: *t}
}

// derefString safely dereferences a string pointer, returning empty string if nil
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
