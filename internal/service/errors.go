package service

import "errors"

var (
	// ErrDoseNotFound is returned when a dose instance does not exist
	ErrDoseNotFound = errors.New("dose instance not found")
	// ErrDoseArchived is returned when a mutation targets an archived dose
	ErrDoseArchived = errors.New("dose instance is archived")
	// ErrUnknownCategory is returned for notifications with an unsupported category
	ErrUnknownCategory = errors.New("unknown notification category")
	// ErrMedicationNotFound is returned when a medication does not exist
	ErrMedicationNotFound = errors.New("medication not found")
	// ErrReportNotFound is returned when a report does not exist
	ErrReportNotFound = errors.New("report not found")
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidWindow is returned for malformed adherence windows
	ErrInvalidWindow = errors.New("invalid adherence window")
	// ErrValidation is returned for rejected caller input
	ErrValidation = errors.New("validation failed")
	// ErrInvalidMode is returned for unknown trigger modes
	ErrInvalidMode = errors.New("invalid trigger mode")
)
