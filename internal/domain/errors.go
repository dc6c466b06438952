package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyName        = errors.New("medicine name cannot be empty")
	ErrEmptyDosage      = errors.New("medicine dosage cannot be empty")
	ErrMissingDate      = errors.New("start and end dates are required")
	ErrInvalidDateRange = errors.New("end date is before start date")
	ErrCourseTooLong    = errors.New("course is too long")
	ErrInvalidTime      = errors.New("invalid time of day (HH:MM)")
	ErrInvalidEventID   = errors.New("invalid event id")
)
