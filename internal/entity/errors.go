package entity

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrAuthRequired = errors.New("authentication required")
	ErrDispatch     = errors.New("dispatch failed")
	ErrGeneration   = errors.New("generation failed")
	ErrPersistence  = errors.New("persistence failed")
	ErrTimeout      = errors.New("processing timeout")
	ErrTransport    = errors.New("transport failure")
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already dispatched")
)

// TimeoutMessage is what the submitter sees when no completed record was observed in time.
const TimeoutMessage = "Processing timeout - please try again"

// TimeoutError is returned by a watch that hit its deadline or exhausted its poll budget.
type TimeoutError struct {
	JobID string
	Cause string // "deadline" or "poll budget exhausted"
}

func (e *TimeoutError) Error() string { return TimeoutMessage }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
