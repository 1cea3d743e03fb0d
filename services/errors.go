package services

import (
	"errors"
	"fmt"
	"net/http"

	"weHabitAPI/internal/engine"
	"weHabitAPI/internal/store"
)

// ServiceError represents a structured service error
type ServiceError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"-"`
	Cause      error  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

func NewBusinessError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       "BUSINESS_ERROR",
		Message:    message,
		Code:       code,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewNotFoundError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       "NOT_FOUND",
		Message:    message,
		Code:       code,
		StatusCode: http.StatusNotFound,
	}
}

func NewForbiddenError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       "FORBIDDEN",
		Message:    message,
		Code:       code,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       "CONFLICT",
		Message:    message,
		Code:       code,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrHabitNotFound     = NewNotFoundError("habit not found", "HABIT_NOT_FOUND")
	ErrChallengeNotFound = NewNotFoundError("challenge not found", "CHALLENGE_NOT_FOUND")
	ErrProfileNotFound   = NewNotFoundError("profile not found", "PROFILE_NOT_FOUND")

	ErrNegativeHabit = NewBusinessError("negative habits cannot be checked in; reset them instead", "NEGATIVE_HABIT")
	ErrPositiveHabit = NewBusinessError("only negative habits can be reset", "POSITIVE_HABIT")
	ErrHabitInactive = NewBusinessError("habit is archived", "HABIT_INACTIVE")

	ErrNotParticipant    = NewForbiddenError("user is not a participant of this challenge", "NOT_PARTICIPANT")
	ErrNotHost           = NewForbiddenError("only the host can do this", "NOT_HOST")
	ErrParticipantGaveUp = NewConflictError("participant has given up this challenge", "PARTICIPANT_GAVE_UP")
	ErrChallengeInactive = NewConflictError("challenge is not active", "CHALLENGE_INACTIVE")
	ErrChallengeWon      = NewConflictError("challenge already won", "CHALLENGE_WON")

	ErrNoShields     = NewConflictError("no streak shields left", "NO_SHIELDS")
	ErrProfileExists = NewConflictError("profile already exists", "PROFILE_EXISTS")

	ErrTransactionConflict = NewConflictError("too much contention, try again", "TX_CONFLICT")
)

// notFound maps store.ErrNotFound onto the domain error, leaving others intact.
func notFound(err error, domain *ServiceError) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain
	}
	return err
}

// mapScoringErr translates scoring engine errors into service errors.
func mapScoringErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrNotParticipant):
		return ErrNotParticipant
	case errors.Is(err, engine.ErrParticipantGaveUp):
		return ErrParticipantGaveUp
	case errors.Is(err, engine.ErrChallengeInactive):
		return ErrChallengeInactive
	case errors.Is(err, engine.ErrChallengeWon):
		return ErrChallengeWon
	}
	return err
}
