package domain

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrCodeValidation           ErrorCode = "VALIDATION"
	ErrCodeUpstream             ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeStaleTransition      ErrorCode = "STALE_TRANSITION"
	ErrCodeTeamExists           ErrorCode = "TEAM_EXISTS"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInternal             ErrorCode = "INTERNAL"
)

// AppError keeps domain level errors consistent.
type AppError struct {
	Code    ErrorCode
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewConfigurationMissingError(userID string) *AppError {
	return &AppError{Code: ErrCodeConfigurationMissing, Message: "user " + userID + " is not configured", Status: http.StatusOK}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Status: http.StatusBadRequest}
}

func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Code: ErrCodeUpstream, Message: message, Status: http.StatusBadGateway, Err: err}
}

func NewStaleTransitionError(issueKey, status string) *AppError {
	return &AppError{Code: ErrCodeStaleTransition, Message: "status " + status + " is not reachable for " + issueKey, Status: http.StatusConflict}
}

func NewTeamExistsError(err error) *AppError {
	return &AppError{Code: ErrCodeTeamExists, Message: "team already exists", Status: http.StatusConflict, Err: err}
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message, Status: http.StatusNotFound, Err: err}
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}
