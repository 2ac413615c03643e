package domain

import (
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrValidation    = "VALIDATION_ERROR"
	ErrConfiguration = "CONFIG_ERROR"
	ErrDataSource    = "DATA_SOURCE_ERROR"
	ErrDatabaseError = "DATABASE_ERROR"
	ErrSimulation    = "SIMULATION_ERROR"
	ErrNotFound      = "NOT_FOUND"
	ErrRateLimit     = "RATE_LIMIT_EXCEEDED"
	ErrInternal      = "INTERNAL_SERVER_ERROR"
)

// EngineError represents a standardized error response
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents an input validation failure. Out-of-domain
// rates and malformed PSA bounds are reported, never clamped.
type ValidationError struct {
	Country  string      `json:"country,omitempty"`
	Quintile Quintile    `json:"quintile,omitempty"`
	Field    string      `json:"field"`
	Message  string      `json:"message"`
	Value    interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Country != "" {
		return fmt.Sprintf("validation error for field '%s' (country=%s, quintile=%d): %s",
			e.Field, e.Country, e.Quintile, e.Message)
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// WithContext returns a copy of the error annotated with country and quintile
func (e *ValidationError) WithContext(country string, quintile Quintile) *ValidationError {
	c := *e
	c.Country = country
	c.Quintile = quintile
	return &c
}

// ConfigError represents an invalid run configuration, surfaced before
// any simulation work begins because it invalidates every draw.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for '%s': %s", e.Field, e.Message)
}

// NewConfigError creates a new ConfigError
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}
