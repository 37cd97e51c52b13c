// Package errors provides structured error handling for reconnoiter operations.
// It defines error codes and error types for the recon engine and the
// surfaces built on top of it, plus helpers for classifying errors.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"

	// Target errors. Surfaced to callers.
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"
	CodeResolution    ErrorCode = "RESOLUTION_FAILED"

	// Probe errors. Absorbed by the stage that produced them.
	CodeProbeTimeout ErrorCode = "PROBE_TIMEOUT"
	CodeConnect      ErrorCode = "CONNECT_FAILED"
	CodeBanner       ErrorCode = "BANNER_FAILED"
	CodeFingerprint  ErrorCode = "FINGERPRINT_FAILED"
	CodeSweepProbe   ErrorCode = "SWEEP_PROBE_FAILED"
	CodeDNSLookup    ErrorCode = "DNS_LOOKUP_FAILED"

	// Service errors.
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
)

// ScanError represents an error that ends a recon operation for a target.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithOperation records which operation failed.
func (e *ScanError) WithOperation(op string) *ScanError {
	e.Operation = op
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ProbeError is a failure of a single probe unit: one port connect, one banner
// read, one HTTP fingerprint, one DNS lookup or one liveness probe. Stages log
// and count these, then treat the unit as absent.
type ProbeError struct {
	Code    ErrorCode
	Stage   string
	Address string
	Cause   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s probe %s: %v", e.Code, e.Stage, e.Address, e.Cause)
	}
	return fmt.Sprintf("[%s] %s probe %s", e.Code, e.Stage, e.Address)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// NewProbeError creates a probe error for the given stage and address.
func NewProbeError(code ErrorCode, stage, address string, cause error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Stage:   stage,
		Address: address,
		Cause:   cause,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error, or any error it wraps, has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from the first coded error in the chain.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var probeErr *ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsFatal reports whether an error ends the caller's operation. Probe errors
// never are.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodePermission, CodeConfiguration, CodeValidation, CodeResolution, CodeTargetInvalid:
		return true
	default:
		return false
	}
}

// IsProbeFailure reports whether err is an absorbable per-unit probe failure.
func IsProbeFailure(err error) bool {
	var probeErr *ProbeError
	return stderrors.As(err, &probeErr)
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid recon targets.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "Invalid target specification", target)
}

// ErrResolution creates an error for a target whose hostname did not resolve.
func ErrResolution(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeResolution, "Could not resolve target", target, err)
}

// ErrCanceled creates an error for an operation whose context ended.
func ErrCanceled(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeCanceled, "Operation canceled", target, err)
}

// ErrNotFound creates an error for a named resource that does not exist.
func ErrNotFound(kind, name string) *ScanError {
	return NewScanError(CodeNotFound, fmt.Sprintf("%s not found", kind)).WithContext("name", name)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
