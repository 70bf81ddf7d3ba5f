// Package errors provides structured error handling for portscout operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors with target and operation context attached.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Target and port specification errors.
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"
	CodeResolution    ErrorCode = "RESOLUTION"
	CodeRangeTooLarge ErrorCode = "RANGE_TOO_LARGE"
	CodePortSpec      ErrorCode = "PORT_SPEC"
	CodeNoTargets     ErrorCode = "NO_TARGETS"

	// Probe and scheduling errors.
	CodeProbeFailed   ErrorCode = "PROBE_FAILED"
	CodeScanFailed    ErrorCode = "SCAN_FAILED"
	CodeWorkerBounds  ErrorCode = "WORKER_BOUNDS"
	CodeResourceLimit ErrorCode = "RESOURCE_LIMIT"

	// History store errors.
	CodeStoreOpen    ErrorCode = "STORE_OPEN"
	CodeStoreQuery   ErrorCode = "STORE_QUERY"
	CodeStoreMigrate ErrorCode = "STORE_MIGRATE"
)

// ScanError represents an error that occurred while preparing or running a scan.
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

// StoreError represents scan-history store errors.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Query     string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// WithQuery adds the SQL statement that caused the error.
func (e *StoreError) WithQuery(query string) *StoreError {
	e.Query = query
	return e
}

// NewStoreError creates a new store error.
func NewStoreError(code ErrorCode, message string) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
	}
}

// WrapStoreError wraps an existing error as a store error.
func WrapStoreError(code ErrorCode, message string, err error) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
		Cause:   err,
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

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case *ScanError:
		return e.Code == code
	case *StoreError:
		return e.Code == code
	case *ConfigError:
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *StoreError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// GetTarget extracts the target token from a ScanError, if any.
func GetTarget(err error) string {
	if e, ok := err.(*ScanError); ok {
		return e.Target
	}
	return ""
}

// IsFatal determines if an error should abort the whole invocation rather
// than a single target or task.
func IsFatal(err error) bool {
	code := GetCode(err)
	switch code {
	case CodeValidation, CodeConfiguration, CodePortSpec, CodeRangeTooLarge,
		CodeNoTargets, CodeWorkerBounds, CodeStoreMigrate:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for a target token that parses as
// neither an address, a hostname, nor a CIDR block.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "invalid target specification", target)
}

// ErrResolution creates an error for a hostname that failed to resolve.
// It is fatal only for the named target, not for sibling targets.
func ErrResolution(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeResolution, "cannot resolve hostname", target, err)
}

// ErrRangeTooLarge creates an error for a CIDR block that would expand to
// more than 65536 addresses.
func ErrRangeTooLarge(block string) *ScanError {
	return NewScanErrorWithTarget(CodeRangeTooLarge, "network range too large, use /16 or smaller", block)
}

// ErrPortSpec creates an error for a malformed port specification token.
func ErrPortSpec(token, reason string) *ScanError {
	e := NewScanError(CodePortSpec, fmt.Sprintf("invalid port specification %q: %s", token, reason))
	return e.WithContext("token", token)
}

// ErrNoTargets creates the terminal error for a scan in which no target
// resolved to a scannable address.
func ErrNoTargets() *ScanError {
	return NewScanError(CodeNoTargets, "no valid targets to scan")
}

// ErrWorkerBounds creates an error for a worker count outside the
// supported range.
func ErrWorkerBounds(workers, minWorkers, maxWorkers int) *ScanError {
	e := NewScanError(CodeWorkerBounds,
		fmt.Sprintf("worker count %d outside supported range %d-%d", workers, minWorkers, maxWorkers))
	return e.WithContext("workers", workers)
}

// ErrStoreOpen creates an error for history store open failures.
func ErrStoreOpen(path string, err error) *StoreError {
	return WrapStoreError(CodeStoreOpen, fmt.Sprintf("failed to open history store at %s", path), err)
}

// ErrStoreQuery creates an error for history store query failures.
func ErrStoreQuery(query string, err error) *StoreError {
	return WrapStoreError(CodeStoreQuery, "history store query failed", err).WithQuery(query)
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "invalid configuration value", field, value)
}
