package core

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes adapter errors.
type ErrorCode string

const (
	ErrConfig     ErrorCode = "config_invalid"
	ErrRemote     ErrorCode = "remote_error"
	ErrEmptyInput ErrorCode = "empty_input"
	ErrTimeout    ErrorCode = "timeout"
	ErrCanceled   ErrorCode = "canceled"
	ErrInternal   ErrorCode = "internal"
)

// AdapterError provides rich context for adapter consumers.
type AdapterError struct {
	Code    ErrorCode
	Message string
	Status  int
	Details map[string]any
	wrapped error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error { return e.wrapped }

// WrapError creates a new AdapterError with the provided code.
func WrapError(err error, code ErrorCode) *AdapterError {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae
	}
	return &AdapterError{Code: code, Message: err.Error(), wrapped: err}
}

// NewError builds an AdapterError explicitly.
func NewError(code ErrorCode, message string, opts ...ErrorOption) *AdapterError {
	e := &AdapterError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ErrorOption mutates an AdapterError during construction.
type ErrorOption func(*AdapterError)

// WithStatus sets the HTTP status code reported by the remote service.
func WithStatus(status int) ErrorOption {
	return func(e *AdapterError) { e.Status = status }
}

// WithDetails attaches structured context.
func WithDetails(details map[string]any) ErrorOption {
	return func(e *AdapterError) { e.Details = details }
}

// WithWrapped attaches an underlying error.
func WithWrapped(err error) ErrorOption {
	return func(e *AdapterError) { e.wrapped = err }
}

func classify(code ErrorCode) func(error) bool {
	return func(err error) bool {
		var ae *AdapterError
		if err == nil {
			return false
		}
		if errors.As(err, &ae) {
			return ae.Code == code
		}
		return false
	}
}

// Helper predicates for common error handling patterns.
var (
	IsConfig     = classify(ErrConfig)
	IsRemote     = classify(ErrRemote)
	IsEmptyInput = classify(ErrEmptyInput)
	IsTimeout    = classify(ErrTimeout)
	IsCanceled   = classify(ErrCanceled)
)

// StatusOf extracts the remote HTTP status, or 0 when absent.
func StatusOf(err error) int {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
