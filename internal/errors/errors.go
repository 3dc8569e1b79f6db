package errors

import (
	"errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}

// ForbiddenError means the session role does not allow the command. It is
// raised locally, before any request leaves the process.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// RejectedError carries a business refusal from the remote order service
// together with the reason it supplied.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by remote (%d): %s", e.StatusCode, e.Reason)
}

func NewRejectedError(statusCode int, reason string) *RejectedError {
	return &RejectedError{
		StatusCode: statusCode,
		Reason:     reason,
	}
}

func IsRejectedError(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// NetworkError covers an unreachable remote and 5xx responses.
type NetworkError struct {
	Message    string
	StatusCode int
	Cause      error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

func NewNetworkError(message string, statusCode int, cause error) *NetworkError {
	return &NetworkError{
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

func IsNetworkError(err error) (*NetworkError, bool) {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// ProtocolError marks a malformed stream frame or event. It is logged and
// dropped, never returned to a caller of the engine.
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{
		Message: message,
		Cause:   cause,
	}
}

func IsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
