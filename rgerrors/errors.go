// Package rgerrors defines the closed error vocabulary for the signaling
// resilience layer. Every failure surfaced by roomguard components is an
// *Error carrying a stable machine-readable code, a default transport
// status, and optional retry and recovery hints, so the boundary layer
// never needs bespoke error-to-status logic per call site.
package rgerrors

import (
	"errors"
	"fmt"
)

// Error is a structured, immutable error value. Build one through the
// constructors; never mutate it after construction.
type Error struct {
	Code               Code           `json:"error_code"`
	Message            string         `json:"message"`
	Details            map[string]any `json:"details,omitempty"`
	RetryAfter         int            `json:"retry_after,omitempty"` // seconds
	RecoverySuggestion string         `json:"recovery_suggestion,omitempty"`
	Status             int            `json:"status_code"`
	Cause              error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code, so errors.Is(err, rgerrors.New(CodeRoomFull, ""))
// holds for any room-full error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Response is the transport-agnostic serialized form handed to the
// orchestration layer.
type Response struct {
	Error struct {
		Code               Code           `json:"code"`
		Message            string         `json:"message"`
		Details            map[string]any `json:"details,omitempty"`
		RetryAfter         int            `json:"retry_after,omitempty"`
		RecoverySuggestion string         `json:"recovery_suggestion,omitempty"`
	} `json:"error"`
	StatusCode int `json:"status_code"`
}

// ToResponse returns the structured response value for this error.
func (e *Error) ToResponse() Response {
	var resp Response
	resp.Error.Code = e.Code
	resp.Error.Message = e.Message
	resp.Error.Details = e.Details
	resp.Error.RetryAfter = e.RetryAfter
	resp.Error.RecoverySuggestion = e.RecoverySuggestion
	resp.StatusCode = e.Status
	return resp
}

// ToMap returns a flat serialized form.
func (e *Error) ToMap() map[string]any {
	m := map[string]any{
		"error_code":  string(e.Code),
		"message":     e.Message,
		"status_code": e.Status,
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	if e.RetryAfter > 0 {
		m["retry_after"] = e.RetryAfter
	}
	if e.RecoverySuggestion != "" {
		m["recovery_suggestion"] = e.RecoverySuggestion
	}
	return m
}

// New creates an error with the default status for its code.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  StatusCode(code),
	}
}

// Wrap creates an error that preserves its cause for errors.Is/As chains.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  StatusCode(code),
		Cause:   cause,
	}
}

// WithDetails returns a copy of e with the given details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return &clone
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetStatusCode returns the transport status for any error. Non-roomguard
// errors map to 500.
func GetStatusCode(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return StatusCode(CodeInternalError)
}

// RateLimitExceeded reports an exhausted quota with a computed retry hint.
func RateLimitExceeded(limitType string, retryAfter, current, maxAllowed int) *Error {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &Error{
		Code:    CodeRateLimitExceeded,
		Message: fmt.Sprintf("rate limit exceeded for %s", limitType),
		Details: map[string]any{
			"limit_type":  limitType,
			"current":     current,
			"max_allowed": maxAllowed,
		},
		RetryAfter:         retryAfter,
		RecoverySuggestion: fmt.Sprintf("Wait %d seconds before retrying.", retryAfter),
		Status:             StatusCode(CodeRateLimitExceeded),
	}
}

// RoomFull reports a room at participant capacity.
func RoomFull(roomID string, current, maxParticipants int) *Error {
	return &Error{
		Code:    CodeRoomFull,
		Message: fmt.Sprintf("room %s is full", roomID),
		Details: map[string]any{
			"room_id":          roomID,
			"participants":     current,
			"max_participants": maxParticipants,
		},
		RecoverySuggestion: "Try again once a participant leaves, or join a different room.",
		Status:             StatusCode(CodeRoomFull),
	}
}

// PermissionDenied reports a caller lacking the permission an action needs.
func PermissionDenied(action, requiredPermission string) *Error {
	return &Error{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("permission denied for %s", action),
		Details: map[string]any{
			"action":              action,
			"required_permission": requiredPermission,
		},
		RecoverySuggestion: "Ask the room owner to grant the required permission.",
		Status:             StatusCode(CodePermissionDenied),
	}
}

// NotFound reports a missing resource by identifier.
func NotFound(resource, id string) *Error {
	code := CodeRoomNotFound
	if resource != "room" {
		code = CodeParticipantNotFound
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
		RecoverySuggestion: "Check the identifier and try again.",
		Status:             StatusCode(code),
	}
}

// Validation reports a rejected field value.
func Validation(field string, value any, message string) *Error {
	return &Error{
		Code:    CodeValidationFailed,
		Message: message,
		Details: map[string]any{
			"field": field,
			"value": value,
		},
		RecoverySuggestion: "Correct the highlighted field and resubmit.",
		Status:             StatusCode(CodeValidationFailed),
	}
}

// ServiceUnavailable reports a dependency outage with a default retry hint.
func ServiceUnavailable(service string) *Error {
	return &Error{
		Code:               CodeServiceUnavailable,
		Message:            fmt.Sprintf("%s is temporarily unavailable", service),
		Details:            map[string]any{"service": service},
		RetryAfter:         30,
		RecoverySuggestion: "Retry after 30 seconds.",
		Status:             StatusCode(CodeServiceUnavailable),
	}
}

// MaliciousFile reports a file rejected by content screening.
func MaliciousFile(filename, reason string) *Error {
	return &Error{
		Code:    CodeMaliciousFileDetected,
		Message: fmt.Sprintf("file %s was rejected", filename),
		Details: map[string]any{
			"filename": filename,
			"reason":   reason,
		},
		RecoverySuggestion: "Remove active content from the file or share it another way.",
		Status:             StatusCode(CodeMaliciousFileDetected),
	}
}
