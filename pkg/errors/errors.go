// Package errors defines custom error types and error handling utilities for the entitle client.
// This package provides structured error kinds that separate configuration, protocol,
// integrity, transport and server-reported failures.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/turtacn/entitle/pkg/constants"
)

// Kind classifies an error for propagation policy.
type Kind string

const (
	// KindConfiguration is missing or invalid configuration; fatal, never retried.
	KindConfiguration Kind = "configuration_error"
	// KindProtocol is a malformed or unexpected protocol exchange.
	KindProtocol Kind = "protocol_error"
	// KindIntegrity is a signature verification failure; never downgraded to unverified.
	KindIntegrity Kind = "integrity_error"
	// KindTransport is a network failure or a non-2xx response.
	KindTransport Kind = "transport_error"
	// KindServerReported is an explicit negative verdict from the entitlement service.
	KindServerReported Kind = "server_reported_failure"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// EntitleError represents a structured error with additional metadata
type EntitleError interface {
	error

	// Kind returns the error classification
	Kind() Kind

	// Code returns the specific failure code
	Code() constants.ErrorCode

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) EntitleError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) EntitleError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	kind        Kind
	code        constants.ErrorCode
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Kind() Kind {
	return e.kind
}

func (e *baseError) Code() constants.ErrorCode {
	return e.code
}

func (e *baseError) Description() string {
	return e.description
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) WithCause(cause error) EntitleError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) EntitleError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// Is matches another EntitleError with the same kind and code, so sentinel
// values such as ErrFlowInProgress work with errors.Is.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.code == t.code
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new EntitleError with the specified parameters
func NewError(kind Kind, code constants.ErrorCode, description string, message string) EntitleError {
	return &baseError{
		kind:        kind,
		code:        code,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ErrFlowInProgress is returned when a flow instance is started while a sign-on is already running.
var ErrFlowInProgress = NewError(
	KindProtocol,
	constants.ErrCodeFlowInProgress,
	"An interactive sign-on is already in progress on this flow.",
	"authorization flow already in progress",
)

// ErrNotFound is returned by stores when a key holds no value.
var ErrNotFound = NewError(KindProtocol, constants.ErrCodeNotFound, "No value is stored under the key.", "not found")

// ================================================================================
// Configuration Errors
// ================================================================================

// ErrMissingConfiguration creates an error for a mandatory setting that is absent
func ErrMissingConfiguration(field string) EntitleError {
	return NewError(
		KindConfiguration,
		constants.ErrCodeMissingConfiguration,
		"A mandatory configuration value is missing.",
		fmt.Sprintf("missing required configuration: %s", field),
	).WithMetadata("field", field)
}

// ErrInvalidConfiguration creates an error for a configuration value that cannot be used
func ErrInvalidConfiguration(field string, reason string) EntitleError {
	return NewError(
		KindConfiguration,
		constants.ErrCodeInvalidConfiguration,
		"A configuration value is invalid.",
		fmt.Sprintf("invalid configuration %s: %s", field, reason),
	).WithMetadata("field", field).
		WithMetadata("reason", reason)
}

// ================================================================================
// Protocol Errors
// ================================================================================

// ErrStateMismatch creates an error for a redirect whose state differs from the request
func ErrStateMismatch(expected string, actual string) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeStateMismatch,
		"The state parameter of the redirect does not match the authorization request.",
		fmt.Sprintf("state mismatch: expected %q, got %q", expected, actual),
	).WithMetadata("expected", expected).
		WithMetadata("actual", actual)
}

// ErrNonceMismatch creates an error for an identity token bound to another request
func ErrNonceMismatch(expected string, actual string) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeNonceMismatch,
		"The nonce claim of the identity token does not match the authorization request.",
		fmt.Sprintf("nonce mismatch: expected %q, got %q", expected, actual),
	).WithMetadata("expected", expected).
		WithMetadata("actual", actual)
}

// ErrProviderReported creates an error carrying an OAuth error response from the identity provider
func ErrProviderReported(code string, description string, uri string) EntitleError {
	msg := fmt.Sprintf("authorization server returned error %q", code)
	if description != "" {
		msg = fmt.Sprintf("%s: %s", msg, description)
	}
	err := NewError(KindProtocol, constants.ErrCodeProviderError, description, msg).
		WithMetadata("error", code)
	if description != "" {
		err.WithMetadata("error_description", description)
	}
	if uri != "" {
		err.WithMetadata("error_uri", uri)
	}
	return err
}

// ErrMalformedRedirect creates an error for a redirect URI that cannot be interpreted
func ErrMalformedRedirect(uri string, reason string) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeMalformedRedirect,
		"The redirect URI reported by the interactive surface is malformed.",
		fmt.Sprintf("malformed redirect: %s", reason),
	).WithMetadata("uri", uri).
		WithMetadata("reason", reason)
}

// ErrMissingGrantArtifact creates an error for a redirect lacking its code or token
func ErrMissingGrantArtifact(param string) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeMissingGrantArtifact,
		"The redirect does not carry the expected grant artifact.",
		fmt.Sprintf("redirect is missing %s", param),
	).WithMetadata("parameter", param)
}

// ErrMalformedDecision creates an error for a decision body that cannot be decoded
func ErrMalformedDecision(item string, reason string, body []byte) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeMalformedDecision,
		"The authorization decision body cannot be decoded.",
		fmt.Sprintf("malformed decision for %q: %s", item, reason),
	).WithMetadata("item", item).
		WithMetadata("reason", reason).
		WithMetadata("body", string(body))
}

// ErrBatchMisaligned creates an error for a batched response not covering the request
func ErrBatchMisaligned(requested int, received int, body []byte) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeBatchMisaligned,
		"The batched response does not align with the requested items.",
		fmt.Sprintf("response covers %d of %d requested items", received, requested),
	).WithMetadata("requested", requested).
		WithMetadata("received", received).
		WithMetadata("body", string(body))
}

// ErrLookupTypeMismatch creates an error for a decision field read as the wrong JSON type
func ErrLookupTypeMismatch(field string, expected string, actual string) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeLookupTypeMismatch,
		"A decision field does not hold the requested type.",
		fmt.Sprintf("field %q is %s, not %s", field, actual, expected),
	).WithMetadata("field", field).
		WithMetadata("expected", expected).
		WithMetadata("actual", actual)
}

// ErrCorruptAuthorization creates an error for a stored authorization that cannot be restored
func ErrCorruptAuthorization(reason string) EntitleError {
	return NewError(
		KindProtocol,
		constants.ErrCodeCorruptAuthorization,
		"The stored authorization cannot be restored.",
		fmt.Sprintf("corrupt stored authorization: %s", reason),
	).WithMetadata("reason", reason)
}

// ================================================================================
// Integrity Errors
// ================================================================================

// ErrSignatureInvalid creates a signature verification error
func ErrSignatureInvalid(reason string) EntitleError {
	return NewError(
		KindIntegrity,
		constants.ErrCodeSignatureInvalid,
		"The signed token failed verification.",
		fmt.Sprintf("signature verification failed: %s", reason),
	).WithMetadata("reason", reason)
}

// ================================================================================
// Transport Errors
// ================================================================================

// ErrUnexpectedStatus creates an error for a non-2xx response
func ErrUnexpectedStatus(uri string, status int, body []byte) EntitleError {
	return NewError(
		KindTransport,
		constants.ErrCodeUnexpectedStatus,
		"The remote endpoint answered with a non-success status.",
		fmt.Sprintf("unexpected status %d from %s", status, uri),
	).WithMetadata("uri", uri).
		WithMetadata("status", status).
		WithMetadata("body", string(body))
}

// ErrTransportFailure creates an error for a request that produced no response
func ErrTransportFailure(uri string, cause error) EntitleError {
	return NewError(
		KindTransport,
		constants.ErrCodeTransportFailure,
		"The request could not be completed.",
		fmt.Sprintf("request to %s failed", uri),
	).WithMetadata("uri", uri).
		WithCause(cause)
}

// ================================================================================
// Server Reported Failures
// ================================================================================

// ErrServerDenied creates an error for an explicit negative verdict
func ErrServerDenied(subject string, reason string, body []byte) EntitleError {
	msg := fmt.Sprintf("entitlement service denied %q", subject)
	if reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, reason)
	}
	err := NewError(KindServerReported, constants.ErrCodeServerDenied, "The entitlement service reported failure.", msg).
		WithMetadata("subject", subject).
		WithMetadata("body", string(body))
	if reason != "" {
		err.WithMetadata("reason", reason)
	}
	return err
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// AsEntitleError finds the first EntitleError in err's chain
func AsEntitleError(err error) (EntitleError, bool) {
	var e EntitleError
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or the empty kind for foreign errors
func KindOf(err error) Kind {
	if e, ok := AsEntitleError(err); ok {
		return e.Kind()
	}
	return ""
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsProtocolError checks if an error is a protocol error
func IsProtocolError(err error) bool {
	return KindOf(err) == KindProtocol
}

// IsIntegrityError checks if an error is a signature verification error
func IsIntegrityError(err error) bool {
	return KindOf(err) == KindIntegrity
}

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	return KindOf(err) == KindTransport
}

// IsServerReportedFailure checks if an error is an explicit server verdict
func IsServerReportedFailure(err error) bool {
	return KindOf(err) == KindServerReported
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	if e, ok := AsEntitleError(err); ok {
		return e.Code() == constants.ErrCodeNotFound
	}
	return false
}

// HasCode checks if an error carries the given code
func HasCode(err error, code constants.ErrorCode) bool {
	if e, ok := AsEntitleError(err); ok {
		return e.Code() == code
	}
	return false
}
