// Package constants defines system-wide constants for the entitle client.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// OAuth Response Type Constants
// ================================================================================

// ResponseType is the OAuth 2.0 response_type requested from the authorization endpoint
type ResponseType string

const (
	// ResponseTypeCode requests an authorization code delivered in the redirect query
	ResponseTypeCode ResponseType = "code"

	// ResponseTypeToken requests an access token delivered in the redirect fragment
	ResponseTypeToken ResponseType = "token"
)

// GrantKind selects the grant variant driving the authorization flow
type GrantKind string

const (
	// GrantAuthorizationCode is the Authorization Code Grant
	GrantAuthorizationCode GrantKind = "authorization_code"

	// GrantImplicit is the implicit (fragment) grant
	GrantImplicit GrantKind = "implicit"
)

// ================================================================================
// Authorization Endpoint Parameter Names
// ================================================================================

const (
	ParamResponseType     = "response_type"
	ParamClientID         = "client_id"
	ParamRedirectURI      = "redirect_uri"
	ParamScope            = "scope"
	ParamState            = "state"
	ParamNonce            = "nonce"
	ParamShowRememberMe   = "showRememberMe"
	ParamCode             = "code"
	ParamAccessToken      = "access_token"
	ParamTokenType        = "token_type"
	ParamExpiresIn        = "expires_in"
	ParamIDToken          = "id_token"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
	ParamErrorURI         = "error_uri"
)

// ================================================================================
// Token Type Constants
// ================================================================================

// TokenType represents the type of authentication token
type TokenType string

const (
	// TokenTypeBearer represents the Bearer token type for HTTP Authorization header
	TokenTypeBearer TokenType = "Bearer"
)

// ================================================================================
// Decision Encoding Constants
// ================================================================================

// ResponseFormat is the decision encoding requested from the entitlement service
type ResponseFormat string

const (
	// ResponseFormatJWT asks for signed-token decisions
	ResponseFormatJWT ResponseFormat = "jwt"

	// ResponseFormatJSON asks for plain JSON decisions
	ResponseFormatJSON ResponseFormat = "json"

	// ResponseFormatPlain asks for one bare boolean literal per item
	ResponseFormatPlain ResponseFormat = "plain"
)

// Media types understood by the decision codec
const (
	ContentTypeJWT  = "application/jwt"
	ContentTypeJOSE = "application/jose"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// MediaType returns the Accept media type for a response format
func (f ResponseFormat) MediaType() string {
	switch f {
	case ResponseFormatJWT:
		return ContentTypeJWT
	case ResponseFormatJSON:
		return ContentTypeJSON
	default:
		return ContentTypeText
	}
}

// Valid reports whether f is a known response format
func (f ResponseFormat) Valid() bool {
	switch f {
	case ResponseFormatJWT, ResponseFormatJSON, ResponseFormatPlain:
		return true
	}
	return false
}

// ================================================================================
// Decision Field Constants
// ================================================================================

const (
	// DecisionFieldTokenID carries the consumption token identifier
	DecisionFieldTokenID = "jti"

	// DecisionFieldReason carries a server supplied reason for a negative decision
	DecisionFieldReason = "reason"

	// DecisionFieldExpiresAt carries the decision expiry (seconds since epoch)
	DecisionFieldExpiresAt = "exp"

	// ReasonNoSuchConsumption is reported when a released token id is unknown to the server
	ReasonNoSuchConsumption = "no_such_consumption"
)

// ================================================================================
// Entitlement API Constants
// ================================================================================

const (
	// EntitlementAuthorizationsPath is the batch check/consume resource
	EntitlementAuthorizationsPath = "/authorizations"

	// EntitlementReleasesPath is the release resource
	EntitlementReleasesPath = "/releases"

	// HeaderMachineID carries the per-installation machine identifier
	HeaderMachineID = "X-Machine-Id"

	// DefaultEntitlementTimeout bounds one entitlement HTTP round trip
	DefaultEntitlementTimeout = 15 * time.Second
)

// ================================================================================
// Persistence Keys
// ================================================================================

const (
	// BlobKeyAuthorization is the namespace key of the serialized authorization
	BlobKeyAuthorization = "authorization"

	// BlobKeyMachineID is the namespace key of the machine identifier
	BlobKeyMachineID = "machine-id"

	// AuthorizationSchemaVersion is the current serialized authorization layout
	AuthorizationSchemaVersion = 1
)

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode identifies a specific failure inside an error kind
type ErrorCode string

const (
	ErrCodeMissingConfiguration ErrorCode = "missing_configuration"
	ErrCodeInvalidConfiguration ErrorCode = "invalid_configuration"
	ErrCodeStateMismatch        ErrorCode = "state_mismatch"
	ErrCodeNonceMismatch        ErrorCode = "nonce_mismatch"
	ErrCodeProviderError        ErrorCode = "provider_error"
	ErrCodeMalformedRedirect    ErrorCode = "malformed_redirect"
	ErrCodeMissingGrantArtifact ErrorCode = "missing_grant_artifact"
	ErrCodeMalformedDecision    ErrorCode = "malformed_decision"
	ErrCodeBatchMisaligned      ErrorCode = "batch_misaligned"
	ErrCodeSignatureInvalid     ErrorCode = "signature_invalid"
	ErrCodeUnexpectedStatus     ErrorCode = "unexpected_status"
	ErrCodeTransportFailure     ErrorCode = "transport_failure"
	ErrCodeServerDenied         ErrorCode = "server_denied"
	ErrCodeFlowInProgress       ErrorCode = "flow_in_progress"
	ErrCodeLookupTypeMismatch   ErrorCode = "lookup_type_mismatch"
	ErrCodeNotFound             ErrorCode = "not_found"
	ErrCodeCorruptAuthorization ErrorCode = "corrupt_authorization"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyLogger is the key for a request scoped logger in context
	ContextKeyLogger ContextKey = "logger"

	// ContextKeyTraceID is the key for distributed trace ID in context
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyFlowID is the key for the current sign-on attempt in context
	ContextKeyFlowID ContextKey = "flow_id"
)

// ServiceName is the default service name reported to logs and traces
const ServiceName = "entitle"
