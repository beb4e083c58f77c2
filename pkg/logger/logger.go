// Package logger provides structured logging capabilities for the entitle client.
// The concrete zap-backed implementation lives in internal/infrastructure/monitoring;
// this package holds the interface, field helpers and the redaction rules every
// implementation applies.
package logger

import (
	"context"
	"strings"
	"time"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Fields is a set of key-value pairs attached to a log entry
type Fields map[string]interface{}

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, msg string, fields ...Fields)

	// Info logs an informational message
	Info(ctx context.Context, msg string, fields ...Fields)

	// Warn logs a warning message
	Warn(ctx context.Context, msg string, fields ...Fields)

	// Error logs an error message
	Error(ctx context.Context, msg string, err error, fields ...Fields)

	// Fatal logs a fatal message and exits the application
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields creates a new logger with additional fields
	WithFields(fields Fields) Logger

	// WithComponent creates a new logger for a specific component
	WithComponent(component string) Logger

	// ForContext returns the logger stored in ctx, or the receiver
	ForContext(ctx context.Context) Logger
}

// ================================================================================
// Field Helpers
// ================================================================================

// String creates a single string field
func String(key string, value string) Fields {
	return Fields{key: value}
}

// Int creates a single integer field
func Int(key string, value int) Fields {
	return Fields{key: value}
}

// Bool creates a single boolean field
func Bool(key string, value bool) Fields {
	return Fields{key: value}
}

// Duration creates a single duration field
func Duration(key string, value time.Duration) Fields {
	return Fields{key: value.String()}
}

// Any creates a field with any type
func Any(key string, value interface{}) Fields {
	return Fields{key: value}
}

// Merge flattens fields into one set; later keys win
func Merge(fields ...Fields) Fields {
	out := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// ================================================================================
// Redaction
// ================================================================================

// sensitiveFragments mask any key containing them
var sensitiveFragments = []string{
	"password",
	"secret",
	"private_key",
	"authorization",
}

// sensitiveKeys mask keys that equal them exactly
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"code":          {},
	"bearer":        {},
}

// Sanitize masks values stored under sensitive keys
func Sanitize(key string, value interface{}) interface{} {
	keyLower := strings.ToLower(key)
	_, exact := sensitiveKeys[keyLower]
	if !exact {
		for _, fragment := range sensitiveFragments {
			if strings.Contains(keyLower, fragment) {
				exact = true
				break
			}
		}
	}
	if !exact {
		return value
	}
	if str, ok := value.(string); ok && len(str) > 0 {
		return maskString(str)
	}
	return "***REDACTED***"
}

// maskString partially masks a string value
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
