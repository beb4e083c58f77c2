package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/turtacn/entitle/pkg/constants"
)

func TestKindPredicatesFollowWrapping(t *testing.T) {
	err := fmt.Errorf("login: %w", ErrStateMismatch("abc", "xyz"))

	assert.True(t, IsProtocolError(err))
	assert.False(t, IsIntegrityError(err))
	assert.True(t, HasCode(err, constants.ErrCodeStateMismatch))

	e, ok := AsEntitleError(err)
	assert.True(t, ok)
	assert.Equal(t, "abc", e.Metadata()["expected"])
	assert.Equal(t, "xyz", e.Metadata()["actual"])
}

func TestSentinelMatchesByKindAndCode(t *testing.T) {
	err := fmt.Errorf("run: %w", ErrFlowInProgress)
	assert.True(t, stderrors.Is(err, ErrFlowInProgress))
	assert.False(t, stderrors.Is(ErrStateMismatch("a", "b"), ErrFlowInProgress))
}

func TestTransportFailureUnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrTransportFailure("https://svc/authorizations", cause)

	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProviderReportedCarriesDetails(t *testing.T) {
	err := ErrProviderReported("access_denied", "user declined", "")
	assert.Equal(t, "access_denied", err.Metadata()["error"])
	assert.Equal(t, "user declined", err.Metadata()["error_description"])
	_, hasURI := err.Metadata()["error_uri"]
	assert.False(t, hasURI)
}

func TestForeignErrorsHaveNoKind(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.False(t, IsConfigurationError(nil))
}
