package oauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/internal/domain/service/mocks"
	"github.com/turtacn/entitle/internal/infrastructure/oauth"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

func newExchanger(t *testing.T, handler http.HandlerFunc) (*oauth.TokenExchanger, *mocks.MockMetrics) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	metrics := new(mocks.MockMetrics)
	cfg := config.OAuthConfig{
		AuthorizationEndpoint: ts.URL + "/authorize",
		TokenEndpoint:         ts.URL + "/token",
		ClientID:              "desktop-client",
		ClientSecret:          "s3cret",
		RedirectURI:           "http://127.0.0.1:8765/callback",
	}
	return oauth.NewTokenExchanger(cfg, ts.Client(), metrics, nil, logger.NewNoopLogger()), metrics
}

func TestTokenExchanger_Success(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"},
		GivenName:        "Ada",
		Nonce:            "n-1",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	exchanger, metrics := newExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "http://127.0.0.1:8765/callback", r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600,"refresh_token":"rt-1","scope":"openid","id_token":"` + idToken + `"}`))
	})
	metrics.On("RecordTokenExchange", true, mock.AnythingOfType("time.Duration")).Once()

	auth, err := exchanger.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", auth.AccessToken)
	assert.Equal(t, "rt-1", auth.RefreshToken)
	assert.Equal(t, "openid", auth.Scope)
	assert.WithinDuration(t, time.Now().Add(time.Hour), auth.ExpiresAt, time.Minute)
	require.NotNil(t, auth.Claims)
	assert.Equal(t, "n-1", auth.Claims.Nonce)
	assert.Equal(t, "Ada", auth.Greeting())
	metrics.AssertExpectations(t)
}

func TestTokenExchanger_ProviderError(t *testing.T) {
	exchanger, metrics := newExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	})
	metrics.On("RecordTokenExchange", false, mock.Anything).Once()

	_, err := exchanger.Exchange(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, constants.ErrCodeProviderError))
	e, ok := errors.AsEntitleError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_grant", e.Metadata()["error"])
}

func TestTokenExchanger_UnexpectedStatus(t *testing.T) {
	exchanger, metrics := newExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	metrics.On("RecordTokenExchange", false, mock.Anything).Once()

	_, err := exchanger.Exchange(context.Background(), "code")
	require.Error(t, err)
	assert.True(t, errors.IsTransportError(err))
	e, _ := errors.AsEntitleError(err)
	assert.Equal(t, http.StatusBadGateway, e.Metadata()["status"])
	assert.Equal(t, "upstream down", e.Metadata()["body"])
}
