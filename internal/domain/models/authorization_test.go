package models_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

func TestAuthorization_SerializeRoundTrip(t *testing.T) {
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	auth := &models.Authorization{
		AccessToken:  "at-123",
		TokenType:    "Bearer",
		ExpiresAt:    expires,
		RefreshToken: "rt-456",
		Claims: &models.IDTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
			GivenName:        "Ada",
			FamilyName:       "Lovelace",
		},
	}

	data, err := models.SerializeAuthorization(auth)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schema_version":1`)

	restored, err := models.DeserializeAuthorization(data)
	require.NoError(t, err)
	assert.Equal(t, "at-123", restored.AccessToken)
	assert.True(t, expires.Equal(restored.ExpiresAt))
	assert.Equal(t, "Ada Lovelace", restored.Greeting())
}

func TestDeserializeAuthorization_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `garbage`},
		{"wrong version", `{"schema_version":9,"access_token":"x"}`},
		{"no access token", `{"schema_version":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.DeserializeAuthorization([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, constants.ErrCodeCorruptAuthorization))
		})
	}
}

func TestIDTokenClaims_DisplayName(t *testing.T) {
	tests := []struct {
		name   string
		claims *models.IDTokenClaims
		want   string
	}{
		{"nil", nil, ""},
		{"name wins", &models.IDTokenClaims{Name: "Grace Hopper", GivenName: "G"}, "Grace Hopper"},
		{"given only", &models.IDTokenClaims{GivenName: "Grace"}, "Grace"},
		{"subject fallback", &models.IDTokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-9"}}, "sub-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.DisplayName())
		})
	}
}

func TestAuthorization_IsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&models.Authorization{}).IsExpired(now))
	assert.True(t, (&models.Authorization{ExpiresAt: now.Add(-time.Second)}).IsExpired(now))
	assert.False(t, (&models.Authorization{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
}

func TestAuthorization_BearerHeader(t *testing.T) {
	assert.Equal(t, "Bearer abc", (&models.Authorization{AccessToken: "abc", TokenType: "bearer"}).BearerHeader())
	assert.Equal(t, "Bearer abc", (&models.Authorization{AccessToken: "abc"}).BearerHeader())
}

func TestAuthorizationResult_Cancelled(t *testing.T) {
	assert.True(t, models.CancelledResult().Cancelled())
	assert.False(t, (&models.AuthorizationResult{Authorization: &models.Authorization{AccessToken: "x"}}).Cancelled())
}

func TestAuthorizedItemBatch_Prefix(t *testing.T) {
	b := models.NewAuthorizedItemBatch("a", "b", "c")
	assert.Equal(t, []string{"a", "b"}, b.Prefix(2))
	assert.Equal(t, []string{"a", "b", "c"}, b.Prefix(5))
	assert.Empty(t, b.Prefix(-1))
	assert.Equal(t, "c", b.At(2))
}
