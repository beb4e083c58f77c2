package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

// IDTokenClaims is the identity claim set of an OpenID Connect id_token.
// It embeds jwt.RegisteredClaims so it can be handed to jwt parsers directly.
// IDTokenClaims 是 id_token 中的身份声明集合。
type IDTokenClaims struct {
	jwt.RegisteredClaims
	// Name is the full display name.
	// Name 是完整的显示名称。
	Name string `json:"name,omitempty"`
	// GivenName is the first name.
	// GivenName 是名。
	GivenName string `json:"given_name,omitempty"`
	// FamilyName is the last name.
	// FamilyName 是姓。
	FamilyName string `json:"family_name,omitempty"`
	Email      string `json:"email,omitempty"`
	// Nonce binds the token to the authorization request that produced it.
	// Nonce 将令牌与生成它的授权请求绑定。
	Nonce string `json:"nonce,omitempty"`
}

// DisplayName picks the friendliest name the claims carry:
// name, then given and family name, then the subject.
func (c *IDTokenClaims) DisplayName() string {
	if c == nil {
		return ""
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	full := strings.TrimSpace(strings.TrimSpace(c.GivenName) + " " + strings.TrimSpace(c.FamilyName))
	if full != "" {
		return full
	}
	return c.Subject
}

// Authorization is the credential produced by a completed sign-on.
// Authorization 是一次成功登录产生的凭证。
type Authorization struct {
	// AccessToken is the bearer credential sent to the entitlement service.
	// AccessToken 是发送给授权服务的持有者凭证。
	AccessToken string `json:"access_token"`

	// TokenType is normally "Bearer".
	// TokenType 通常为 "Bearer"。
	TokenType string `json:"token_type"`

	// ExpiresAt is the zero time when the provider reported no lifetime.
	// 当身份提供方未返回有效期时，ExpiresAt 为零值。
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// IDToken is the raw id_token; Claims holds its decoded claim set.
	// IDToken 是原始 id_token，Claims 是其解码后的声明集合。
	IDToken string         `json:"id_token,omitempty"`
	Claims  *IDTokenClaims `json:"claims,omitempty"`

	ObtainedAt time.Time `json:"obtained_at"`
}

// IsExpired reports whether the access token lifetime has elapsed at now.
// Authorizations without an expiry never expire here.
func (a *Authorization) IsExpired(now time.Time) bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.ExpiresAt)
}

// BearerHeader renders the Authorization header value.
func (a *Authorization) BearerHeader() string {
	tokenType := a.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, string(constants.TokenTypeBearer)) {
		tokenType = string(constants.TokenTypeBearer)
	}
	return tokenType + " " + a.AccessToken
}

// Greeting returns the display name of the signed-in user, or "" when the
// claims carry none.
func (a *Authorization) Greeting() string {
	return a.Claims.DisplayName()
}

type storedAuthorization struct {
	SchemaVersion int `json:"schema_version"`
	*Authorization
}

// SerializeAuthorization encodes a for the blob store.
func SerializeAuthorization(a *Authorization) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil authorization")
	}
	return json.Marshal(storedAuthorization{SchemaVersion: constants.AuthorizationSchemaVersion, Authorization: a})
}

// DeserializeAuthorization decodes bytes written by SerializeAuthorization.
// Unknown schema versions and records without an access token are rejected.
func DeserializeAuthorization(data []byte) (*Authorization, error) {
	stored := storedAuthorization{Authorization: &Authorization{}}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.ErrCorruptAuthorization("stored authorization is not valid JSON").WithCause(err)
	}
	if stored.SchemaVersion != constants.AuthorizationSchemaVersion {
		return nil, errors.ErrCorruptAuthorization(fmt.Sprintf("unsupported schema_version: %d", stored.SchemaVersion))
	}
	if stored.AccessToken == "" {
		return nil, errors.ErrCorruptAuthorization("stored authorization has no access_token")
	}
	return stored.Authorization, nil
}
