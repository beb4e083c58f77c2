package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

// AuthorizationCodeGrant is the authorization code grant: the code arrives in
// the redirect query and is redeemed synchronously at the token endpoint.
type AuthorizationCodeGrant struct {
	parser    QueryParameterParser
	exchanger TokenExchanger
}

// NewAuthorizationCodeGrant creates a code grant redeeming codes with exchanger.
func NewAuthorizationCodeGrant(exchanger TokenExchanger) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{exchanger: exchanger}
}

func (g *AuthorizationCodeGrant) ResponseType() constants.ResponseType {
	return constants.ResponseTypeCode
}

func (g *AuthorizationCodeGrant) ParseRedirectParameters(finalURI string) (map[string]string, error) {
	return g.parser.Parse(finalURI)
}

func (g *AuthorizationCodeGrant) Finalize(ctx context.Context, params map[string]string) (*models.Authorization, error) {
	code := params[constants.ParamCode]
	if code == "" {
		return nil, errors.ErrMissingGrantArtifact(constants.ParamCode)
	}
	if g.exchanger == nil {
		return nil, errors.ErrMissingConfiguration("oauth.token_endpoint")
	}
	return g.exchanger.Exchange(ctx, code)
}

// ImplicitGrant is the implicit grant: the access token arrives in the redirect fragment.
type ImplicitGrant struct {
	parser FragmentParameterParser
	now    func() time.Time
}

func NewImplicitGrant() *ImplicitGrant {
	return &ImplicitGrant{now: time.Now}
}

func (g *ImplicitGrant) ResponseType() constants.ResponseType {
	return constants.ResponseTypeToken
}

func (g *ImplicitGrant) ParseRedirectParameters(finalURI string) (map[string]string, error) {
	return g.parser.Parse(finalURI)
}

func (g *ImplicitGrant) Finalize(_ context.Context, params map[string]string) (*models.Authorization, error) {
	accessToken := params[constants.ParamAccessToken]
	if accessToken == "" {
		return nil, errors.ErrMissingGrantArtifact(constants.ParamAccessToken)
	}
	now := g.now()
	auth := &models.Authorization{
		AccessToken: accessToken,
		TokenType:   params[constants.ParamTokenType],
		Scope:       params[constants.ParamScope],
		ObtainedAt:  now.UTC(),
	}
	if raw := params[constants.ParamExpiresIn]; raw != "" {
		secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || secs < 0 {
			return nil, errors.ErrMalformedRedirect("", "expires_in is not a non-negative integer")
		}
		auth.ExpiresAt = now.Add(time.Duration(secs) * time.Second).UTC()
	}
	if raw := params[constants.ParamIDToken]; raw != "" {
		claims, err := ParseIDTokenClaims(raw)
		if err != nil {
			return nil, err
		}
		auth.IDToken = raw
		auth.Claims = claims
	}
	return auth, nil
}

// ParseIDTokenClaims decodes the claim set of an id_token.
// The signature is not checked; no provider key set is configured.
func ParseIDTokenClaims(raw string) (*models.IDTokenClaims, error) {
	claims := &models.IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.ErrMalformedRedirect("", "id_token is not a valid JWT").WithCause(err)
	}
	return claims, nil
}
