package service

import (
	"net/url"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

// BuildAuthorizationURI assembles the authorization endpoint URI for one sign-on attempt.
// BuildAuthorizationURI 为一次登录尝试构造授权端点 URI。
//
// Query parameters already present on the endpoint are kept; the parameters
// set here replace any of the same name. response_type, client_id and
// showRememberMe=false are always sent; redirect_uri, scope, state and nonce
// only when non-empty. The encoded query is sorted by key.
func BuildAuthorizationURI(cfg config.OAuthConfig, responseType constants.ResponseType, args models.AuthorizationRequestArgs) (*url.URL, error) {
	if cfg.AuthorizationEndpoint == "" {
		return nil, errors.ErrMissingConfiguration("oauth.authorization_endpoint")
	}
	if cfg.ClientID == "" {
		return nil, errors.ErrMissingConfiguration("oauth.client_id")
	}
	if responseType == "" {
		return nil, errors.ErrMissingConfiguration("response_type")
	}

	u, err := url.Parse(cfg.AuthorizationEndpoint)
	if err != nil {
		return nil, errors.ErrInvalidConfiguration("oauth.authorization_endpoint", err.Error()).WithCause(err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.ErrInvalidConfiguration("oauth.authorization_endpoint", "must be an absolute URI")
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, errors.ErrInvalidConfiguration("oauth.authorization_endpoint", "query: "+err.Error()).WithCause(err)
	}

	query.Set(constants.ParamResponseType, string(responseType))
	query.Set(constants.ParamClientID, cfg.ClientID)
	query.Set(constants.ParamShowRememberMe, "false")
	setIfPresent(query, constants.ParamRedirectURI, cfg.RedirectURI)
	setIfPresent(query, constants.ParamScope, cfg.Scope)
	setIfPresent(query, constants.ParamState, args.State)
	setIfPresent(query, constants.ParamNonce, args.Nonce)

	u.RawQuery = query.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

func setIfPresent(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}
