// Package oauth redeems authorization codes at the provider's token endpoint.
package oauth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/infrastructure/monitoring"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// TokenExchanger implements service.TokenExchanger with golang.org/x/oauth2.
type TokenExchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
	metrics    service.Metrics
	tracer     trace.Tracer
	logger     logger.Logger
	now        func() time.Time
}

// NewTokenExchanger creates a new TokenExchanger for cfg.
// A nil httpClient uses a client with a 15 second timeout.
func NewTokenExchanger(cfg config.OAuthConfig, httpClient *http.Client, metrics service.Metrics, tracer trace.Tracer, log logger.Logger) *TokenExchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	return &TokenExchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizationEndpoint,
				TokenURL: cfg.TokenEndpoint,
			},
			RedirectURL: cfg.RedirectURI,
			Scopes:      strings.Fields(cfg.Scope),
		},
		httpClient: httpClient,
		metrics:    metrics,
		tracer:     tracer,
		logger:     log.WithComponent("TokenExchanger"),
		now:        time.Now,
	}
}

// Exchange redeems code. An OAuth error response from the provider becomes a
// provider error; any other non-2xx answer a transport error carrying the body.
func (e *TokenExchanger) Exchange(ctx context.Context, code string) (*models.Authorization, error) {
	var auth *models.Authorization
	err := monitoring.TraceOperation(ctx, e.tracer, "oauth.Exchange", func(ctx context.Context) error {
		var err error
		auth, err = e.exchange(ctx, code)
		return err
	}, map[string]interface{}{"oauth.token_endpoint": e.config.Endpoint.TokenURL})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

func (e *TokenExchanger) exchange(ctx context.Context, code string) (*models.Authorization, error) {
	start := e.now()
	token, err := e.config.Exchange(context.WithValue(ctx, oauth2.HTTPClient, e.httpClient), code)
	e.metrics.RecordTokenExchange(err == nil, e.now().Sub(start))
	if err != nil {
		e.logger.Error(ctx, "authorization code exchange failed", err)
		return nil, e.translateError(err)
	}

	auth := &models.Authorization{
		AccessToken:  token.AccessToken,
		TokenType:    token.Type(),
		ExpiresAt:    token.Expiry,
		RefreshToken: token.RefreshToken,
		ObtainedAt:   e.now().UTC(),
	}
	if scope, ok := token.Extra(constants.ParamScope).(string); ok {
		auth.Scope = scope
	}
	if raw, ok := token.Extra(constants.ParamIDToken).(string); ok && raw != "" {
		claims, err := service.ParseIDTokenClaims(raw)
		if err != nil {
			return nil, err
		}
		auth.IDToken = raw
		auth.Claims = claims
	}
	e.logger.Info(ctx, "authorization code exchanged", logger.Bool("id_token", auth.Claims != nil))
	return auth, nil
}

func (e *TokenExchanger) translateError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode != "" {
			return errors.ErrProviderReported(retrieveErr.ErrorCode, retrieveErr.ErrorDescription, retrieveErr.ErrorURI).WithCause(err)
		}
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return errors.ErrUnexpectedStatus(e.config.Endpoint.TokenURL, status, retrieveErr.Body).WithCause(err)
	}
	return errors.ErrTransportFailure(e.config.Endpoint.TokenURL, err)
}
