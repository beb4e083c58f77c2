package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	domainService "github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
	"github.com/turtacn/entitle/pkg/utils"
)

// correlationBytes is the entropy of generated state and nonce values.
const correlationBytes = 32

// AuthorizationRunner runs one interactive sign-on.
type AuthorizationRunner interface {
	Run(ctx context.Context, args models.AuthorizationRequestArgs) (*models.AuthorizationResult, error)
}

// SessionAppService manages the signed-in session: it runs the sign-on,
// persists the resulting authorization and resolves who is signed in.
// SessionAppService 管理登录会话：执行登录、持久化授权并识别当前用户。
type SessionAppService struct {
	flow             AuthorizationRunner
	store            domainService.BlobStore
	transport        domainService.Transport
	userInfoEndpoint string
	logger           logger.Logger
}

// NewSessionAppService creates a new SessionAppService. transport is only
// used for the user-info lookup and may be nil.
func NewSessionAppService(
	cfg config.OAuthConfig,
	flow AuthorizationRunner,
	store domainService.BlobStore,
	transport domainService.Transport,
	log logger.Logger,
) *SessionAppService {
	return &SessionAppService{
		flow:             flow,
		store:            store,
		transport:        transport,
		userInfoEndpoint: cfg.UserInfoEndpoint,
		logger:           log.WithComponent("SessionAppService"),
	}
}

// Login runs the sign-on with fresh state and nonce values and persists the
// authorization. A cancelled sign-on persists nothing.
func (s *SessionAppService) Login(ctx context.Context) (*models.AuthorizationResult, error) {
	state, err := utils.GenerateSecureRandomString(correlationBytes)
	if err != nil {
		return nil, err
	}
	nonce, err := utils.GenerateSecureRandomString(correlationBytes)
	if err != nil {
		return nil, err
	}

	result, err := s.flow.Run(ctx, models.AuthorizationRequestArgs{State: state, Nonce: nonce})
	if err != nil {
		return nil, err
	}
	if result.Cancelled() {
		return result, nil
	}

	data, err := models.SerializeAuthorization(result.Authorization)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, constants.BlobKeyAuthorization, data); err != nil {
		s.logger.Error(ctx, "Failed to persist authorization", err)
		return nil, err
	}
	s.logger.Info(ctx, "Authorization stored", logger.String("greeting", result.Authorization.Greeting()))
	return result, nil
}

// Current restores the persisted authorization. It returns errors.ErrNotFound
// when nobody is signed in.
func (s *SessionAppService) Current(ctx context.Context) (*models.Authorization, error) {
	data, err := s.store.Load(ctx, constants.BlobKeyAuthorization)
	if err != nil {
		return nil, err
	}
	return models.DeserializeAuthorization(data)
}

// Logout forgets the persisted authorization.
func (s *SessionAppService) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, constants.BlobKeyAuthorization); err != nil && !errors.IsNotFoundError(err) {
		return err
	}
	return nil
}

// Greeting names the signed-in user: the id_token's name, then its given and
// family name, then the user-info endpoint, then the subject.
func (s *SessionAppService) Greeting(ctx context.Context, auth *models.Authorization) (string, error) {
	if auth == nil {
		return "", errors.ErrNotFound
	}
	if c := auth.Claims; c != nil && strings.TrimSpace(c.Name+c.GivenName+c.FamilyName) != "" {
		return c.DisplayName(), nil
	}

	if s.userInfoEndpoint != "" && s.transport != nil {
		info, err := s.UserInfo(ctx, auth)
		if err != nil {
			s.logger.Warn(ctx, "User-info lookup failed", logger.Any("error", err.Error()))
		} else if name := info.DisplayName(); name != "" {
			return name, nil
		}
	}

	if auth.Claims != nil {
		return auth.Claims.Subject, nil
	}
	return "", nil
}

// UserInfo fetches the identity claims of auth from the user-info endpoint.
func (s *SessionAppService) UserInfo(ctx context.Context, auth *models.Authorization) (*models.IDTokenClaims, error) {
	if s.userInfoEndpoint == "" {
		return nil, errors.ErrMissingConfiguration("oauth.userinfo_endpoint")
	}
	header := http.Header{}
	header.Set("Authorization", auth.BearerHeader())
	header.Set("Accept", constants.ContentTypeJSON)

	resp, err := s.transport.Do(ctx, &domainService.HTTPRequest{Method: http.MethodGet, URL: s.userInfoEndpoint, Header: header})
	if err != nil {
		return nil, err
	}
	claims := &models.IDTokenClaims{}
	if err := json.Unmarshal(resp.Body, claims); err != nil {
		return nil, errors.ErrMalformedDecision("userinfo", "user-info response is not a JSON object", resp.Body).WithCause(err)
	}
	return claims, nil
}
