// Package service provides application-level services that orchestrate the
// sign-on flow and the entitlement protocol on top of the domain services.
package service

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	domainService "github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/infrastructure/monitoring"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// AuthorizationFlow drives one interactive sign-on at a time through
// Idle → Started → AwaitingUserInteraction → Completed | Cancelled | Failed.
// AuthorizationFlow 驱动交互式登录流程，同一时刻只允许一次登录。
//
// A flow in a terminal state may be run again. The interactive surface is
// acquired per run and released on every exit path.
type AuthorizationFlow struct {
	cfg      config.OAuthConfig
	variant  domainService.GrantVariant
	surfaces domainService.SurfaceProvider
	metrics  domainService.Metrics
	tracer   trace.Tracer
	logger   logger.Logger

	mu      sync.Mutex
	state   models.FlowState
	surface domainService.InteractiveSurface
	cancel  context.CancelFunc
}

// NewAuthorizationFlow creates a new AuthorizationFlow in the Idle state.
func NewAuthorizationFlow(
	cfg config.OAuthConfig,
	variant domainService.GrantVariant,
	surfaces domainService.SurfaceProvider,
	metrics domainService.Metrics,
	tracer trace.Tracer,
	log logger.Logger,
) *AuthorizationFlow {
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	return &AuthorizationFlow{
		cfg:      cfg,
		variant:  variant,
		surfaces: surfaces,
		metrics:  metrics,
		tracer:   tracer,
		logger:   log.WithComponent("AuthorizationFlow"),
		state:    models.FlowIdle,
	}
}

// State returns the current lifecycle state.
func (f *AuthorizationFlow) State() models.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Run performs one sign-on. It blocks while the user interacts with the
// surface. A cancelled sign-on returns models.CancelledResult() and a nil error.
func (f *AuthorizationFlow) Run(ctx context.Context, args models.AuthorizationRequestArgs) (*models.AuthorizationResult, error) {
	f.mu.Lock()
	if f.state.Active() {
		f.mu.Unlock()
		return nil, errors.ErrFlowInProgress
	}
	f.state = models.FlowStarted
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	flowID := uuid.NewString()
	ctx = context.WithValue(ctx, constants.ContextKeyFlowID, flowID)
	ctx, span := monitoring.StartSpan(ctx, f.tracer, "authorization_flow.Run", map[string]interface{}{
		"flow.id":             flowID,
		"oauth.response_type": string(f.variant.ResponseType()),
	})
	defer span.End()

	start := time.Now()
	result, err := f.run(ctx, args)

	final := models.FlowCompleted
	switch {
	case err != nil:
		final = models.FlowFailed
		monitoring.RecordError(span, err)
		f.logger.Error(ctx, "Sign-on failed", err)
	case result.Cancelled():
		final = models.FlowCancelled
		f.logger.Info(ctx, "Sign-on cancelled by user")
	default:
		f.logger.Info(ctx, "Sign-on completed")
	}
	f.metrics.RecordFlowOutcome(final.String(), time.Since(start))

	f.mu.Lock()
	f.state = final
	f.cancel = nil
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *AuthorizationFlow) run(ctx context.Context, args models.AuthorizationRequestArgs) (*models.AuthorizationResult, error) {
	initialURI, err := domainService.BuildAuthorizationURI(f.cfg, f.variant.ResponseType(), args)
	if err != nil {
		return nil, err
	}
	if f.surfaces == nil {
		return nil, errors.ErrMissingConfiguration("surface")
	}

	surface, err := f.surfaces.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.surface = surface
	f.state = models.FlowAwaitingUserInteraction
	f.mu.Unlock()

	outcome, err := f.navigate(ctx, surface, initialURI.String())
	if err != nil {
		return nil, err
	}
	if outcome.Cancelled {
		return models.CancelledResult(), nil
	}

	params, err := f.variant.ParseRedirectParameters(outcome.FinalURI)
	if err != nil {
		return nil, err
	}

	returnedState := params[constants.ParamState]
	if args.State != "" && subtle.ConstantTimeCompare([]byte(args.State), []byte(returnedState)) != 1 {
		return nil, errors.ErrStateMismatch(args.State, returnedState)
	}

	if code := params[constants.ParamError]; code != "" {
		return nil, errors.ErrProviderReported(code, params[constants.ParamErrorDescription], params[constants.ParamErrorURI])
	}

	auth, err := f.variant.Finalize(ctx, params)
	if err != nil {
		return nil, err
	}

	if args.Nonce != "" && auth.Claims != nil && auth.Claims.Nonce != args.Nonce {
		return nil, errors.ErrNonceMismatch(args.Nonce, auth.Claims.Nonce)
	}

	return &models.AuthorizationResult{State: returnedState, Authorization: auth}, nil
}

// navigate blocks on the surface and releases it however the wait ends.
func (f *AuthorizationFlow) navigate(ctx context.Context, surface domainService.InteractiveSurface, initialURI string) (domainService.SurfaceOutcome, error) {
	defer f.releaseSurface(ctx)
	f.logger.Debug(ctx, "Waiting for user interaction", logger.String("redirect_prefix", f.cfg.RedirectPrefix()))
	return surface.Navigate(ctx, initialURI, f.cfg.RedirectPrefix())
}

func (f *AuthorizationFlow) releaseSurface(ctx context.Context) {
	f.mu.Lock()
	surface := f.surface
	f.surface = nil
	f.mu.Unlock()
	if surface == nil {
		return
	}
	if err := surface.Close(); err != nil {
		f.logger.Warn(ctx, "Failed to release interactive surface", logger.Any("error", err.Error()))
	}
}

// Close tears the flow down. A sign-on in progress ends as cancelled.
func (f *AuthorizationFlow) Close() error {
	f.mu.Lock()
	cancel := f.cancel
	surface := f.surface
	f.surface = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if surface != nil {
		return surface.Close()
	}
	return nil
}
