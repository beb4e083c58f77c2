package service

import (
	"context"
	"crypto"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/entitle/internal/application/dto"
	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	domainService "github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/infrastructure/monitoring"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// releaseConcurrency bounds the releases ReleasePending runs at once.
const releaseConcurrency = 4

const (
	operationCheck   = "check"
	operationConsume = "consume"
	operationRelease = "release"
)

// Release outcomes reported to metrics and audit.
const (
	ReleaseOutcomeReleased   = "released"
	ReleaseOutcomeIdempotent = "idempotent"
	ReleaseOutcomeFailed     = "failed"
)

// EntitlementAppService speaks the entitlement query protocol: batched
// check/consume of authorized items and release of consumed grants.
// EntitlementAppService 实现授权查询协议：批量检查/消费授权项以及释放已消费的授权。
//
// It holds no per-call state and is safe for concurrent use.
type EntitlementAppService struct {
	baseURL   string
	transport domainService.Transport
	codec     *domainService.DecisionCodec
	keys      domainService.KeySource
	machine   domainService.MachineIdentifier
	pending   domainService.PendingReleaseRepository
	audit     domainService.AuditPublisher
	metrics   domainService.Metrics
	tracer    trace.Tracer
	logger    logger.Logger
	now       func() time.Time
}

// NewEntitlementAppService creates a new EntitlementAppService.
// keys, machine, pending and audit may be nil: decisions are then accepted
// unverified, no machine identifier is sent, consumptions are not tracked and
// no usage events are published.
func NewEntitlementAppService(
	cfg config.EntitlementConfig,
	transport domainService.Transport,
	codec *domainService.DecisionCodec,
	keys domainService.KeySource,
	machine domainService.MachineIdentifier,
	pending domainService.PendingReleaseRepository,
	audit domainService.AuditPublisher,
	metrics domainService.Metrics,
	tracer trace.Tracer,
	log logger.Logger,
) *EntitlementAppService {
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	return &EntitlementAppService{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
		codec:     codec,
		keys:      keys,
		machine:   machine,
		pending:   pending,
		audit:     audit,
		metrics:   metrics,
		tracer:    tracer,
		logger:    log.WithComponent("EntitlementAppService"),
		now:       time.Now,
	}
}

// CheckOrConsume asks the entitlement service for one decision per item.
// The returned decisions are aligned with items. When the service answers for
// fewer items, the decisions it did return come back together with a
// batch-misaligned protocol error.
func (s *EntitlementAppService) CheckOrConsume(ctx context.Context, bearer string, items []string, consume bool, format constants.ResponseFormat) ([]*models.AuthorizationDecision, error) {
	op := operationCheck
	if consume {
		op = operationConsume
	}
	if err := s.validate(format); err != nil {
		return nil, err
	}
	batch := models.NewAuthorizedItemBatch(items...)
	if batch.Len() == 0 {
		return []*models.AuthorizationDecision{}, nil
	}

	ctx, span := monitoring.StartSpan(ctx, s.tracer, "entitlement."+op, map[string]interface{}{
		"entitlement.items":  batch.Len(),
		"entitlement.format": string(format),
	})
	defer span.End()

	start := s.now()
	decisions, err := s.checkOrConsume(ctx, bearer, batch, consume, format)
	s.metrics.RecordEntitlementRequest(op, string(format), err == nil, s.now().Sub(start))
	if err != nil {
		monitoring.RecordError(span, err)
		s.logger.Error(ctx, "Entitlement request failed", err,
			logger.String("operation", op),
			logger.Int("items", batch.Len()),
		)
	}

	for _, d := range decisions {
		s.afterDecision(ctx, op, d)
	}
	return decisions, err
}

func (s *EntitlementAppService) checkOrConsume(ctx context.Context, bearer string, batch models.AuthorizedItemBatch, consume bool, format constants.ResponseFormat) ([]*models.AuthorizationDecision, error) {
	machineID, err := s.machineID(ctx)
	if err != nil {
		return nil, err
	}
	key, err := s.publicKey(ctx)
	if err != nil {
		return nil, err
	}

	if format == constants.ResponseFormatPlain {
		decisions := make([]*models.AuthorizationDecision, 0, batch.Len())
		for _, item := range batch.Items() {
			body, _ := json.Marshal(dto.ItemAuthorizationRequest{Consume: consume, MachineID: machineID})
			uri := s.baseURL + constants.EntitlementAuthorizationsPath + "/" + url.PathEscape(item)
			resp, err := s.transport.Do(ctx, s.newRequest(uri, bearer, machineID, format, body))
			if err != nil {
				return decisions, err
			}
			d, err := s.parse(item, resp.Body, resp.ContentType, key)
			if err != nil {
				return decisions, err
			}
			decisions = append(decisions, d)
		}
		return decisions, nil
	}

	body, _ := json.Marshal(dto.AuthorizationBatchRequest{Items: batch.Items(), Consume: consume, MachineID: machineID})
	uri := s.baseURL + constants.EntitlementAuthorizationsPath
	resp, err := s.transport.Do(ctx, s.newRequest(uri, bearer, machineID, format, body))
	if err != nil {
		return nil, err
	}

	parts, err := domainService.SplitBatch(resp.Body, resp.ContentType)
	if err != nil {
		return nil, err
	}
	if len(parts) > batch.Len() {
		return nil, errors.ErrBatchMisaligned(batch.Len(), len(parts), resp.Body)
	}

	decisions := make([]*models.AuthorizationDecision, 0, len(parts))
	for i, part := range parts {
		d, err := s.parse(batch.At(i), part, resp.ContentType, key)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if len(parts) < batch.Len() {
		return decisions, errors.ErrBatchMisaligned(batch.Len(), len(parts), resp.Body)
	}
	return decisions, nil
}

// afterDecision records metrics, the pending release of a consumed grant and
// the usage event of one decision.
func (s *EntitlementAppService) afterDecision(ctx context.Context, op string, d *models.AuthorizationDecision) {
	granted, _ := d.IsGranted()
	s.metrics.RecordDecision(op, granted)

	tokenID, releasable := d.TokenID()
	if op == operationConsume && releasable && s.pending != nil {
		pending := &models.PendingRelease{TokenID: tokenID, Item: d.Item(), ConsumedAt: s.now().UTC()}
		if err := s.pending.Record(ctx, pending); err != nil {
			s.logger.Warn(ctx, "Failed to record pending release",
				logger.String("jti", tokenID), logger.Any("error", err.Error()))
		}
	}

	result := "denied"
	if granted {
		result = "granted"
	}
	eventType := models.UsageEventCheck
	if op == operationConsume {
		eventType = models.UsageEventConsume
	}
	s.publish(ctx, eventType, result, d.Item(), tokenID)
}

// Release returns a consumed grant. A decision of true for tokenID, or a
// refusal because the service no longer knows the consumption, is success.
// Any other answer is a server-reported failure carrying the raw body.
func (s *EntitlementAppService) Release(ctx context.Context, bearer string, tokenID string, format constants.ResponseFormat) (*models.AuthorizationDecision, error) {
	if err := s.validate(format); err != nil {
		return nil, err
	}
	if tokenID == "" {
		return nil, errors.ErrInvalidConfiguration("jti", "token id is empty")
	}

	ctx, span := monitoring.StartSpan(ctx, s.tracer, "entitlement.release", map[string]interface{}{
		"entitlement.jti": tokenID,
	})
	defer span.End()

	start := s.now()
	decision, outcome, err := s.release(ctx, bearer, tokenID, format)
	s.metrics.RecordEntitlementRequest(operationRelease, string(format), err == nil, s.now().Sub(start))
	s.metrics.RecordRelease(outcome)

	item := ""
	if err != nil {
		monitoring.RecordError(span, err)
		s.logger.Error(ctx, "Release failed", err, logger.String("jti", tokenID))
	} else if s.pending != nil {
		if rmErr := s.pending.Remove(ctx, tokenID); rmErr != nil && !errors.IsNotFoundError(rmErr) {
			s.logger.Warn(ctx, "Failed to clear pending release",
				logger.String("jti", tokenID), logger.Any("error", rmErr.Error()))
		}
	}
	if decision != nil {
		item, _, _ = decision.String("item")
	}
	s.publish(ctx, models.UsageEventRelease, outcome, item, tokenID)
	return decision, err
}

func (s *EntitlementAppService) release(ctx context.Context, bearer, tokenID string, format constants.ResponseFormat) (*models.AuthorizationDecision, string, error) {
	machineID, err := s.machineID(ctx)
	if err != nil {
		return nil, ReleaseOutcomeFailed, err
	}
	key, err := s.publicKey(ctx)
	if err != nil {
		return nil, ReleaseOutcomeFailed, err
	}

	body, _ := json.Marshal(dto.ReleaseRequest{TokenID: tokenID, MachineID: machineID})
	resp, err := s.transport.Do(ctx, s.newRequest(s.baseURL+constants.EntitlementReleasesPath, bearer, machineID, format, body))
	if err != nil {
		return nil, ReleaseOutcomeFailed, err
	}

	parts, err := domainService.SplitBatch(resp.Body, resp.ContentType)
	if err != nil {
		return nil, ReleaseOutcomeFailed, err
	}
	if len(parts) != 1 {
		return nil, ReleaseOutcomeFailed, errors.ErrBatchMisaligned(1, len(parts), resp.Body)
	}
	decision, err := s.parse(tokenID, parts[0], resp.ContentType, key)
	if err != nil {
		return nil, ReleaseOutcomeFailed, err
	}

	released, _, err := decision.Bool(tokenID)
	if err != nil {
		return decision, ReleaseOutcomeFailed, err
	}
	if released {
		return decision, ReleaseOutcomeReleased, nil
	}
	reason, _, _ := decision.String(constants.DecisionFieldReason)
	if reason == constants.ReasonNoSuchConsumption {
		s.logger.Info(ctx, "Consumption already released", logger.String("jti", tokenID))
		return decision, ReleaseOutcomeIdempotent, nil
	}
	return decision, ReleaseOutcomeFailed, errors.ErrServerDenied(tokenID, reason, resp.Body)
}

// ReleasePending releases every tracked consumption concurrently and reports
// one outcome per consumption. A failed release stays tracked.
func (s *EntitlementAppService) ReleasePending(ctx context.Context, bearer string, format constants.ResponseFormat) ([]models.ReleaseOutcome, error) {
	if s.pending == nil {
		return nil, errors.ErrMissingConfiguration("pending")
	}
	pending, err := s.pending.List(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]models.ReleaseOutcome, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(releaseConcurrency)
	for i, p := range pending {
		i, p := i, p
		g.Go(func() error {
			_, err := s.Release(gctx, bearer, p.TokenID, format)
			outcomes[i] = models.ReleaseOutcome{TokenID: p.TokenID, Item: p.Item, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// Pending lists the consumptions awaiting release.
func (s *EntitlementAppService) Pending(ctx context.Context) ([]*models.PendingRelease, error) {
	if s.pending == nil {
		return nil, nil
	}
	return s.pending.List(ctx)
}

func (s *EntitlementAppService) validate(format constants.ResponseFormat) error {
	if s.baseURL == "" {
		return errors.ErrMissingConfiguration("entitlement.base_url")
	}
	if !format.Valid() {
		return errors.ErrInvalidConfiguration("entitlement.response_format", "must be one of: jwt json plain")
	}
	if s.transport == nil || s.codec == nil {
		return errors.ErrMissingConfiguration("entitlement transport")
	}
	return nil
}

func (s *EntitlementAppService) newRequest(uri, bearer, machineID string, format constants.ResponseFormat, body []byte) *domainService.HTTPRequest {
	header := http.Header{}
	header.Set("Authorization", string(constants.TokenTypeBearer)+" "+bearer)
	header.Set("Accept", format.MediaType())
	header.Set("Content-Type", constants.ContentTypeJSON)
	if machineID != "" {
		header.Set(constants.HeaderMachineID, machineID)
	}
	return &domainService.HTTPRequest{Method: http.MethodPost, URL: uri, Header: header, Body: body}
}

func (s *EntitlementAppService) parse(item string, body []byte, contentType string, key crypto.PublicKey) (*models.AuthorizationDecision, error) {
	d, err := s.codec.Parse(item, body, contentType, key)
	if err != nil && errors.IsIntegrityError(err) {
		reason := string(constants.ErrCodeSignatureInvalid)
		if e, ok := errors.AsEntitleError(err); ok {
			if r, ok := e.Metadata()["reason"].(string); ok && r != "" {
				reason = r
			}
		}
		s.metrics.RecordSignatureFailure(reason)
	}
	return d, err
}

func (s *EntitlementAppService) machineID(ctx context.Context) (string, error) {
	if s.machine == nil {
		return "", nil
	}
	return s.machine.MachineID(ctx)
}

func (s *EntitlementAppService) publicKey(ctx context.Context) (crypto.PublicKey, error) {
	if s.keys == nil {
		return nil, nil
	}
	return s.keys.PublicKey(ctx)
}

func (s *EntitlementAppService) publish(ctx context.Context, eventType models.UsageEventType, result, item, tokenID string) {
	if s.audit == nil {
		return
	}
	machineID, _ := s.machineID(ctx)
	event := models.NewUsageEvent(eventType, machineID, result).WithItem(item).WithTokenID(tokenID)
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.WithTraceID(sc.TraceID().String())
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish usage event",
			logger.String("event_type", string(eventType)), logger.Any("error", err.Error()))
	}
}
