package service_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/turtacn/entitle/internal/application/dto"
	appservice "github.com/turtacn/entitle/internal/application/service"
	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	domainservice "github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/domain/service/mocks"
	"github.com/turtacn/entitle/internal/infrastructure/crypto"
	"github.com/turtacn/entitle/internal/infrastructure/persistence/memory"
	"github.com/turtacn/entitle/internal/infrastructure/transport"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

type staticMachine string

func (m staticMachine) MachineID(context.Context) (string, error) { return string(m), nil }

type EntitlementAppServiceTestSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	key     *rsa.PrivateKey
	pending *memory.PendingReleaseRepository
	audit   *mocks.MockAuditPublisher
	service *appservice.EntitlementAppService

	mu       sync.Mutex
	requests []*recordedRequest
}

type recordedRequest struct {
	path   string
	header http.Header
	body   []byte
}

func (s *EntitlementAppServiceTestSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.key = key
}

func (s *EntitlementAppServiceTestSuite) SetupTest() {
	s.requests = nil
	s.handler = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, &recordedRequest{path: r.URL.Path, header: r.Header.Clone(), body: body})
		s.mu.Unlock()
		s.handler(w, r)
	}))

	s.pending = memory.NewPendingReleaseRepository()
	s.audit = new(mocks.MockAuditPublisher)
	s.audit.On("Publish", mock.Anything, mock.Anything).Return(nil)
	s.service = s.newService(crypto.NewStaticKeySource(&s.key.PublicKey))
}

func (s *EntitlementAppServiceTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *EntitlementAppServiceTestSuite) newService(keys domainservice.KeySource) *appservice.EntitlementAppService {
	return appservice.NewEntitlementAppService(
		config.EntitlementConfig{BaseURL: s.server.URL + "/v1/", Timeout: 5 * time.Second},
		transport.NewHTTPTransport(nil, 5*time.Second, nil, logger.NewNoopLogger()),
		domainservice.NewDecisionCodec(crypto.NewJWTVerifier()),
		keys,
		staticMachine("machine-1"),
		s.pending,
		s.audit,
		nil,
		nil,
		logger.NewNoopLogger(),
	)
}

func (s *EntitlementAppServiceTestSuite) sign(claims jwt.MapClaims) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	s.Require().NoError(err)
	return tok
}

func (s *EntitlementAppServiceTestSuite) respond(contentType, body string) {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}
}

func (s *EntitlementAppServiceTestSuite) TestCheck_JSONBatch() {
	s.respond("application/json", `[{"feature-a": true}, {"feature-b": false, "reason": "not licensed"}]`)

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a", "feature-b"}, false, constants.ResponseFormatJSON)
	s.Require().NoError(err)
	s.Require().Len(decisions, 2)

	granted, err := decisions[0].IsGranted()
	s.NoError(err)
	s.True(granted)
	s.Equal("feature-a", decisions[0].Item())

	granted, err = decisions[1].IsGranted()
	s.NoError(err)
	s.False(granted)
	reason, _, _ := decisions[1].String("reason")
	s.Equal("not licensed", reason)

	s.Require().Len(s.requests, 1)
	req := s.requests[0]
	s.Equal("/v1/authorizations", req.path)
	s.Equal("Bearer at-1", req.header.Get("Authorization"))
	s.Equal("application/json", req.header.Get("Accept"))
	s.Equal("machine-1", req.header.Get(constants.HeaderMachineID))

	var sent dto.AuthorizationBatchRequest
	s.Require().NoError(json.Unmarshal(req.body, &sent))
	s.Equal([]string{"feature-a", "feature-b"}, sent.Items)
	s.False(sent.Consume)
	s.Equal("machine-1", sent.MachineID)

	pending, err := s.pending.List(context.Background())
	s.NoError(err)
	s.Empty(pending)
	s.audit.AssertNumberOfCalls(s.T(), "Publish", 2)
}

func (s *EntitlementAppServiceTestSuite) TestConsume_SignedBatchRecordsPending() {
	tokens := []string{
		s.sign(jwt.MapClaims{"feature-a": true, "jti": "jti-a"}),
		s.sign(jwt.MapClaims{"feature-b": true, "jti": "jti-b"}),
	}
	s.respond("application/jwt", strings.Join(tokens, "\n")+"\n")

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a", "feature-b"}, true, constants.ResponseFormatJWT)
	s.Require().NoError(err)
	s.Require().Len(decisions, 2)
	for _, d := range decisions {
		s.True(d.Releasable())
	}

	s.Equal("application/jwt", s.requests[0].header.Get("Accept"))
	pending, err := s.pending.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	ids := []string{pending[0].TokenID, pending[1].TokenID}
	s.ElementsMatch([]string{"jti-a", "jti-b"}, ids)
}

func (s *EntitlementAppServiceTestSuite) TestConsume_ForgedSignatureRejected() {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"feature-a": true, "jti": "x"}).SignedString(other)
	s.Require().NoError(err)
	s.respond("application/jwt", forged)

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a"}, true, constants.ResponseFormatJWT)
	s.Require().Error(err)
	s.True(errors.IsIntegrityError(err))
	s.Nil(decisions)
	pending, _ := s.pending.List(context.Background())
	s.Empty(pending)
}

func (s *EntitlementAppServiceTestSuite) TestCheck_UnverifiedModeAcceptsAnySigner() {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"feature-a": true}).SignedString(other)
	s.Require().NoError(err)
	s.respond("application/jwt", tok)

	decisions, err := s.newService(nil).CheckOrConsume(context.Background(), "at-1", []string{"feature-a"}, false, constants.ResponseFormatJWT)
	s.Require().NoError(err)
	granted, _ := decisions[0].IsGranted()
	s.True(granted)
}

func (s *EntitlementAppServiceTestSuite) TestCheck_PlainFormatPerItem() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if strings.HasSuffix(r.URL.Path, "/feature-a") {
			_, _ = io.WriteString(w, "true\n")
			return
		}
		_, _ = io.WriteString(w, "false")
	}

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a", "feature b"}, false, constants.ResponseFormatPlain)
	s.Require().NoError(err)
	s.Require().Len(decisions, 2)
	a, _ := decisions[0].IsGranted()
	b, _ := decisions[1].IsGranted()
	s.True(a)
	s.False(b)

	s.Require().Len(s.requests, 2)
	s.Equal("/v1/authorizations/feature-a", s.requests[0].path)
	s.Equal("/v1/authorizations/feature b", s.requests[1].path)
	s.Equal("text/plain", s.requests[1].header.Get("Accept"))
}

func (s *EntitlementAppServiceTestSuite) TestCheck_PlainGarbageIsProtocolError() {
	s.respond("text/plain", "yes")

	_, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a"}, false, constants.ResponseFormatPlain)
	s.Require().Error(err)
	s.True(errors.HasCode(err, constants.ErrCodeMalformedDecision))
}

func (s *EntitlementAppServiceTestSuite) TestCheck_ShortBatchReturnsPrefix() {
	s.respond("application/json", `[{"feature-a": true}]`)

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a", "feature-b"}, false, constants.ResponseFormatJSON)
	s.Require().Error(err)
	s.True(errors.HasCode(err, constants.ErrCodeBatchMisaligned))
	s.Require().Len(decisions, 1)
	s.Equal("feature-a", decisions[0].Item())
}

func (s *EntitlementAppServiceTestSuite) TestCheck_LongBatchIsProtocolError() {
	s.respond("application/json", `[{"feature-a": true}, {"feature-b": true}]`)

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a"}, false, constants.ResponseFormatJSON)
	s.Require().Error(err)
	s.True(errors.IsProtocolError(err))
	s.Nil(decisions)
}

func (s *EntitlementAppServiceTestSuite) TestCheck_SingleObjectForOneItem() {
	s.respond("application/json", `{"feature-a": true, "exp": 1700000000}`)

	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", []string{"feature-a"}, false, constants.ResponseFormatJSON)
	s.Require().NoError(err)
	s.Require().Len(decisions, 1)
}

func (s *EntitlementAppServiceTestSuite) TestCheck_Non2xxIsTransportError() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_token"}`)
	}

	_, err := s.service.CheckOrConsume(context.Background(), "expired", []string{"feature-a"}, false, constants.ResponseFormatJSON)
	s.Require().Error(err)
	s.True(errors.IsTransportError(err))
	e, ok := errors.AsEntitleError(err)
	s.Require().True(ok)
	s.Equal(http.StatusUnauthorized, e.Metadata()["status"])
	s.Contains(e.Metadata()["body"], "invalid_token")
}

func (s *EntitlementAppServiceTestSuite) TestCheck_EmptyBatchSendsNothing() {
	decisions, err := s.service.CheckOrConsume(context.Background(), "at-1", nil, false, constants.ResponseFormatJSON)
	s.NoError(err)
	s.Empty(decisions)
	s.Empty(s.requests)
}

func (s *EntitlementAppServiceTestSuite) TestRelease_Outcomes() {
	tests := []struct {
		name     string
		body     string
		wantErr  bool
		wantKind func(error) bool
	}{
		{"released", `{"jti-1": true}`, false, nil},
		{"already released", `{"jti-1": false, "reason": "no_such_consumption"}`, false, nil},
		{"refused", `{"jti-1": false, "reason": "not_owner"}`, true, errors.IsServerReportedFailure},
		{"wrong type", `{"jti-1": "yes"}`, true, errors.IsProtocolError},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			ctx := context.Background()
			s.Require().NoError(s.pending.Record(ctx, &models.PendingRelease{TokenID: "jti-1", Item: "feature-a", ConsumedAt: time.Now()}))
			s.respond("application/json", tt.body)

			decision, err := s.service.Release(ctx, "at-1", "jti-1", constants.ResponseFormatJSON)
			pending, _ := s.pending.List(ctx)
			if tt.wantErr {
				s.Require().Error(err)
				s.True(tt.wantKind(err))
				s.Len(pending, 1, "failed release stays tracked")
				return
			}
			s.Require().NoError(err)
			s.NotNil(decision)
			s.Empty(pending)
		})
	}
}

func (s *EntitlementAppServiceTestSuite) TestRelease_RequestShape() {
	s.respond("application/json", `{"jti-9": true}`)

	_, err := s.service.Release(context.Background(), "at-1", "jti-9", constants.ResponseFormatJSON)
	s.Require().NoError(err)

	req := s.requests[len(s.requests)-1]
	s.Equal("/v1/releases", req.path)
	var sent dto.ReleaseRequest
	s.Require().NoError(json.Unmarshal(req.body, &sent))
	s.Equal("jti-9", sent.TokenID)
	s.Equal("machine-1", sent.MachineID)
}

func (s *EntitlementAppServiceTestSuite) TestReleasePending() {
	ctx := context.Background()
	for _, id := range []string{"jti-1", "jti-2", "jti-3"} {
		s.Require().NoError(s.pending.Record(ctx, &models.PendingRelease{TokenID: id, Item: "feature-a", ConsumedAt: time.Now()}))
	}
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		var req dto.ReleaseRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.TokenID == "jti-3" {
			_, _ = io.WriteString(w, `{"jti-3": false, "reason": "locked"}`)
			return
		}
		_, _ = io.WriteString(w, `{"`+req.TokenID+`": true}`)
	}

	outcomes, err := s.service.ReleasePending(ctx, "at-1", constants.ResponseFormatJSON)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 3)
	for _, o := range outcomes {
		if o.TokenID == "jti-3" {
			s.Error(o.Err)
		} else {
			s.NoError(o.Err)
		}
	}

	left, err := s.pending.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(left, 1)
	s.Equal("jti-3", left[0].TokenID)
}

func (s *EntitlementAppServiceTestSuite) TestMissingBaseURL() {
	svc := appservice.NewEntitlementAppService(config.EntitlementConfig{}, nil, nil, nil, nil, nil, nil, nil, nil, logger.NewNoopLogger())
	_, err := svc.CheckOrConsume(context.Background(), "at", []string{"a"}, false, constants.ResponseFormatJSON)
	s.True(errors.IsConfigurationError(err))
	_, err = svc.Release(context.Background(), "at", "jti", constants.ResponseFormatJSON)
	s.True(errors.IsConfigurationError(err))
}

func TestEntitlementAppServiceTestSuite(t *testing.T) {
	suite.Run(t, new(EntitlementAppServiceTestSuite))
}

func TestEntitlementAppService_RecordsMetricsAndSpan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"feature-a": true}]`)
	}))
	defer server.Close()

	metrics := new(mocks.MockMetrics)
	metrics.On("RecordEntitlementRequest", "check", "json", true, mock.AnythingOfType("time.Duration")).Return()
	metrics.On("RecordDecision", "check", true).Return()
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("entitlement-test")

	svc := appservice.NewEntitlementAppService(
		config.EntitlementConfig{BaseURL: server.URL},
		transport.NewHTTPTransport(nil, time.Second, nil, logger.NewNoopLogger()),
		domainservice.NewDecisionCodec(crypto.NewJWTVerifier()),
		nil, nil, nil, nil,
		metrics,
		tracer,
		logger.NewNoopLogger(),
	)
	_, err := svc.CheckOrConsume(context.Background(), "at", []string{"feature-a"}, false, constants.ResponseFormatJSON)
	require.NoError(t, err)
	metrics.AssertExpectations(t)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "entitlement.check", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("entitlement.items", 1))
}
