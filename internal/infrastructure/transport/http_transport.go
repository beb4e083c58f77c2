// Package transport performs the HTTP round trips of the entitlement protocol.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/infrastructure/monitoring"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// maxBodyBytes bounds a single response body.
const maxBodyBytes = 4 << 20

// HTTPTransport implements service.Transport on net/http.
type HTTPTransport struct {
	client *http.Client
	tracer trace.Tracer
	logger logger.Logger
}

// NewHTTPTransport creates a new HTTPTransport. A nil client uses one with
// timeout; a nil tracer uses the global provider.
func NewHTTPTransport(client *http.Client, timeout time.Duration, tracer trace.Tracer, log logger.Logger) *HTTPTransport {
	if client == nil {
		if timeout <= 0 {
			timeout = constants.DefaultEntitlementTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{client: client, tracer: tracer, logger: log.WithComponent("HTTPTransport")}
}

// Do sends req and reads the whole response. Answers outside 2xx are
// returned as transport errors carrying the status and body.
func (t *HTTPTransport) Do(ctx context.Context, req *service.HTTPRequest) (*service.HTTPResponse, error) {
	ctx, span := monitoring.StartSpan(ctx, t.tracer, "http "+req.Method, map[string]interface{}{
		"http.method": req.Method,
		"http.url":    req.URL,
	})
	defer span.End()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.ErrTransportFailure(req.URL, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		monitoring.RecordError(span, err)
		t.logger.Warn(ctx, "entitlement request failed", logger.String("url", req.URL), logger.String("error", err.Error()))
		return nil, errors.ErrTransportFailure(req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		monitoring.RecordError(span, err)
		return nil, errors.ErrTransportFailure(req.URL, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	t.logger.Debug(ctx, "entitlement request completed",
		logger.String("url", req.URL),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, errors.ErrUnexpectedStatus(req.URL, resp.StatusCode, data)
	}
	return &service.HTTPResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        data,
	}, nil
}
