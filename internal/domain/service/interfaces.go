package service

import (
	"context"
	"crypto"
	"net/http"

	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
)

// SurfaceOutcome is what an interactive surface reports when navigation ends:
// either the first URI matching the redirect prefix, or a user cancellation.
// SurfaceOutcome 是交互界面结束导航时的结果：匹配重定向前缀的 URI，或用户取消。
type SurfaceOutcome struct {
	FinalURI  string
	Cancelled bool
}

// InteractiveSurface is the browser-like component that shows the provider's
// sign-in page and watches for the redirect.
// InteractiveSurface 是展示身份提供方登录页面并监听重定向的浏览器类组件。
type InteractiveSurface interface {
	// Navigate loads initialURI and blocks until a URI starting with
	// redirectPrefix is reached, the user cancels, or ctx is done.
	// Navigate 加载 initialURI 并阻塞，直到到达以 redirectPrefix 开头的 URI、用户取消或 ctx 结束。
	Navigate(ctx context.Context, initialURI string, redirectPrefix string) (SurfaceOutcome, error)

	// Close releases the surface. It is safe to call more than once.
	// Close 释放交互界面，可重复调用。
	Close() error
}

//go:generate mockery --name SurfaceProvider --output mocks --outpkg mocks
// SurfaceProvider hands out an interactive surface for the lifetime of one flow.
// SurfaceProvider 为一次授权流程提供交互界面。
type SurfaceProvider interface {
	Acquire(ctx context.Context) (InteractiveSurface, error)
}

// HTTPRequest is one outbound request of the entitlement protocol.
type HTTPRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// HTTPResponse is a fully read response.
type HTTPResponse struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

//go:generate mockery --name Transport --output mocks --outpkg mocks
// Transport performs HTTP round trips. Non-2xx answers are returned as
// transport errors carrying status and body.
// Transport 执行 HTTP 往返；非 2xx 响应以携带状态码和响应体的传输错误返回。
type Transport interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

//go:generate mockery --name BlobStore --output mocks --outpkg mocks
// BlobStore persists opaque values under fixed namespace keys.
// Load returns errors.ErrNotFound for an empty key.
// BlobStore 以固定命名空间键持久化不透明数据。
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

//go:generate mockery --name SignatureVerifier --output mocks --outpkg mocks
// SignatureVerifier checks a compact signed token and returns its payload bytes.
// SignatureVerifier 校验紧凑格式的签名令牌并返回其载荷。
type SignatureVerifier interface {
	// Verify returns the payload of token once its signature checks out against key.
	// A nil key is unverified mode: the payload is returned without any trust
	// check, so any token claiming to come from the server is accepted.
	// Verify 在签名通过 key 校验后返回载荷；key 为 nil 时为不校验模式。
	Verify(token string, key crypto.PublicKey) ([]byte, error)
}

// KeySource resolves the entitlement service verification key.
// A nil key with a nil error means decisions are accepted unverified.
type KeySource interface {
	PublicKey(ctx context.Context) (crypto.PublicKey, error)
}

//go:generate mockery --name TokenExchanger --output mocks --outpkg mocks
// TokenExchanger redeems an authorization code at the token endpoint.
// TokenExchanger 在令牌端点兑换授权码。
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*models.Authorization, error)
}

// ParameterParser extracts the OAuth response parameters from a redirect URI.
type ParameterParser interface {
	Parse(finalURI string) (map[string]string, error)
}

// GrantVariant specializes the authorization flow for one OAuth grant.
// GrantVariant 为某种 OAuth 授权类型定制授权流程。
type GrantVariant interface {
	// ResponseType is the response_type sent to the authorization endpoint.
	ResponseType() constants.ResponseType

	// ParseRedirectParameters extracts response parameters from the final URI.
	ParseRedirectParameters(finalURI string) (map[string]string, error)

	// Finalize turns validated response parameters into an authorization.
	Finalize(ctx context.Context, params map[string]string) (*models.Authorization, error)
}

//go:generate mockery --name PendingReleaseRepository --output mocks --outpkg mocks
// PendingReleaseRepository tracks consumed grants awaiting release.
// Implementations are safe for concurrent use.
// PendingReleaseRepository 跟踪已消费但尚未释放的授权。
type PendingReleaseRepository interface {
	Record(ctx context.Context, pending *models.PendingRelease) error
	Remove(ctx context.Context, tokenID string) error
	List(ctx context.Context) ([]*models.PendingRelease, error)
}

// AuditPublisher ships usage events to an audit sink.
type AuditPublisher interface {
	Publish(ctx context.Context, event *models.UsageEvent) error
	Close() error
}

// MachineIdentifier yields the stable per-installation identifier.
type MachineIdentifier interface {
	MachineID(ctx context.Context) (string, error)
}
