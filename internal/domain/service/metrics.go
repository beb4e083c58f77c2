// Package service defines the interfaces and the pure protocol logic of the domain.
package service

import (
	"time"
)

// Metrics defines the interface for collecting client metrics.
// This abstraction allows the application layer to remain independent of the specific monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集客户端指标的接口。
type Metrics interface {
	// RecordFlowOutcome records the end state of one sign-on attempt.
	// RecordFlowOutcome 记录一次登录尝试的最终状态。
	RecordFlowOutcome(outcome string, duration time.Duration)

	// RecordTokenExchange records an authorization code redemption.
	// RecordTokenExchange 记录一次授权码兑换。
	RecordTokenExchange(success bool, duration time.Duration)

	// RecordEntitlementRequest records one round trip to the entitlement service.
	// RecordEntitlementRequest 记录一次与授权服务的往返。
	RecordEntitlementRequest(operation string, format string, success bool, duration time.Duration)

	// RecordDecision records a single decoded decision.
	// RecordDecision 记录单个已解码的裁决。
	RecordDecision(operation string, granted bool)

	// RecordRelease records the outcome of releasing one consumed grant.
	// RecordRelease 记录释放一个已消费授权的结果。
	RecordRelease(outcome string)

	// RecordSignatureFailure records a decision that failed verification.
	// RecordSignatureFailure 记录一次签名校验失败。
	RecordSignatureFailure(reason string)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordFlowOutcome(string, time.Duration)                       {}
func (NoopMetrics) RecordTokenExchange(bool, time.Duration)                       {}
func (NoopMetrics) RecordEntitlementRequest(string, string, bool, time.Duration) {}
func (NoopMetrics) RecordDecision(string, bool)                                   {}
func (NoopMetrics) RecordRelease(string)                                          {}
func (NoopMetrics) RecordSignatureFailure(string)                                 {}
