// Package dto holds the wire documents of the entitlement service API.
package dto

// AuthorizationBatchRequest 批量检查/消费授权请求 DTO
type AuthorizationBatchRequest struct {
	Items     []string `json:"items" validate:"required,min=1,dive,required,max=255"`
	Consume   bool     `json:"consume"`
	MachineID string   `json:"machine_id" validate:"omitempty,max=128"`
}

// ItemAuthorizationRequest 单项授权请求 DTO（text/plain 响应格式）
type ItemAuthorizationRequest struct {
	Consume   bool   `json:"consume"`
	MachineID string `json:"machine_id" validate:"omitempty,max=128"`
}

// ReleaseRequest 释放已消费授权请求 DTO
type ReleaseRequest struct {
	TokenID   string `json:"jti" validate:"required,max=255"`
	MachineID string `json:"machine_id" validate:"omitempty,max=128"`
}

// ErrorResponse 错误响应 DTO
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
